package handlers

import (
	"net/http"

	"responseready/models"
	"responseready/service"

	"github.com/rs/zerolog"
)

type CommsHandler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewCommsHandler(svc *service.Service, logger zerolog.Logger) *CommsHandler {
	return &CommsHandler{
		svc: svc,
		log: logger.With().Str("handler", "comms").Logger(),
	}
}

// GetComms returns the channel in chronological order
func (h *CommsHandler) GetComms(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	comms, err := h.svc.ListComms(r.Context(), caller)
	if err != nil {
		handleServiceError(w, h.log, err, "list comms")
		return
	}

	writeJSON(w, http.StatusOK, comms)
}

// SendComm appends a message to the channel
func (h *CommsHandler) SendComm(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CommRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	comm, err := h.svc.SendComm(r.Context(), caller, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "send comm")
		return
	}

	writeJSON(w, http.StatusCreated, comm)
}
