package handlers

import (
	"net/http"

	"responseready/models"
	"responseready/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type IncidentHandler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewIncidentHandler(svc *service.Service, logger zerolog.Logger) *IncidentHandler {
	return &IncidentHandler{
		svc: svc,
		log: logger.With().Str("handler", "incidents").Logger(),
	}
}

// GetIncidents returns the incident board, newest first
func (h *IncidentHandler) GetIncidents(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	incidents, err := h.svc.ListIncidents(r.Context(), caller)
	if err != nil {
		handleServiceError(w, h.log, err, "list incidents")
		return
	}

	writeJSON(w, http.StatusOK, incidents)
}

// CreateIncident files an incident from the dispatch form
func (h *IncidentHandler) CreateIncident(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.IncidentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	incident, err := h.svc.CreateIncident(r.Context(), caller, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "create incident")
		return
	}

	writeJSON(w, http.StatusCreated, incident)
}

// FileReport files an incident from the civilian form
func (h *IncidentHandler) FileReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.CivilianReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	incident, err := h.svc.FileReport(r.Context(), caller, &req)
	if err != nil {
		handleServiceError(w, h.log, err, "file report")
		return
	}

	writeJSON(w, http.StatusCreated, incident)
}

// UpdateStatus sets an incident's status
func (h *IncidentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req models.StatusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.svc.UpdateIncidentStatus(r.Context(), caller, id, req.Status); err != nil {
		handleServiceError(w, h.log, err, "update status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(req.Status),
	})
}

// GetMyReports returns the caller's own filings, newest first
func (h *IncidentHandler) GetMyReports(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	incidents, err := h.svc.MyReports(r.Context(), caller)
	if err != nil {
		handleServiceError(w, h.log, err, "list my reports")
		return
	}

	writeJSON(w, http.StatusOK, incidents)
}
