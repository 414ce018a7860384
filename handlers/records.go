package handlers

import (
	"net/http"

	"responseready/models"
	"responseready/service"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type RecordHandler struct {
	svc *service.Service
	log zerolog.Logger
}

func NewRecordHandler(svc *service.Service, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		svc: svc,
		log: logger.With().Str("handler", "records").Logger(),
	}
}

// Search matches people and vehicles against ?q=
func (h *RecordHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	resp, err := h.svc.Search(r.Context(), caller, r.URL.Query().Get("q"))
	if err != nil {
		handleServiceError(w, h.log, err, "search records")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCivilian loads the edit view for ?name=
func (h *RecordHandler) GetCivilian(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, "Name is required", http.StatusBadRequest)
		return
	}

	record, err := h.svc.GetCivilianRecord(r.Context(), caller, name)
	if err != nil {
		handleServiceError(w, h.log, err, "get civilian")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// UpdateCivilian saves an individual and their vehicles
func (h *RecordHandler) UpdateCivilian(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var record models.CivilianRecord
	if !decodeJSON(w, r, &record) {
		return
	}

	if err := h.svc.UpdateCivilianRecord(r.Context(), caller, &record); err != nil {
		handleServiceError(w, h.log, err, "update civilian")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// CreateIndividual adds a person record
func (h *RecordHandler) CreateIndividual(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var individual models.Individual
	if !decodeJSON(w, r, &individual) {
		return
	}

	if err := h.svc.CreateIndividual(r.Context(), caller, &individual); err != nil {
		handleServiceError(w, h.log, err, "create individual")
		return
	}

	writeJSON(w, http.StatusCreated, individual)
}

// UpdateIndividual replaces a person record
func (h *RecordHandler) UpdateIndividual(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var individual models.Individual
	if !decodeJSON(w, r, &individual) {
		return
	}
	individual.ID = mux.Vars(r)["id"]

	if err := h.svc.UpdateIndividual(r.Context(), caller, &individual); err != nil {
		handleServiceError(w, h.log, err, "update individual")
		return
	}

	writeJSON(w, http.StatusOK, individual)
}

// CreateVehicle adds a vehicle record
func (h *RecordHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var vehicle models.Vehicle
	if !decodeJSON(w, r, &vehicle) {
		return
	}

	if err := h.svc.CreateVehicle(r.Context(), caller, &vehicle); err != nil {
		handleServiceError(w, h.log, err, "create vehicle")
		return
	}

	writeJSON(w, http.StatusCreated, vehicle)
}

// UpdateVehicle replaces a vehicle record
func (h *RecordHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	var vehicle models.Vehicle
	if !decodeJSON(w, r, &vehicle) {
		return
	}
	vehicle.ID = mux.Vars(r)["id"]

	if err := h.svc.UpdateVehicle(r.Context(), caller, &vehicle); err != nil {
		handleServiceError(w, h.log, err, "update vehicle")
		return
	}

	writeJSON(w, http.StatusOK, vehicle)
}
