package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"responseready/logging"
	"responseready/policy"
)

// ExportIncidents streams every incident as a CSV download
func (h *IncidentHandler) ExportIncidents(w http.ResponseWriter, r *http.Request) {
	caller, ok := currentUser(w, r)
	if !ok {
		return
	}

	incidents, err := h.svc.ExportIncidents(r.Context(), caller)
	if err != nil {
		handleServiceError(w, h.log, err, "export incidents")
		return
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := fmt.Sprintf("responseready_incidents_%s.csv", timestamp)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	header := []string{
		"Incident ID",
		"Unit",
		"Type",
		"Location",
		"Description",
		"Status",
		"Created At",
		"Reporter ID",
	}
	if err := writer.Write(header); err != nil {
		h.log.Error().Err(err).Msg("❌ Failed to write CSV header")
		return
	}

	for _, incident := range incidents {
		createdAt := ""
		if !incident.CreatedAt.IsZero() {
			createdAt = incident.CreatedAt.Format(time.RFC3339)
		}

		row := []string{
			incident.ID,
			incident.Unit,
			incident.Type,
			incident.Location,
			incident.Description,
			string(incident.Status),
			createdAt,
			incident.ReporterID,
		}
		if err := writer.Write(row); err != nil {
			h.log.Error().Err(err).Msg("❌ Failed to write CSV row")
			return
		}
	}

	logging.Audit(h.log, caller.UID, string(policy.ExportIncidents), fmt.Sprintf("exported %d incidents", len(incidents)))
}
