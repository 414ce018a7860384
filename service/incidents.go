package service

import (
	"context"
	"fmt"
	"time"

	"responseready/db"
	"responseready/models"
	"responseready/policy"
)

// CreateIncident files an incident from the dispatch form.
func (s *Service) CreateIncident(ctx context.Context, caller *models.UserProfile, req *models.IncidentRequest) (*models.Incident, error) {
	if err := policy.Require(caller, policy.FileIncident); err != nil {
		return nil, err
	}
	trim(&req.Unit, &req.Type, &req.Location, &req.Description)
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	return s.createIncident(ctx, &models.Incident{
		Unit:        req.Unit,
		Type:        req.Type,
		Location:    req.Location,
		Description: req.Description,
	})
}

// FileReport files an incident from the civilian form. The caller's display
// name becomes the unit and their identity is stamped as the reporter.
func (s *Service) FileReport(ctx context.Context, caller *models.UserProfile, req *models.CivilianReportRequest) (*models.Incident, error) {
	if err := policy.Require(caller, policy.FileIncident); err != nil {
		return nil, err
	}
	trim(&req.Type, &req.Location, &req.Description)
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	return s.createIncident(ctx, &models.Incident{
		Unit:        caller.Name,
		Type:        req.Type,
		Location:    req.Location,
		Description: req.Description,
		ReporterID:  caller.UID,
	})
}

func (s *Service) createIncident(ctx context.Context, incident *models.Incident) (*models.Incident, error) {
	incident.Status = models.StatusPending
	incident.CreatedAt = time.Time{}

	if err := s.store.CreateIncident(ctx, incident); err != nil {
		s.log.Error().Err(err).Msg("❌ Failed to create incident")
		return nil, err
	}

	s.log.Info().Str("incident_id", incident.ID).Str("type", incident.Type).Msg("✅ Incident filed")
	return incident, nil
}

// UpdateIncidentStatus sets an incident's status. Any status may follow any
// other; concurrent writers resolve last-write-wins in the store.
func (s *Service) UpdateIncidentStatus(ctx context.Context, caller *models.UserProfile, id string, status models.IncidentStatus) error {
	if err := policy.Require(caller, policy.ChangeIncidentStatus); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", models.ErrValidationFailed, status)
	}

	if err := s.store.UpdateIncidentStatus(ctx, id, status); err != nil {
		return err
	}

	s.log.Info().Str("incident_id", id).Str("status", string(status)).Str("user_id", caller.UID).Msg("🔄 Incident status updated")
	return nil
}

// ListIncidents returns every incident, newest first.
func (s *Service) ListIncidents(ctx context.Context, caller *models.UserProfile) ([]models.Incident, error) {
	if err := policy.Require(caller, policy.ViewIncidents); err != nil {
		return nil, err
	}
	return s.store.ListIncidents(ctx)
}

// WatchIncidents streams the incident board, newest first.
func (s *Service) WatchIncidents(ctx context.Context, caller *models.UserProfile) (db.Feed[models.Incident], error) {
	if err := policy.Require(caller, policy.ViewIncidents); err != nil {
		return nil, err
	}
	return s.store.WatchIncidents(ctx)
}

// MyReports returns the incidents the caller filed, newest first. The store
// returns them unordered, so they are sorted here.
func (s *Service) MyReports(ctx context.Context, caller *models.UserProfile) ([]models.Incident, error) {
	if err := policy.Require(caller, policy.ViewOwnReports); err != nil {
		return nil, err
	}
	incidents, err := s.store.ListIncidentsByReporter(ctx, caller.UID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(incidents)
	return incidents, nil
}

// WatchMyReports streams the caller's own incidents, newest first.
func (s *Service) WatchMyReports(ctx context.Context, caller *models.UserProfile) (db.Feed[models.Incident], error) {
	if err := policy.Require(caller, policy.ViewOwnReports); err != nil {
		return nil, err
	}
	feed, err := s.store.WatchIncidentsByReporter(ctx, caller.UID)
	if err != nil {
		return nil, err
	}
	return sortedFeed{Feed: feed}, nil
}

// ExportIncidents returns every incident for CSV export, newest first.
func (s *Service) ExportIncidents(ctx context.Context, caller *models.UserProfile) ([]models.Incident, error) {
	if err := policy.Require(caller, policy.ExportIncidents); err != nil {
		return nil, err
	}
	incidents, err := s.store.ListIncidents(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", caller.UID).Int("count", len(incidents)).Msg("📤 Incidents exported")
	return incidents, nil
}
