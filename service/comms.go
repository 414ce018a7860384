package service

import (
	"context"

	"responseready/db"
	"responseready/models"
	"responseready/policy"
)

// ListComms returns the channel in chronological order.
func (s *Service) ListComms(ctx context.Context, caller *models.UserProfile) ([]models.Comm, error) {
	if err := policy.Require(caller, policy.ViewComms); err != nil {
		return nil, err
	}
	return s.store.ListComms(ctx)
}

// WatchComms streams the channel in chronological order.
func (s *Service) WatchComms(ctx context.Context, caller *models.UserProfile) (db.Feed[models.Comm], error) {
	if err := policy.Require(caller, policy.ViewComms); err != nil {
		return nil, err
	}
	return s.store.WatchComms(ctx)
}

// SendComm appends a message. The unit label defaults to the sender's call
// sign, then their name.
func (s *Service) SendComm(ctx context.Context, caller *models.UserProfile, req *models.CommRequest) (*models.Comm, error) {
	if err := policy.Require(caller, policy.SendComm); err != nil {
		return nil, err
	}
	trim(&req.Unit, &req.Message)
	if err := models.Validate(req); err != nil {
		return nil, err
	}

	unit := req.Unit
	if unit == "" {
		unit = caller.CallSign
	}
	if unit == "" {
		unit = caller.Name
	}

	comm := &models.Comm{Unit: unit, Message: req.Message}
	if err := s.store.CreateComm(ctx, comm); err != nil {
		s.log.Error().Err(err).Str("user_id", caller.UID).Msg("❌ Failed to send comm")
		return nil, err
	}
	return comm, nil
}
