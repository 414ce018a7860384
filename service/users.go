package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"responseready/logging"
	"responseready/models"
	"responseready/policy"
)

// ListUsers returns every profile sorted by name. Admin views poll this on
// mount and after each mutation instead of subscribing.
func (s *Service) ListUsers(ctx context.Context, caller *models.UserProfile) ([]models.UserProfile, error) {
	if err := policy.Require(caller, policy.ListUsers); err != nil {
		return nil, err
	}
	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

// ListUnits returns the responder roster: every non-civilian profile, sorted
// by call sign. Responders still waiting for a call sign come last, by name.
func (s *Service) ListUnits(ctx context.Context, caller *models.UserProfile) ([]models.UserProfile, error) {
	if err := policy.Require(caller, policy.ViewUnits); err != nil {
		return nil, err
	}
	users, err := s.store.GetAllUsers(ctx)
	if err != nil {
		return nil, err
	}
	units := []models.UserProfile{}
	for _, u := range users {
		if u.Role != models.RoleCivilian {
			units = append(units, u)
		}
	}
	sort.Slice(units, func(i, j int) bool {
		a, b := units[i], units[j]
		if (a.CallSign == "") != (b.CallSign == "") {
			return a.CallSign != ""
		}
		if a.CallSign != b.CallSign {
			return a.CallSign < b.CallSign
		}
		return a.Name < b.Name
	})
	return units, nil
}

// ChangeRole sets another user's role. Commissioners cannot change their own.
func (s *Service) ChangeRole(ctx context.Context, caller *models.UserProfile, uid string, role models.UserRole) (*models.UserProfile, error) {
	if err := policy.RequireRoleChange(caller, uid, role); err != nil {
		return nil, err
	}
	if err := s.store.UpdateUserRole(ctx, uid, role); err != nil {
		return nil, err
	}

	updated, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.accounts.ProfileChanged(updated)
	logging.Audit(s.log, caller.UID, string(policy.ChangeRole), fmt.Sprintf("set %s to %s", uid, role))
	return updated, nil
}

// ChangeCallSign sets a user's call sign. An empty call sign clears it.
func (s *Service) ChangeCallSign(ctx context.Context, caller *models.UserProfile, uid, callSign string) (*models.UserProfile, error) {
	if err := policy.Require(caller, policy.ChangeCallSign); err != nil {
		return nil, err
	}
	req := &models.CallSignUpdateRequest{CallSign: strings.ToUpper(strings.TrimSpace(callSign))}
	if err := models.Validate(req); err != nil {
		return nil, err
	}
	if err := s.store.UpdateUserCallSign(ctx, uid, req.CallSign); err != nil {
		return nil, err
	}

	updated, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return nil, err
	}
	s.accounts.ProfileChanged(updated)
	logging.Audit(s.log, caller.UID, string(policy.ChangeCallSign), fmt.Sprintf("set %s call sign to %q", uid, req.CallSign))
	return updated, nil
}

// ResetPassword sets a new password for uid.
func (s *Service) ResetPassword(ctx context.Context, caller *models.UserProfile, uid, password string) error {
	if err := policy.Require(caller, policy.ResetPassword); err != nil {
		return err
	}
	if err := s.accounts.SetPassword(ctx, uid, password); err != nil {
		return err
	}
	logging.Audit(s.log, caller.UID, string(policy.ResetPassword), "reset password for "+uid)
	return nil
}
