package policy_test

import (
	"testing"

	"responseready/models"
	"responseready/policy"

	"github.com/stretchr/testify/assert"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		role   models.UserRole
		action policy.Action
		want   bool
	}{
		{models.RoleCommissioner, policy.ChangeRole, true},
		{models.RoleCommissioner, policy.ViewAdmin, true},
		{models.RoleDispatch, policy.ViewAdmin, false},
		{models.RoleDispatch, policy.ListUsers, true},
		{models.RoleDispatch, policy.ChangeCallSign, true},
		{models.RoleDispatch, policy.ChangeRole, false},
		{models.RoleDispatch, policy.ChangeIncidentStatus, true},
		{models.RolePolice, policy.ChangeIncidentStatus, false},
		{models.RoleFD, policy.ViewIncidents, true},
		{models.RoleUser, policy.SendComm, true},
		{models.RoleCivilian, policy.FileIncident, true},
		{models.RoleCivilian, policy.ViewOwnReports, true},
		{models.RoleCivilian, policy.ViewRecords, true},
		{models.RoleCivilian, policy.ViewIncidents, false},
		{models.RoleCivilian, policy.ViewComms, false},
		{models.RoleCivilian, policy.AnalyzeComms, false},
		{"sheriff", policy.ViewRecords, false},
		{models.RoleCommissioner, "unknown/action", false},
	}

	for _, tc := range cases {
		t.Run(string(tc.role)+"_"+string(tc.action), func(t *testing.T) {
			assert.Equal(t, tc.want, policy.Allowed(tc.role, tc.action))
		})
	}
}

func TestRequire(t *testing.T) {
	t.Run("NilCaller", func(t *testing.T) {
		assert.ErrorIs(t, policy.Require(nil, policy.ViewRecords), models.ErrUnauthenticated)
	})

	t.Run("Denied", func(t *testing.T) {
		caller := &models.UserProfile{UID: "u1", Role: models.RolePolice}
		assert.ErrorIs(t, policy.Require(caller, policy.EditRecords), models.ErrPermissionDenied)
	})

	t.Run("Allowed", func(t *testing.T) {
		caller := &models.UserProfile{UID: "u1", Role: models.RoleCommissioner}
		assert.NoError(t, policy.Require(caller, policy.EditRecords))
	})
}

func TestRequireRoleChange(t *testing.T) {
	chief := &models.UserProfile{UID: "chief", Role: models.RoleCommissioner}

	assert.ErrorIs(t, policy.RequireRoleChange(chief, "chief", models.RoleDispatch), models.ErrPermissionDenied)
	assert.ErrorIs(t, policy.RequireRoleChange(chief, "other", "sheriff"), models.ErrValidationFailed)
	assert.NoError(t, policy.RequireRoleChange(chief, "other", models.RoleFD))

	dispatch := &models.UserProfile{UID: "d", Role: models.RoleDispatch}
	assert.ErrorIs(t, policy.RequireRoleChange(dispatch, "other", models.RoleFD), models.ErrPermissionDenied)
}

func TestActions(t *testing.T) {
	all := policy.Actions(models.RoleCommissioner)
	assert.Len(t, all, 16)

	civilian := policy.Actions(models.RoleCivilian)
	assert.Equal(t, []policy.Action{policy.FileIncident, policy.ViewOwnReports, policy.ViewRecords}, civilian)

	assert.Empty(t, policy.Actions("sheriff"))
}
