// Package policy maps (role, action) pairs to allow/deny decisions.
//
// The table is the single source of truth for what each role may do. It is
// evaluated by the data access service before every store operation, and
// the HTTP layer consults the same table to decide which surfaces to expose.
// Hiding a control in the dashboard is advisory only; the record store itself
// enforces no document-level rules.
package policy

import (
	"fmt"

	"responseready/models"
)

// Action is something a caller may attempt.
type Action string

const (
	// ViewAdmin shows the admin panel in the client. It only appears in the
	// capability list; each admin API operation is gated by its own action
	// so dispatch can reach the unit-management subset.
	ViewAdmin            Action = "admin/view"
	ViewUnits            Action = "units/view"
	ListUsers            Action = "users/list"
	ChangeRole           Action = "users/role"
	ChangeCallSign       Action = "users/callsign"
	ResetPassword        Action = "users/password"
	FileIncident         Action = "incident/file"
	ViewIncidents        Action = "incident/view"
	ViewOwnReports       Action = "incident/view-own"
	ChangeIncidentStatus Action = "incident/status"
	ExportIncidents      Action = "incident/export"
	ViewRecords          Action = "records/view"
	EditRecords          Action = "records/edit"
	ViewComms            Action = "comms/view"
	SendComm             Action = "comms/send"
	AnalyzeComms         Action = "intel/analyze"
)

var (
	everyone        = models.Roles
	dispatchCapable = []models.UserRole{models.RoleCommissioner, models.RoleDispatch}
	adminCapable    = []models.UserRole{models.RoleCommissioner}

	// Everyone except civilians.
	responders = []models.UserRole{
		models.RoleCommissioner,
		models.RoleDispatch,
		models.RolePolice,
		models.RoleFD,
		models.RoleUser,
	}
)

var table = map[Action][]models.UserRole{
	ViewAdmin:            adminCapable,
	ViewUnits:            dispatchCapable,
	ListUsers:            dispatchCapable,
	ChangeRole:           adminCapable,
	ChangeCallSign:       dispatchCapable,
	ResetPassword:        adminCapable,
	FileIncident:         everyone,
	ViewIncidents:        responders,
	ViewOwnReports:       everyone,
	ChangeIncidentStatus: dispatchCapable,
	ExportIncidents:      dispatchCapable,
	ViewRecords:          everyone,
	EditRecords:          adminCapable,
	ViewComms:            responders,
	SendComm:             responders,
	AnalyzeComms:         responders,
}

// Allowed reports whether role may perform action. Unknown roles and
// unknown actions are denied.
func Allowed(role models.UserRole, action Action) bool {
	for _, r := range table[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns nil when caller may perform action, and an error wrapping
// models.ErrPermissionDenied otherwise. A nil caller is unauthenticated.
func Require(caller *models.UserProfile, action Action) error {
	if caller == nil {
		return models.ErrUnauthenticated
	}
	if !Allowed(caller.Role, action) {
		return fmt.Errorf("%w: role %q cannot %s", models.ErrPermissionDenied, caller.Role, action)
	}
	return nil
}

// RequireRoleChange checks a role mutation of targetUID to newRole. A
// commissioner may not change their own role through this path.
func RequireRoleChange(caller *models.UserProfile, targetUID string, newRole models.UserRole) error {
	if err := Require(caller, ChangeRole); err != nil {
		return err
	}
	if caller.UID == targetUID {
		return fmt.Errorf("%w: cannot change your own role", models.ErrPermissionDenied)
	}
	if !newRole.Valid() {
		return fmt.Errorf("%w: unknown role %q", models.ErrValidationFailed, newRole)
	}
	return nil
}

// Actions returns every action role may perform, in table order. The
// dashboard uses it to decide which menus to render.
func Actions(role models.UserRole) []Action {
	var out []Action
	for _, a := range ordered {
		if Allowed(role, a) {
			out = append(out, a)
		}
	}
	return out
}

var ordered = []Action{
	ViewAdmin, ViewUnits, ListUsers, ChangeRole, ChangeCallSign, ResetPassword,
	FileIncident, ViewIncidents, ViewOwnReports, ChangeIncidentStatus, ExportIncidents,
	ViewRecords, EditRecords, ViewComms, SendComm, AnalyzeComms,
}
