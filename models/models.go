// models.go
// Defines the core data structures shared by the ResponseReady API, the record
// store adapters and the seeder. Field names on the store side match the
// documents the dashboard has always written, so existing collections decode
// without migration.

package models

import (
	"time"
)

// Collection names in the record store.
const (
	CollectionUsers       = "users"
	CollectionPasswords   = "passwords"
	CollectionIncidents   = "incidents"
	CollectionIndividuals = "individuals"
	CollectionVehicles    = "vehicles"
	CollectionComms       = "comms"
)

// UserRole defines the access level of a user.
type UserRole string

const (
	RoleCommissioner UserRole = "commissioner"
	RoleDispatch     UserRole = "dispatch"
	RolePolice       UserRole = "police"
	RoleFD           UserRole = "fd"
	RoleUser         UserRole = "user"
	RoleCivilian     UserRole = "civilian"
)

// DefaultSignupRole is granted to every signup after the first.
const DefaultSignupRole = RoleUser

// Roles lists every known role in display order.
var Roles = []UserRole{RoleCommissioner, RoleDispatch, RolePolice, RoleFD, RoleUser, RoleCivilian}

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// UserProfile is the stored profile document for an identity.
// Secrets never live here; password hashes are kept in their own collection.
type UserProfile struct {
	UID      string   `firestore:"-" json:"uid"`
	Name     string   `firestore:"name" json:"name"`
	Email    string   `firestore:"email" json:"email"`
	Role     UserRole `firestore:"role" json:"role"`
	CallSign string   `firestore:"callSign,omitempty" json:"callSign,omitempty"`
}

// IncidentStatus is a flag, not a workflow: any status may follow any other.
type IncidentStatus string

const (
	StatusPending  IncidentStatus = "Pending"
	StatusActive   IncidentStatus = "Active"
	StatusResolved IncidentStatus = "Resolved"
)

// Valid reports whether s is one of the three incident statuses.
func (s IncidentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusResolved:
		return true
	}
	return false
}

// Incident is a dispatch-created or civilian-filed incident.
// CreatedAt is assigned by the store when left zero.
type Incident struct {
	ID          string         `firestore:"-" json:"id"`
	Unit        string         `firestore:"unit" json:"unit"`
	Type        string         `firestore:"type" json:"type"`
	Location    string         `firestore:"location" json:"location"`
	Description string         `firestore:"description" json:"description,omitempty"`
	Status      IncidentStatus `firestore:"status" json:"status"`
	CreatedAt   time.Time      `firestore:"timestamp,serverTimestamp" json:"timestamp"`
	ReporterID  string         `firestore:"reporterId,omitempty" json:"reporterId,omitempty"`
}

// Individual is a person record. Name is assumed unique by lookups but the
// store does not enforce it.
type Individual struct {
	ID               string   `firestore:"-" json:"id"`
	Name             string   `firestore:"name" json:"name" yaml:"name" validate:"required"`
	DOB              string   `firestore:"dob" json:"dob" yaml:"dob"`
	Address          string   `firestore:"address" json:"address" yaml:"address"`
	LicenseStatus    string   `firestore:"license_status" json:"license_status" yaml:"license_status"`
	GunLicenseStatus string   `firestore:"gunLicenseStatus" json:"gunLicenseStatus" yaml:"gun_license_status"`
	InsuranceStatus  string   `firestore:"insuranceStatus" json:"insuranceStatus" yaml:"insurance_status"`
	Guns             []string `firestore:"guns" json:"guns" yaml:"guns"`
}

// Vehicle is a registered vehicle. Owner is matched against Individual.Name
// by value; renaming an individual does not follow through to vehicles.
type Vehicle struct {
	ID                 string `firestore:"-" json:"id"`
	Plate              string `firestore:"plate" json:"plate" yaml:"plate" validate:"required"`
	Model              string `firestore:"model" json:"model" yaml:"model"`
	Owner              string `firestore:"owner" json:"owner" yaml:"owner" validate:"required"`
	RegistrationStatus string `firestore:"registration_status" json:"registration_status" yaml:"registration_status"`
}

// Comm is an append-only radio/chat message.
type Comm struct {
	ID        string    `firestore:"-" json:"id"`
	Unit      string    `firestore:"unit" json:"unit"`
	Message   string    `firestore:"message" json:"message"`
	CreatedAt time.Time `firestore:"timestamp,serverTimestamp" json:"timestamp"`
}

// --- Request payloads ---

// SignupRequest is the payload for creating an account.
type SignupRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginRequest is the payload for email/password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// IncidentRequest is the dispatch form for creating an incident.
type IncidentRequest struct {
	Unit        string `json:"unit" validate:"required"`
	Type        string `json:"type" validate:"required"`
	Location    string `json:"location" validate:"required"`
	Description string `json:"description"`
}

// CivilianReportRequest is the civilian form for filing an incident.
type CivilianReportRequest struct {
	Type        string `json:"type" validate:"required,min=1"`
	Location    string `json:"location" validate:"required,min=3"`
	Description string `json:"description" validate:"required,min=10"`
}

// StatusUpdateRequest changes an incident's status.
type StatusUpdateRequest struct {
	Status IncidentStatus `json:"status" validate:"required"`
}

// CommRequest is a new message on the comms channel. Unit defaults to the
// sender's call sign, then their name.
type CommRequest struct {
	Unit    string `json:"unit"`
	Message string `json:"message" validate:"required,max=500"`
}

// RoleUpdateRequest changes another user's role.
type RoleUpdateRequest struct {
	Role UserRole `json:"role" validate:"required"`
}

// CallSignUpdateRequest sets a user's call sign.
type CallSignUpdateRequest struct {
	CallSign string `json:"callSign" validate:"max=16"`
}

// PasswordResetRequest sets a new password for a user.
type PasswordResetRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

// --- Responses ---

// SessionResponse returns the tokens and the profile after login or signup.
type SessionResponse struct {
	Token        string       `json:"token"`
	RefreshToken string       `json:"refresh_token"`
	User         *UserProfile `json:"user"`
}

// SearchResponse is the merged result of a records search.
type SearchResponse struct {
	Individuals []Individual `json:"individuals"`
	Vehicles    []Vehicle    `json:"vehicles"`
}

// CivilianRecord is the admin edit view of one civilian.
type CivilianRecord struct {
	Individual *Individual `json:"individual"`
	Vehicles   []Vehicle   `json:"vehicles"`
}
