package models

import "errors"

// Error taxonomy shared by every layer. Lower layers wrap these with %w and
// handlers turn them into user-visible notifications.
var (
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailAlreadyExists   = errors.New("email already exists")
	ErrRecordNotFound       = errors.New("record not found")
	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrValidationFailed     = errors.New("validation failed")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrUnauthenticated      = errors.New("authentication required")
)
