package db

import (
	"context"
	"errors"
	"fmt"

	"responseready/models"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// prefixEnd is appended to a query string to form the upper bound of a
// lexicographic prefix range.
const prefixEnd = "\uf8ff"

// Feed delivers full, already-ordered snapshots of a live query. The first
// call to Next returns the current result set; each later call blocks until
// the result set changes. After Stop, Next returns iterator.Done.
type Feed[T any] interface {
	Next() ([]T, error)
	Stop()
}

// Store is the record store boundary. Implementations perform no
// authorization; callers go through the service package.
//
// Ordered reads follow the store's native ordering: incidents newest first,
// comms oldest first. Equality-filtered incident reads are unordered because
// the store cannot combine a filter with an order.
type Store interface {
	// Users
	IsFirstUser(ctx context.Context) (bool, error)
	CreateUser(ctx context.Context, user *models.UserProfile) error
	GetUser(ctx context.Context, uid string) (*models.UserProfile, error)
	GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	GetAllUsers(ctx context.Context) ([]models.UserProfile, error)
	UpdateUserRole(ctx context.Context, uid string, role models.UserRole) error
	UpdateUserCallSign(ctx context.Context, uid, callSign string) error
	StorePasswordHash(ctx context.Context, uid, hash string) error
	GetPasswordHash(ctx context.Context, uid string) (string, error)

	// Incidents
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id string, status models.IncidentStatus) error
	ListIncidents(ctx context.Context) ([]models.Incident, error)
	ListIncidentsByReporter(ctx context.Context, reporterID string) ([]models.Incident, error)
	WatchIncidents(ctx context.Context) (Feed[models.Incident], error)
	WatchIncidentsByReporter(ctx context.Context, reporterID string) (Feed[models.Incident], error)

	// Individuals
	CreateIndividual(ctx context.Context, individual *models.Individual) error
	GetIndividualByName(ctx context.Context, name string) (*models.Individual, error)
	SearchIndividualsByName(ctx context.Context, prefix string) ([]models.Individual, error)
	UpdateIndividual(ctx context.Context, individual *models.Individual) error

	// Vehicles
	CreateVehicle(ctx context.Context, vehicle *models.Vehicle) error
	GetVehiclesByPlate(ctx context.Context, plate string) ([]models.Vehicle, error)
	GetVehiclesByOwner(ctx context.Context, owner string) ([]models.Vehicle, error)
	SearchVehiclesByOwner(ctx context.Context, prefix string) ([]models.Vehicle, error)
	UpdateVehicle(ctx context.Context, vehicle *models.Vehicle) error

	// UpdateCivilianRecord replaces an individual and its vehicles in one
	// atomic write. A missing document fails the whole write.
	UpdateCivilianRecord(ctx context.Context, individual *models.Individual, vehicles []models.Vehicle) error

	// Comms
	CreateComm(ctx context.Context, comm *models.Comm) error
	ListComms(ctx context.Context) ([]models.Comm, error)
	WatchComms(ctx context.Context) (Feed[models.Comm], error)

	// ClearCollection deletes every document in a collection. Seeding only.
	ClearCollection(ctx context.Context, name string) (int, error)
	Close() error
}

// storeError classifies a backend error into the shared taxonomy.
func storeError(op string, err error) error {
	if errors.Is(err, models.ErrRecordNotFound) || status.Code(err) == codes.NotFound {
		return fmt.Errorf("failed to %s: %w", op, models.ErrRecordNotFound)
	}
	return fmt.Errorf("failed to %s: %w: %v", op, models.ErrStoreOperationFailed, err)
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, models.ErrRecordNotFound)
}
