package db_test

import (
	"context"
	"testing"
	"time"

	"responseready/db"
	"responseready/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/iterator"
)

// steppedClock returns a clock that advances one second per call.
func steppedClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newStore() *db.MemoryDB {
	store := db.NewMemoryDB()
	store.Now = steppedClock()
	return store
}

func TestMemoryDB_Users(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	first, err := store.IsFirstUser(ctx)
	require.NoError(t, err)
	assert.True(t, first)

	user := &models.UserProfile{Name: "A", Email: "a@example.com", Role: models.RoleCommissioner}
	require.NoError(t, store.CreateUser(ctx, user))
	assert.NotEmpty(t, user.UID, "store assigns a uid")

	first, err = store.IsFirstUser(ctx)
	require.NoError(t, err)
	assert.False(t, first)

	byEmail, err := store.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.UID, byEmail.UID)

	require.NoError(t, store.UpdateUserCallSign(ctx, user.UID, "ALPHA-1"))
	require.NoError(t, store.UpdateUserRole(ctx, user.UID, models.RoleDispatch))
	got, err := store.GetUser(ctx, user.UID)
	require.NoError(t, err)
	assert.Equal(t, "ALPHA-1", got.CallSign)
	assert.Equal(t, models.RoleDispatch, got.Role)

	assert.ErrorIs(t, store.CreateUser(ctx, &models.UserProfile{UID: user.UID}), models.ErrEmailAlreadyExists)
	assert.ErrorIs(t, store.UpdateUserRole(ctx, "missing", models.RoleFD), models.ErrRecordNotFound)

	_, err = store.GetPasswordHash(ctx, user.UID)
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
	require.NoError(t, store.StorePasswordHash(ctx, user.UID, "hash"))
	hash, err := store.GetPasswordHash(ctx, user.UID)
	require.NoError(t, err)
	assert.Equal(t, "hash", hash)
}

func TestMemoryDB_IncidentOrdering(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	for _, unit := range []string{"first", "second", "third"} {
		require.NoError(t, store.CreateIncident(ctx, &models.Incident{Unit: unit, Status: models.StatusPending}))
	}

	incidents, err := store.ListIncidents(ctx)
	require.NoError(t, err)
	require.Len(t, incidents, 3)
	assert.Equal(t, "third", incidents[0].Unit)
	assert.Equal(t, "first", incidents[2].Unit)
	for i := 1; i < len(incidents); i++ {
		assert.False(t, incidents[i].CreatedAt.After(incidents[i-1].CreatedAt))
	}
}

func TestMemoryDB_CommOrdering(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, store.CreateComm(ctx, &models.Comm{Unit: "D1", Message: msg}))
	}

	comms, err := store.ListComms(ctx)
	require.NoError(t, err)
	require.Len(t, comms, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{comms[0].Message, comms[1].Message, comms[2].Message})
}

func TestMemoryDB_PrefixSearch(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	require.NoError(t, store.CreateIndividual(ctx, &models.Individual{Name: "John A. Smith", Guns: []string{"Glock 17"}}))
	require.NoError(t, store.CreateIndividual(ctx, &models.Individual{Name: "Jane B. Doe"}))

	names := func(prefix string) []string {
		found, err := store.SearchIndividualsByName(ctx, prefix)
		require.NoError(t, err)
		out := []string{}
		for _, i := range found {
			out = append(out, i.Name)
		}
		return out
	}

	assert.Equal(t, []string{"John A. Smith"}, names("Jo"))
	assert.ElementsMatch(t, []string{"John A. Smith", "Jane B. Doe"}, names("J"))
	assert.Empty(t, names("z"))
	assert.Empty(t, names("jo"), "prefix match is case-sensitive")

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		found, err := store.GetIndividualByName(ctx, "John A. Smith")
		require.NoError(t, err)
		found.Guns[0] = "tampered"

		again, err := store.GetIndividualByName(ctx, "John A. Smith")
		require.NoError(t, err)
		assert.Equal(t, "Glock 17", again.Guns[0])
	})
}

func TestMemoryDB_Vehicles(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	v := &models.Vehicle{Plate: "ABC-123", Model: "Sedan", Owner: "John A. Smith", RegistrationStatus: "Valid"}
	require.NoError(t, store.CreateVehicle(ctx, v))

	byPlate, err := store.GetVehiclesByPlate(ctx, "ABC-123")
	require.NoError(t, err)
	assert.Len(t, byPlate, 1)

	byPlate, err = store.GetVehiclesByPlate(ctx, "ABC")
	require.NoError(t, err)
	assert.Empty(t, byPlate, "plate lookup is an exact match")

	byOwner, err := store.SearchVehiclesByOwner(ctx, "John")
	require.NoError(t, err)
	assert.Len(t, byOwner, 1)

	v.RegistrationStatus = "Expired"
	require.NoError(t, store.UpdateVehicle(ctx, v))
	exact, err := store.GetVehiclesByOwner(ctx, "John A. Smith")
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "Expired", exact[0].RegistrationStatus)

	assert.ErrorIs(t, store.UpdateVehicle(ctx, &models.Vehicle{ID: "nope"}), models.ErrRecordNotFound)
}

func TestMemoryDB_UpdateCivilianRecord(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	person := &models.Individual{Name: "John A. Smith", Address: "42 Oak Lane", Guns: []string{}}
	require.NoError(t, store.CreateIndividual(ctx, person))
	car := &models.Vehicle{Plate: "ABC-123", Model: "Sedan", Owner: "John A. Smith"}
	require.NoError(t, store.CreateVehicle(ctx, car))

	t.Run("MissingVehicleWritesNothing", func(t *testing.T) {
		edited := *person
		edited.Address = "1 New Street"
		err := store.UpdateCivilianRecord(ctx, &edited, []models.Vehicle{*car, {ID: "nope", Plate: "X"}})
		assert.ErrorIs(t, err, models.ErrRecordNotFound)

		stored, err := store.GetIndividualByName(ctx, "John A. Smith")
		require.NoError(t, err)
		assert.Equal(t, "42 Oak Lane", stored.Address)
	})

	t.Run("SavesTogether", func(t *testing.T) {
		edited := *person
		edited.Address = "1 New Street"
		vehicle := *car
		vehicle.RegistrationStatus = "Expired"
		require.NoError(t, store.UpdateCivilianRecord(ctx, &edited, []models.Vehicle{vehicle}))

		stored, err := store.GetIndividualByName(ctx, "John A. Smith")
		require.NoError(t, err)
		assert.Equal(t, "1 New Street", stored.Address)
		vehicles, err := store.GetVehiclesByOwner(ctx, "John A. Smith")
		require.NoError(t, err)
		require.Len(t, vehicles, 1)
		assert.Equal(t, "Expired", vehicles[0].RegistrationStatus)
	})
}

func TestMemoryDB_WatchIncidents(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	require.NoError(t, store.CreateIncident(ctx, &models.Incident{Unit: "existing"}))

	feed, err := store.WatchIncidents(ctx)
	require.NoError(t, err)

	snapshot, err := feed.Next()
	require.NoError(t, err)
	require.Len(t, snapshot, 1, "first snapshot is delivered on subscribe")

	require.NoError(t, store.CreateIncident(ctx, &models.Incident{Unit: "new"}))
	snapshot, err = feed.Next()
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "new", snapshot[0].Unit)

	feed.Stop()
	_, err = feed.Next()
	assert.ErrorIs(t, err, iterator.Done)
}

func TestMemoryDB_WatchIncidentsByReporter(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	feed, err := store.WatchIncidentsByReporter(ctx, "civ-1")
	require.NoError(t, err)
	defer feed.Stop()

	snapshot, err := feed.Next()
	require.NoError(t, err)
	assert.Empty(t, snapshot)

	require.NoError(t, store.CreateIncident(ctx, &models.Incident{Unit: "other", ReporterID: "civ-2"}))
	require.NoError(t, store.CreateIncident(ctx, &models.Incident{Unit: "mine", ReporterID: "civ-1"}))

	// Snapshots coalesce, so the latest one holds only the reporter's incident.
	snapshot, err = feed.Next()
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "mine", snapshot[0].Unit)
}

func TestMemoryDB_FeedEndsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := newStore()

	feed, err := store.WatchComms(ctx)
	require.NoError(t, err)
	_, err = feed.Next()
	require.NoError(t, err)

	cancel()
	_, err = feed.Next()
	assert.ErrorIs(t, err, iterator.Done)
	feed.Stop()
}

func TestMemoryDB_ClearCollection(t *testing.T) {
	ctx := context.Background()
	store := newStore()

	require.NoError(t, store.CreateComm(ctx, &models.Comm{Message: "a"}))
	require.NoError(t, store.CreateComm(ctx, &models.Comm{Message: "b"}))

	n, err := store.ClearCollection(ctx, models.CollectionComms)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	comms, err := store.ListComms(ctx)
	require.NoError(t, err)
	assert.Empty(t, comms)
}
