package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"responseready/db"
	"responseready/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newFirestore connects to the Firestore emulator. The tests are skipped
// unless FIRESTORE_EMULATOR_HOST is set.
func newFirestore(t *testing.T) *db.FirestoreDB {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx := context.Background()
	app, err := db.NewFirebaseApp(ctx, "demo-responseready", "")
	require.NoError(t, err)
	store, err := db.NewFirestoreDB(ctx, app, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, name := range []string{models.CollectionIncidents, models.CollectionComms, models.CollectionIndividuals, models.CollectionVehicles} {
			_, _ = store.ClearCollection(ctx, name)
		}
		store.Close()
	})
	return store
}

func TestFirestoreDB_CreateReturnsServerTimestamp(t *testing.T) {
	store := newFirestore(t)
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	t.Run("Incident", func(t *testing.T) {
		incident := &models.Incident{Unit: "ADAM-12", Type: "Traffic", Location: "5th and Main", Status: models.StatusPending}
		require.NoError(t, store.CreateIncident(ctx, incident))
		assert.True(t, incident.CreatedAt.After(start), "got %v", incident.CreatedAt)

		stored, err := store.GetIncident(ctx, incident.ID)
		require.NoError(t, err)
		assert.True(t, stored.CreatedAt.Equal(incident.CreatedAt))
	})

	t.Run("Comm", func(t *testing.T) {
		comm := &models.Comm{Unit: "DISPATCH", Message: "Copy"}
		require.NoError(t, store.CreateComm(ctx, comm))
		assert.True(t, comm.CreatedAt.After(start), "got %v", comm.CreatedAt)
	})

	t.Run("ExplicitTimestampKept", func(t *testing.T) {
		at := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
		comm := &models.Comm{Unit: "DISPATCH", Message: "Seeded", CreatedAt: at}
		require.NoError(t, store.CreateComm(ctx, comm))
		assert.True(t, at.Equal(comm.CreatedAt))
	})
}

func TestFirestoreDB_UpdateCivilianRecordIsAtomic(t *testing.T) {
	store := newFirestore(t)
	ctx := context.Background()

	person := &models.Individual{Name: "John A. Smith", Address: "42 Oak Lane", Guns: []string{}}
	require.NoError(t, store.CreateIndividual(ctx, person))

	edited := *person
	edited.Address = "1 New Street"
	err := store.UpdateCivilianRecord(ctx, &edited, []models.Vehicle{{ID: "missing", Plate: "X", Owner: "John A. Smith"}})
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	stored, err := store.GetIndividualByName(ctx, "John A. Smith")
	require.NoError(t, err)
	assert.Equal(t, "42 Oak Lane", stored.Address)
}
