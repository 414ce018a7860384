package main

import (
	"context"
	"testing"
	"time"

	"responseready/db"
	"responseready/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFixtures(t *testing.T) {
	t.Run("BuiltIn", func(t *testing.T) {
		fixtures, err := ParseFixtures(defaultFixtures)
		require.NoError(t, err)
		assert.Len(t, fixtures.Incidents, 3)
		assert.Len(t, fixtures.Individuals, 2)
		assert.Len(t, fixtures.Vehicles, 2)
		assert.Len(t, fixtures.Comms, 3)
		assert.Equal(t, "Valid", fixtures.Individuals[0].GunLicenseStatus)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		_, err := ParseFixtures([]byte("incidents:\n  - type: Fire\n    status: Closed\n"))
		assert.ErrorContains(t, err, "unknown status")
	})

	t.Run("BadAge", func(t *testing.T) {
		_, err := ParseFixtures([]byte("comms:\n  - unit: X\n    message: hi\n    age: yesterday\n"))
		assert.ErrorContains(t, err, "invalid age")
	})

	t.Run("VehicleWithoutOwner", func(t *testing.T) {
		_, err := ParseFixtures([]byte("vehicles:\n  - plate: ABC123\n"))
		assert.ErrorIs(t, err, models.ErrValidationFailed)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	fixtures, err := ParseFixtures(defaultFixtures)
	require.NoError(t, err)

	now := time.Date(2024, 6, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, Seed(ctx, store, fixtures, now, zerolog.Nop()))

	t.Run("IncidentsNewestFirst", func(t *testing.T) {
		incidents, err := store.ListIncidents(ctx)
		require.NoError(t, err)
		require.Len(t, incidents, 3)
		assert.Equal(t, "Structure Fire", incidents[0].Type)
		assert.True(t, now.Add(-12*time.Minute).Equal(incidents[0].CreatedAt))
		assert.Equal(t, "Welfare Check", incidents[2].Type)
	})

	t.Run("CommsOldestFirst", func(t *testing.T) {
		comms, err := store.ListComms(ctx)
		require.NoError(t, err)
		require.Len(t, comms, 3)
		assert.Equal(t, "DISPATCH", comms[0].Unit)
		assert.Equal(t, "ENGINE-7", comms[2].Unit)
	})

	t.Run("RecordsLinked", func(t *testing.T) {
		vehicles, err := store.GetVehiclesByOwner(ctx, "John Doe")
		require.NoError(t, err)
		require.Len(t, vehicles, 1)
		assert.Equal(t, "ABC123", vehicles[0].Plate)
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, clearCollections(ctx, store, zerolog.Nop()))
		incidents, err := store.ListIncidents(ctx)
		require.NoError(t, err)
		assert.Empty(t, incidents)
	})
}
