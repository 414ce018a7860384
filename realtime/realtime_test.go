package realtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"responseready/db"
	"responseready/models"
	"responseready/realtime"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects snapshots and signals each delivery.
type recorder[T any] struct {
	mu        sync.Mutex
	snapshots [][]T
	ch        chan []T
}

func newRecorder[T any]() *recorder[T] {
	return &recorder[T]{ch: make(chan []T, 16)}
}

func (r *recorder[T]) deliver(snapshot []T) {
	r.mu.Lock()
	r.snapshots = append(r.snapshots, snapshot)
	r.mu.Unlock()
	r.ch <- snapshot
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder[T]) next(t *testing.T) []T {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func TestSubscribe_DeliversInitialAndLaterSnapshots(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	registry := realtime.NewRegistry(zerolog.Nop())
	require.NoError(t, store.CreateComm(ctx, &models.Comm{Unit: "D1", Message: "first"}))

	rec := newRecorder[models.Comm]()
	sub, err := realtime.Subscribe(ctx, registry, "comms", store.WatchComms, rec.deliver)
	require.NoError(t, err)
	defer sub.Close()

	initial := rec.next(t)
	require.Len(t, initial, 1, "at least one snapshot on subscribe")
	assert.Equal(t, 1, registry.Active())

	require.NoError(t, store.CreateComm(ctx, &models.Comm{Unit: "D1", Message: "second"}))
	updated := rec.next(t)
	require.Len(t, updated, 2)
	assert.Equal(t, "second", updated[1].Message)
}

func TestSubscribe_NoDeliveryAfterClose(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	registry := realtime.NewRegistry(zerolog.Nop())

	rec := newRecorder[models.Incident]()
	sub, err := realtime.Subscribe(ctx, registry, "incidents", store.WatchIncidents, rec.deliver)
	require.NoError(t, err)
	rec.next(t)

	sub.Close()
	sub.Close()
	delivered := rec.count()

	require.NoError(t, store.CreateIncident(ctx, &models.Incident{Unit: "after"}))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, delivered, rec.count(), "callback fired after release")
	assert.Equal(t, 0, registry.Active())
	assert.NoError(t, sub.Err())
}

func TestSubscribe_IndependentSubscriptions(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	registry := realtime.NewRegistry(zerolog.Nop())

	a := newRecorder[models.Comm]()
	b := newRecorder[models.Comm]()
	subA, err := realtime.Subscribe(ctx, registry, "comms", store.WatchComms, a.deliver)
	require.NoError(t, err)
	subB, err := realtime.Subscribe(ctx, registry, "comms", store.WatchComms, b.deliver)
	require.NoError(t, err)
	defer subB.Close()
	a.next(t)
	b.next(t)
	assert.Equal(t, 2, registry.Active())

	subA.Close()
	require.NoError(t, store.CreateComm(ctx, &models.Comm{Message: "ping"}))

	got := b.next(t)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, registry.Active())
}

func TestSubscribe_ContextCancelEndsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := db.NewMemoryDB()
	registry := realtime.NewRegistry(zerolog.Nop())

	rec := newRecorder[models.Comm]()
	sub, err := realtime.Subscribe(ctx, registry, "comms", store.WatchComms, rec.deliver)
	require.NoError(t, err)
	rec.next(t)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end with its context")
	}
	assert.Equal(t, 0, registry.Active())
}

func TestSubscribe_OpenError(t *testing.T) {
	registry := realtime.NewRegistry(zerolog.Nop())
	boom := errors.New("boom")

	_, err := realtime.Subscribe(context.Background(), registry, "broken",
		func(context.Context) (db.Feed[models.Comm], error) { return nil, boom },
		func([]models.Comm) {})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, registry.Active())
}

type failingFeed struct{ err error }

func (f failingFeed) Next() ([]models.Comm, error) { return nil, f.err }
func (f failingFeed) Stop()                        {}

func TestSubscribe_FeedFailure(t *testing.T) {
	registry := realtime.NewRegistry(zerolog.Nop())
	failure := errors.New("listener lost")

	sub, err := realtime.Subscribe(context.Background(), registry, "comms",
		func(context.Context) (db.Feed[models.Comm], error) { return failingFeed{err: failure}, nil },
		func([]models.Comm) { t.Error("no snapshot expected") })
	require.NoError(t, err)

	<-sub.Done()
	assert.ErrorIs(t, sub.Err(), failure)
}

func TestRegistry_CloseAll(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryDB()
	registry := realtime.NewRegistry(zerolog.Nop())

	for i := 0; i < 3; i++ {
		rec := newRecorder[models.Comm]()
		_, err := realtime.Subscribe(ctx, registry, "comms", store.WatchComms, rec.deliver)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, registry.Active())

	registry.CloseAll()
	assert.Equal(t, 0, registry.Active())
}
