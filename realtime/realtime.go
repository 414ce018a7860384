// Package realtime keeps subscribers in step with live store queries.
//
// Each Subscription owns one store feed and one goroutine that delivers full,
// already-ordered snapshots to a callback. The first snapshot is delivered as
// soon as the feed produces it. Consumers replace what they display wholesale
// on every delivery. There is no shared cache: N subscribers to the same
// query hold N independent feeds.
package realtime

import (
	"context"
	"errors"
	"sync"

	"responseready/db"

	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// Registry tracks open subscriptions.
type Registry struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	log  zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		subs: map[*Subscription]struct{}{},
		log:  logger.With().Str("component", "realtime").Logger(),
	}
}

// Active returns the number of open subscriptions.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// CloseAll releases every open subscription.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	subs := make([]*Subscription, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

func (r *Registry) add(s *Subscription) {
	r.mu.Lock()
	r.subs[s] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) remove(s *Subscription) {
	r.mu.Lock()
	delete(r.subs, s)
	r.mu.Unlock()
}

// Subscription is a long-lived registration against one live query.
type Subscription struct {
	name   string
	stop   func()
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	err    error
}

// Subscribe opens a feed with open and delivers each snapshot to deliver
// until the subscription is closed, ctx ends, or the feed fails.
//
// deliver runs on the subscription's goroutine, one snapshot at a time. After
// Close returns, deliver is never called again. Close must not be called from
// inside deliver.
func Subscribe[T any](ctx context.Context, r *Registry, name string, open func(context.Context) (db.Feed[T], error), deliver func([]T)) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	feed, err := open(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Subscription{
		name:   name,
		stop:   feed.Stop,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.add(s)
	r.log.Debug().Str("feed", name).Msg("📡 Subscription opened")

	go func() {
		defer func() {
			s.release()
			r.remove(s)
			close(s.done)
			r.log.Debug().Str("feed", name).Msg("📴 Subscription released")
		}()

		for {
			snapshot, err := feed.Next()
			if err != nil {
				if !errors.Is(err, iterator.Done) {
					s.err = err
					r.log.Error().Err(err).Str("feed", name).Msg("❌ Realtime feed failed")
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			deliver(snapshot)
		}
	}()

	return s, nil
}

// Close releases the subscription and waits until no further delivery can
// happen. It is safe to call more than once.
func (s *Subscription) Close() {
	s.release()
	<-s.done
}

func (s *Subscription) release() {
	s.once.Do(func() {
		s.cancel()
		s.stop()
	})
}

// Done is closed once the subscription has stopped delivering, whether it was
// closed or its feed ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err returns the feed error that ended the subscription, if any. It is only
// meaningful after Done is closed.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}
