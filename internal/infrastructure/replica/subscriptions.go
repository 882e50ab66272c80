package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/metrics"
)

// Subscriptions tracks which record scopes are replicated into the store
// and gates queries until a scope's initial data has arrived.
type Subscriptions struct {
	store *Store
	sync  ports.SyncClient
	sink  metrics.Sink
	log   zerolog.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	scope ports.Scope
	done  chan struct{} // closed when the bootstrap finishes, ok or not
	err   error         // set before done closes
	ready bool          // true once the initial data set is in the store
}

// NewSubscriptions creates a manager bootstrapping from the given sync
// client into store.
func NewSubscriptions(store *Store, syncClient ports.SyncClient, sink metrics.Sink, log zerolog.Logger) *Subscriptions {
	return &Subscriptions{
		store: store,
		sync:  syncClient,
		sink:  sink,
		log:   log,
		subs:  make(map[string]*subscription),
	}
}

// Ensure registers a subscription and blocks until its initial data is in
// the store. Concurrent calls with the same name coalesce on a single
// bootstrap: exactly one caller loads the data, the rest wait on it, and
// the store sees each record once. A failed bootstrap is forgotten so a
// later Ensure can retry.
func (m *Subscriptions) Ensure(ctx context.Context, name string, scope ports.Scope) error {
	m.mu.Lock()
	sub, ok := m.subs[name]
	if ok {
		m.mu.Unlock()
		return m.await(ctx, name, sub)
	}

	sub = &subscription{scope: scope, done: make(chan struct{})}
	m.subs[name] = sub
	m.mu.Unlock()

	m.bootstrap(ctx, name, sub)
	return m.await(ctx, name, sub)
}

// IsReady reports whether the subscription's initial data set has arrived.
func (m *Subscriptions) IsReady(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subs[name]
	return ok && sub.ready
}

// Update replaces a subscription's scope. The new scope is bootstrapped
// first, then records outside every active scope are evicted. The
// subscription stays ready throughout: watchers see the evictions as
// ChangeEvict events, never spurious deletes.
func (m *Subscriptions) Update(ctx context.Context, name string, scope ports.Scope) error {
	m.mu.Lock()
	sub, ok := m.subs[name]
	if !ok {
		m.mu.Unlock()
		return m.Ensure(ctx, name, scope)
	}
	select {
	case <-sub.done:
	default:
		m.mu.Unlock()
		return fmt.Errorf("subscription %q: bootstrap still in flight", name)
	}
	sub.scope = scope
	m.mu.Unlock()

	data, err := m.sync.Bootstrap(ctx, scope)
	if err != nil {
		return wrapBootstrapErr(name, err)
	}
	if err := m.load(ctx, data); err != nil {
		return err
	}
	return m.evictOutOfScope(ctx)
}

// Scopes returns the active scopes, for out-of-scope checks.
func (m *Subscriptions) Scopes() []ports.Scope {
	m.mu.Lock()
	defer m.mu.Unlock()
	scopes := make([]ports.Scope, 0, len(m.subs))
	for _, sub := range m.subs {
		if sub.ready {
			scopes = append(scopes, sub.scope)
		}
	}
	return scopes
}

func (m *Subscriptions) bootstrap(ctx context.Context, name string, sub *subscription) {
	started := time.Now()
	data, err := m.sync.Bootstrap(ctx, sub.scope)
	if err == nil {
		err = m.load(ctx, data)
	}

	m.mu.Lock()
	if err != nil {
		sub.err = wrapBootstrapErr(name, err)
		// Forget the failed subscription so the next Ensure retries.
		delete(m.subs, name)
	} else {
		sub.ready = true
	}
	close(sub.done)
	m.mu.Unlock()

	if err == nil {
		m.store.AnnounceReady(name)
		m.sink.BootstrapCompleted(name, time.Since(started).Seconds())
		m.log.Info().Str("subscription", name).Msg("subscription ready")
	} else {
		m.log.Warn().Err(err).Str("subscription", name).Msg("subscription bootstrap failed")
	}
}

func (m *Subscriptions) await(ctx context.Context, name string, sub *subscription) error {
	select {
	case <-sub.done:
		return sub.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("subscription %q: %w", name, domain.ErrTimeout)
		}
		return ctx.Err()
	}
}

// load applies a bootstrap data set to the store as remote changes.
func (m *Subscriptions) load(ctx context.Context, data *ports.BootstrapData) error {
	for _, loc := range data.Locations {
		if err := m.store.PutLocation(ctx, loc, true); err != nil {
			return err
		}
	}
	for _, user := range data.Users {
		if err := m.store.PutUser(ctx, user, true); err != nil {
			return err
		}
	}
	for _, job := range data.Jobs {
		if err := m.store.PutJob(ctx, job, true); err != nil {
			return err
		}
	}
	return nil
}

// evictOutOfScope drops jobs no active scope covers. Non-job entities are
// only ever subscribed whole, so jobs are the only evictable records.
func (m *Subscriptions) evictOutOfScope(ctx context.Context) error {
	scopes := m.Scopes()
	all, err := m.store.ListJobs(ports.JobFilter{})
	if err != nil {
		return err
	}

	var evict []string
	for _, job := range all {
		covered := false
		for _, scope := range scopes {
			if scope.Covers(job) {
				covered = true
				break
			}
		}
		if !covered {
			evict = append(evict, job.ID)
		}
	}
	if len(evict) == 0 {
		return nil
	}
	m.log.Info().Int("count", len(evict)).Msg("evicting jobs outside active scopes")
	return m.store.EvictJobs(ctx, evict)
}

func wrapBootstrapErr(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("subscription %q: %w", name, domain.ErrTimeout)
	}
	return fmt.Errorf("subscription %q: %w", name, err)
}
