package service

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/metrics"
)

// OwnerScope selects whose jobs a watch covers.
type OwnerScope string

const (
	// OwnerAny matches jobs regardless of owner.
	OwnerAny OwnerScope = "any"
	// OwnerMine matches jobs owned by the current user.
	OwnerMine OwnerScope = "mine"
)

// WatchFilter is the declarative shape of a live job query. Predicates are
// conjunctive.
type WatchFilter struct {
	Status     domain.Status
	LocationID *string
	Keyword    string
	OwnerScope OwnerScope
}

const watchBuffer = 16

// LiveQueryService maintains live filtered views over the replica. Each
// registration owns a single goroutine, so a consumer never observes
// out-of-order emissions for its own watch; distinct watches are
// independent and recompute straight from the store.
type LiveQueryService struct {
	store   ports.EntityStore
	subs    ports.SubscriptionManager
	session ports.Session
	sink    metrics.Sink
	log     zerolog.Logger
}

func NewLiveQueryService(store ports.EntityStore, subs ports.SubscriptionManager, session ports.Session, sink metrics.Sink, log zerolog.Logger) *LiveQueryService {
	return &LiveQueryService{store: store, subs: subs, session: session, sink: sink, log: log}
}

// Watch is one live query registration. Results() republishes the full
// ordered result set after every relevant change; callers own any diffing.
type Watch struct {
	out  chan []*domain.Job
	done chan struct{}
	once sync.Once
}

// Results returns the emission channel. It closes after Close.
func (w *Watch) Results() <-chan []*domain.Job {
	return w.out
}

// Close releases the registration. The results channel closes once the
// watch goroutine winds down; no further emissions follow.
func (w *Watch) Close() {
	w.once.Do(func() { close(w.done) })
}

// Watch registers a live query. The first emission is the current matching
// set, or an empty set when the jobs subscription has not finished its
// initial sync; the full set follows as soon as readiness arrives.
func (s *LiveQueryService) Watch(filter WatchFilter) *Watch {
	w := &Watch{
		out:  make(chan []*domain.Job, watchBuffer),
		done: make(chan struct{}),
	}
	// Subscribing before the initial materialization means no change can
	// slip between the snapshot and the event loop.
	listener := s.store.Subscribe(0)
	s.sink.WatchRegistered()
	go s.run(w, filter, listener)
	return w
}

func (s *LiveQueryService) run(w *Watch, filter WatchFilter, listener ports.ChangeListener) {
	defer func() {
		listener.Close()
		close(w.out)
		s.sink.WatchClosed()
	}()

	last := s.materialize(filter)
	if !s.emit(w, last) {
		return
	}

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-listener.Events():
			if !ok {
				return
			}
			if !s.relevant(ev, filter) {
				continue
			}
			next := s.materialize(filter)
			if reflect.DeepEqual(next, last) {
				continue
			}
			last = next
			if !s.emit(w, next) {
				return
			}
		}
	}
}

// relevant filters the change feed down to events that can move this
// watch's result set.
func (s *LiveQueryService) relevant(ev domain.ChangeEvent, filter WatchFilter) bool {
	switch ev.Kind {
	case domain.ChangeReady:
		return ev.ID == ports.SubJobs
	default:
	}
	if ev.Entity == domain.EntityJob {
		return true
	}
	// An owner-scoped watch resolves the current user's email from the
	// profile row, so profile changes can change the result set.
	return ev.Entity == domain.EntityUser && filter.OwnerScope == OwnerMine
}

// materialize computes the current full result set. While the jobs
// subscription is not ready the result is always empty, never partial.
func (s *LiveQueryService) materialize(filter WatchFilter) []*domain.Job {
	if !s.subs.IsReady(ports.SubJobs) {
		return []*domain.Job{}
	}

	f := ports.JobFilter{
		Status:     filter.Status,
		LocationID: filter.LocationID,
		Keyword:    filter.Keyword,
	}
	if filter.OwnerScope == OwnerMine {
		email, ok := s.ownerEmail()
		if !ok {
			return []*domain.Job{}
		}
		f.Owner = email
	}

	jobs, err := s.store.ListJobs(f)
	if err != nil {
		// Transient store trouble is a liveness gap for watchers, not a
		// failure: keep the previous emission semantics by reporting an
		// empty set and log.
		s.log.Error().Err(err).Msg("live query recompute failed")
		return []*domain.Job{}
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	return jobs
}

func (s *LiveQueryService) emit(w *Watch, jobs []*domain.Job) bool {
	select {
	case <-w.done:
		return false
	case w.out <- jobs:
		s.sink.EmissionPublished()
		return true
	}
}

// ownerEmail resolves the login handle that stamps job ownership for the
// current user.
func (s *LiveQueryService) ownerEmail() (string, bool) {
	userID, ok := s.session.CurrentUserID()
	if !ok {
		return "", false
	}
	user, err := s.store.GetUser(userID)
	if err != nil {
		return "", false
	}
	return user.Email, true
}
