package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-memdb"
	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

const defaultListenerBuffer = 256

// Store is the local replica, the single source of truth for reads on this
// device. It is backed by go-memdb; records are stored immutably and cloned
// on the way in and out, so callers can never mutate store state in place.
//
// All writes are serialized through a single mutex. That makes writes to
// the same record linearizable, and the conditional transition's
// read-check-write runs entirely inside that critical section.
type Store struct {
	db  *memdb.MemDB
	log zerolog.Logger

	mu  sync.Mutex // guards all writes and seq
	seq int64

	listenerMu sync.Mutex
	listeners  map[int]*changeListener
	nextID     int
}

// New creates an empty replica store.
func New(log zerolog.Logger) (*Store, error) {
	db, err := memdb.NewMemDB(storeSchema())
	if err != nil {
		return nil, fmt.Errorf("replica schema: %w", err)
	}
	return &Store{
		db:        db,
		log:       log,
		listeners: make(map[int]*changeListener),
	}, nil
}

// GetJob returns the job with the given id.
func (s *Store) GetJob(id string) (*domain.Job, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(jobsTable, idIndex, id)
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if raw == nil {
		return nil, domain.ErrJobNotFound
	}
	return raw.(*jobRecord).Job.Clone(), nil
}

// GetLocation returns the location with the given id.
func (s *Store) GetLocation(id string) (*domain.Location, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(locationsTable, idIndex, id)
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	if raw == nil {
		return nil, domain.ErrLocationNotFound
	}
	return raw.(*locationRecord).Location.Clone(), nil
}

// GetUser returns the profile with the given id.
func (s *Store) GetUser(id string) (*domain.UserProfile, error) {
	txn := s.db.Txn(false)
	raw, err := txn.First(usersTable, idIndex, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if raw == nil {
		return nil, domain.ErrUserNotFound
	}
	return raw.(*userRecord).User.Clone(), nil
}

// ListJobs returns jobs matching filter, in creation order.
func (s *Store) ListJobs(filter ports.JobFilter) ([]*domain.Job, error) {
	txn := s.db.Txn(false)
	iter, err := txn.Get(jobsTable, seqIndex)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var jobs []*domain.Job
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		rec := raw.(*jobRecord)
		if filter.Matches(rec.Job) {
			jobs = append(jobs, rec.Job.Clone())
		}
	}
	return jobs, nil
}

// ListLocations returns all locations in creation order.
func (s *Store) ListLocations() ([]*domain.Location, error) {
	txn := s.db.Txn(false)
	iter, err := txn.Get(locationsTable, seqIndex)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	var locs []*domain.Location
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		locs = append(locs, raw.(*locationRecord).Location.Clone())
	}
	return locs, nil
}

// PutJob inserts or replaces a job (last-write-wins).
func (s *Store) PutJob(ctx context.Context, job *domain.Job, remote bool) error {
	if err := writeable(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	txn := s.db.Txn(true)
	prev, err := txn.First(jobsTable, idIndex, job.ID)
	if err != nil {
		txn.Abort()
		s.mu.Unlock()
		return fmt.Errorf("put job: %w", err)
	}
	rec := &jobRecord{ID: job.ID, Job: job.Clone()}
	kind := domain.ChangeUpdate
	if prev == nil {
		s.seq++
		rec.Seq = s.seq
		kind = domain.ChangeInsert
	} else {
		rec.Seq = prev.(*jobRecord).Seq
	}
	if err := txn.Insert(jobsTable, rec); err != nil {
		txn.Abort()
		s.mu.Unlock()
		return fmt.Errorf("put job: %w", err)
	}
	txn.Commit()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Entity: domain.EntityJob, ID: job.ID, Kind: kind, Remote: remote})
	return nil
}

// PutLocation inserts or replaces a location.
func (s *Store) PutLocation(ctx context.Context, loc *domain.Location, remote bool) error {
	if err := writeable(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	txn := s.db.Txn(true)
	prev, err := txn.First(locationsTable, idIndex, loc.ID)
	if err != nil {
		txn.Abort()
		s.mu.Unlock()
		return fmt.Errorf("put location: %w", err)
	}
	rec := &locationRecord{ID: loc.ID, Location: loc.Clone()}
	kind := domain.ChangeUpdate
	if prev == nil {
		s.seq++
		rec.Seq = s.seq
		kind = domain.ChangeInsert
	} else {
		rec.Seq = prev.(*locationRecord).Seq
	}
	if err := txn.Insert(locationsTable, rec); err != nil {
		txn.Abort()
		s.mu.Unlock()
		return fmt.Errorf("put location: %w", err)
	}
	txn.Commit()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Entity: domain.EntityLocation, ID: loc.ID, Kind: kind, Remote: remote})
	return nil
}

// PutUser inserts or replaces a profile row.
func (s *Store) PutUser(ctx context.Context, user *domain.UserProfile, remote bool) error {
	if err := writeable(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	txn := s.db.Txn(true)
	prev, err := txn.First(usersTable, idIndex, user.ID)
	if err != nil {
		txn.Abort()
		s.mu.Unlock()
		return fmt.Errorf("put user: %w", err)
	}
	kind := domain.ChangeUpdate
	if prev == nil {
		kind = domain.ChangeInsert
	}
	if err := txn.Insert(usersTable, &userRecord{ID: user.ID, User: user.Clone()}); err != nil {
		txn.Abort()
		s.mu.Unlock()
		return fmt.Errorf("put user: %w", err)
	}
	txn.Commit()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Entity: domain.EntityUser, ID: user.ID, Kind: kind, Remote: remote})
	return nil
}

// TransitionJob atomically moves a job from expected to next, stamping
// newOwner. The precondition checks and the write happen under the same
// lock, so concurrent callers racing for the same job serialize here and
// all but the first observe ErrStatusChanged.
func (s *Store) TransitionJob(ctx context.Context, id string, expected domain.Status, expectedOwner *string, next domain.Status, newOwner string) (*domain.Job, error) {
	if err := writeable(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	txn := s.db.Txn(true)
	raw, err := txn.First(jobsTable, idIndex, id)
	if err != nil {
		txn.Abort()
		s.mu.Unlock()
		return nil, fmt.Errorf("transition job: %w", err)
	}
	if raw == nil {
		txn.Abort()
		s.mu.Unlock()
		return nil, domain.ErrJobNotFound
	}
	prev := raw.(*jobRecord)
	if prev.Job.Status != expected {
		txn.Abort()
		s.mu.Unlock()
		return nil, fmt.Errorf("transition job %s: %w", id, domain.ErrStatusChanged)
	}
	if expectedOwner != nil && prev.Job.Owner != *expectedOwner {
		txn.Abort()
		s.mu.Unlock()
		return nil, fmt.Errorf("transition job %s: %w", id, domain.ErrNotOwner)
	}

	job := prev.Job.Clone()
	job.Status = next
	job.Owner = newOwner
	if err := txn.Insert(jobsTable, &jobRecord{ID: id, Seq: prev.Seq, Job: job}); err != nil {
		txn.Abort()
		s.mu.Unlock()
		return nil, fmt.Errorf("transition job: %w", err)
	}
	txn.Commit()
	s.mu.Unlock()

	s.publish(domain.ChangeEvent{Entity: domain.EntityJob, ID: id, Kind: domain.ChangeUpdate})
	return job.Clone(), nil
}

// EvictJobs drops jobs that left every active subscription scope. Missing
// ids are ignored. One ChangeEvict event is emitted per dropped record.
func (s *Store) EvictJobs(ctx context.Context, ids []string) error {
	if err := writeable(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	txn := s.db.Txn(true)
	var evicted []string
	for _, id := range ids {
		raw, err := txn.First(jobsTable, idIndex, id)
		if err != nil {
			txn.Abort()
			s.mu.Unlock()
			return fmt.Errorf("evict jobs: %w", err)
		}
		if raw == nil {
			continue
		}
		if err := txn.Delete(jobsTable, raw); err != nil {
			txn.Abort()
			s.mu.Unlock()
			return fmt.Errorf("evict jobs: %w", err)
		}
		evicted = append(evicted, id)
	}
	txn.Commit()
	s.mu.Unlock()

	for _, id := range evicted {
		s.publish(domain.ChangeEvent{Entity: domain.EntityJob, ID: id, Kind: domain.ChangeEvict, Remote: true})
	}
	return nil
}

// AnnounceReady publishes a synthetic readiness event for a subscription.
// Watchers gate their first full emission on it.
func (s *Store) AnnounceReady(name string) {
	s.publish(domain.ChangeEvent{ID: name, Kind: domain.ChangeReady})
}

// writeable maps an already-expired context to the retryable timeout error
// before any state is touched.
func writeable(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
		}
		return err
	}
	return nil
}
