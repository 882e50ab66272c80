package ports

import (
	"context"
	"strings"

	"github.com/fieldops/job-tracker/internal/core/domain"
)

// JobFilter carries all query parameters for listing jobs. Predicates are
// conjunctive: a job matches iff every specified predicate matches.
type JobFilter struct {
	Status     domain.Status // "" = any status
	LocationID *string       // nil = no location filter
	Keyword    string        // optional: case-sensitive substring of the description
	Owner      string        // optional: match jobs owned by this login handle
}

// Matches reports whether job satisfies every specified predicate.
func (f JobFilter) Matches(job *domain.Job) bool {
	if f.Status != "" && job.Status != f.Status {
		return false
	}
	if f.LocationID != nil && job.LocationID != *f.LocationID {
		return false
	}
	// Keyword match is case-sensitive, mirroring the device-side search.
	if f.Keyword != "" && !strings.Contains(job.Description, f.Keyword) {
		return false
	}
	if f.Owner != "" && job.Owner != f.Owner {
		return false
	}
	return true
}

// ChangeListener is a handle on the store's change feed. Events() yields
// every committed change in commit order until Close() is called. Close is
// idempotent; no events are delivered after it returns.
type ChangeListener interface {
	Events() <-chan domain.ChangeEvent
	Close()
}

// EntityStore is the local replica: the single source of truth for reads on
// this device. Writes to the same record are linearizable; every committed
// write is visible to subsequent reads before its ChangeEvent is emitted.
type EntityStore interface {
	GetJob(id string) (*domain.Job, error)
	GetLocation(id string) (*domain.Location, error)
	GetUser(id string) (*domain.UserProfile, error)

	// ListJobs returns matching jobs in creation order.
	ListJobs(filter JobFilter) ([]*domain.Job, error)
	// ListLocations returns all locations in creation order.
	ListLocations() ([]*domain.Location, error)

	// PutJob inserts or replaces a job (last-write-wins). remote marks
	// changes delivered by the sync layer.
	PutJob(ctx context.Context, job *domain.Job, remote bool) error
	PutLocation(ctx context.Context, loc *domain.Location, remote bool) error
	PutUser(ctx context.Context, user *domain.UserProfile, remote bool) error

	// TransitionJob atomically moves a job from expected to next, stamping
	// newOwner (empty clears it). The precondition is evaluated under the
	// same exclusion as the write: it fails with domain.ErrStatusChanged
	// when the stored status no longer equals expected, and with
	// domain.ErrNotOwner when expectedOwner is non-nil and the stored
	// owner differs. On failure nothing is written.
	TransitionJob(ctx context.Context, id string, expected domain.Status, expectedOwner *string, next domain.Status, newOwner string) (*domain.Job, error)

	// EvictJobs drops jobs that left every active subscription scope,
	// emitting ChangeEvict (never ChangeDelete) per dropped record.
	EvictJobs(ctx context.Context, ids []string) error

	// Subscribe registers a change-feed listener with the given buffer.
	Subscribe(buffer int) ChangeListener
}
