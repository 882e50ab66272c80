package ports

import (
	"context"

	"github.com/fieldops/job-tracker/internal/core/domain"
)

// Canonical subscription names, matching the remote collection scopes.
const (
	SubJobs      = "jobs"
	SubLocations = "locations"
	SubUsers     = "users"
)

// Scope declares which subset of a collection a subscription replicates.
type Scope struct {
	Entity domain.EntityKind
	// LocationID narrows a jobs scope to one location. Nil = all jobs.
	LocationID *string
	// UserID narrows a users scope to a single profile row.
	UserID string
}

// Covers reports whether a job belongs to this scope. Non-job scopes cover
// nothing.
func (s Scope) Covers(job *domain.Job) bool {
	if s.Entity != domain.EntityJob {
		return false
	}
	return s.LocationID == nil || job.LocationID == *s.LocationID
}

// BootstrapData is the initial record set for a scope.
type BootstrapData struct {
	Jobs      []*domain.Job
	Locations []*domain.Location
	Users     []*domain.UserProfile
}

// OutboundMutation is a locally committed write queued for remote
// propagation. MutationID deduplicates redelivery on the remote side.
type OutboundMutation struct {
	MutationID string
	Entity     domain.EntityKind
	Job        *domain.Job
	Location   *domain.Location
	User       *domain.UserProfile
}

// InboundChange is a remote change delivered by the sync layer. EventID is
// stable across redeliveries and is used for idempotent application.
type InboundChange struct {
	EventID string
	Entity  domain.EntityKind
	Kind    domain.ChangeKind
	// RecordID identifies the affected record when no body travels with
	// the change (deletes).
	RecordID string
	Job      *domain.Job
	Location *domain.Location
	User     *domain.UserProfile
}

// SyncClient is the replication collaborator. This core never resolves
// multi-device conflicts itself; it hands committed writes to Push and
// applies whatever Pull delivers.
type SyncClient interface {
	// Bootstrap fetches the full current record set for a scope.
	Bootstrap(ctx context.Context, scope Scope) (*BootstrapData, error)
	// Push queues one committed local mutation for propagation.
	// Fire-and-forget from the core's perspective: delivery retries are
	// the sync layer's concern.
	Push(ctx context.Context, m OutboundMutation) error
	// Pull returns a stream of remote changes. The channel closes when
	// ctx is cancelled.
	Pull(ctx context.Context) (<-chan InboundChange, error)
}

// Propagator accepts locally committed mutations for ordered outbound
// delivery through the sync client. Enqueue never blocks the write path.
type Propagator interface {
	Enqueue(m OutboundMutation)
}

// SubscriptionManager declares which record sets are replicated locally and
// gates queries until a scope's initial data has arrived.
type SubscriptionManager interface {
	// Ensure registers a subscription and blocks until its initial data
	// is in the store. Idempotent: concurrent calls with the same name
	// coalesce on one bootstrap.
	Ensure(ctx context.Context, name string, scope Scope) error
	IsReady(name string) bool
	// Update replaces a subscription's scope, re-bootstrapping and
	// evicting records that no longer fall inside any active scope.
	Update(ctx context.Context, name string, scope Scope) error
}
