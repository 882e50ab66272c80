package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/metrics"
)

// TransitionService is the write path for job status changes. All status
// mutations funnel through TryTransition, which enforces the state machine
// and the conditional-commit protocol that keeps two workers from claiming
// the same job.
type TransitionService struct {
	store      ports.EntityStore
	session    ports.Session
	propagator ports.Propagator
	sink       metrics.Sink
	log        zerolog.Logger
}

func NewTransitionService(store ports.EntityStore, session ports.Session, propagator ports.Propagator, sink metrics.Sink, log zerolog.Logger) *TransitionService {
	return &TransitionService{
		store:      store,
		session:    session,
		propagator: propagator,
		sink:       sink,
		log:        log,
	}
}

// TryTransition attempts to move a job from expected to next on behalf of
// the current user. It commits only if the stored status still equals
// expected at commit time; otherwise it fails with domain.ErrStatusChanged
// and changes nothing.
//
// ErrStatusChanged is an expected outcome under contention ("someone else
// took it"), not a fault. Callers should refresh their view of the job and
// let the user decide, never retry blindly with the same expectation.
func (s *TransitionService) TryTransition(ctx context.Context, jobID string, expected, next domain.Status) (*domain.Job, error) {
	userID, ok := s.session.CurrentUserID()
	if !ok {
		return nil, domain.ErrNotAuthenticated
	}
	actor, err := s.store.GetUser(userID)
	if err != nil {
		return nil, fmt.Errorf("resolve acting user: %w", err)
	}

	// The transition table is checked against the caller's expectation,
	// before touching the store: a pair outside the table is a
	// programming error, not a race.
	if !expected.CanTransitionTo(next) {
		s.sink.TransitionRejected("invalid_transition")
		return nil, fmt.Errorf("%s -> %s: %w", expected, next, domain.ErrInvalidTransition)
	}

	var expectedOwner *string
	if expected.RequiresOwner(next) {
		expectedOwner = &actor.Email
	}
	newOwner := actor.Email
	if next == domain.StatusUnassigned {
		newOwner = ""
	}

	job, err := s.store.TransitionJob(ctx, jobID, expected, expectedOwner, next, newOwner)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrStatusChanged):
			s.sink.TransitionConflict()
			s.log.Info().
				Str("job_id", jobID).
				Str("expected", string(expected)).
				Msg("transition lost the race")
		case errors.Is(err, domain.ErrNotOwner):
			s.sink.TransitionRejected("not_owner")
		case errors.Is(err, domain.ErrJobNotFound):
			s.sink.TransitionRejected("not_found")
		}
		return nil, err
	}

	s.sink.TransitionApplied(string(expected), string(next))
	s.log.Info().
		Str("job_id", jobID).
		Str("from", string(expected)).
		Str("to", string(next)).
		Str("owner", job.Owner).
		Msg("job transitioned")

	s.propagator.Enqueue(ports.OutboundMutation{
		MutationID: uuid.NewString(),
		Entity:     domain.EntityJob,
		Job:        job,
	})
	return job, nil
}

// CreateJob inserts a new Unassigned job with no owner. Plain last-write-
// wins: creation is the seed/admin path and carries no precondition.
func (s *TransitionService) CreateJob(ctx context.Context, description, locationID string) (*domain.Job, error) {
	job := &domain.Job{
		ID:          uuid.NewString(),
		Status:      domain.StatusUnassigned,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		LocationID:  locationID,
	}
	if err := s.store.PutJob(ctx, job, false); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.log.Info().Str("job_id", job.ID).Str("location_id", locationID).Msg("job created")
	s.propagator.Enqueue(ports.OutboundMutation{
		MutationID: uuid.NewString(),
		Entity:     domain.EntityJob,
		Job:        job,
	})
	return job.Clone(), nil
}

// GetJob returns the current local view of a job, for refreshing after a
// lost race.
func (s *TransitionService) GetJob(id string) (*domain.Job, error) {
	return s.store.GetJob(id)
}
