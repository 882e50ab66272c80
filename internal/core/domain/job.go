package domain

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusUnassigned Status = "UNASSIGNED"
	StatusAccepted   Status = "ACCEPTED"
	StatusDone       Status = "DONE"
)

// validTransitions defines the allowed state machine transitions.
// Done is terminal and deliberately absent as a key.
var validTransitions = map[Status][]Status{
	StatusUnassigned: {StatusAccepted},
	StatusAccepted:   {StatusDone, StatusUnassigned},
}

var (
	// ErrStatusChanged reports that a conditional transition lost the race:
	// the stored status no longer matched the expected one at commit time.
	// This is an expected business outcome under contention, not a fault.
	// Callers should refresh their view of the job before deciding anything.
	ErrStatusChanged = errors.New("job status changed concurrently")

	// ErrInvalidTransition reports a (from, to) pair outside the table.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotOwner reports an owner-gated transition attempted by a non-owner.
	ErrNotOwner = errors.New("job is owned by another user")

	ErrJobNotFound      = errors.New("job not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrUserNotFound     = errors.New("user not found")

	// ErrTimeout reports a network-bound operation that exceeded its
	// deadline before any state was applied. Safe to retry with backoff.
	ErrTimeout = errors.New("operation timed out")
)

// CanTransitionTo reports whether a transition from s to next is in the table.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s has no outgoing transitions.
func (s Status) Terminal() bool {
	return len(validTransitions[s]) == 0
}

// RequiresOwner reports whether the transition from s to next may only be
// performed by the job's current owner. Accepting an unassigned job is open
// to any authenticated user; completing or cancelling an accepted job is
// owner-gated.
func (s Status) RequiresOwner(next Status) bool {
	return s == StatusAccepted
}

// Job is a unit of field work tied to a location. The id, creation time and
// location never change after creation; status and owner move together
// through the state machine.
type Job struct {
	ID          string    `json:"id" bson:"_id"`
	Status      Status    `json:"status" bson:"status"`
	Description string    `json:"description" bson:"description"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
	LocationID  string    `json:"location_id" bson:"location_id"`
	// Owner is the login handle (email) of the user responsible for the
	// job. Empty exactly when Status is Unassigned.
	Owner string `json:"owner,omitempty" bson:"owner,omitempty"`
}

// Clone returns a copy safe to hand to callers while the original stays in
// the store. Jobs in the store must never be modified in place.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	return &c
}

// OwnerConsistent reports whether the owner field agrees with the status:
// non-empty iff the job is Accepted or Done.
func (j *Job) OwnerConsistent() bool {
	if j.Status == StatusUnassigned {
		return j.Owner == ""
	}
	return j.Owner != ""
}
