package replica

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

func unassignedJob(id string) *domain.Job {
	return &domain.Job{
		ID:          id,
		Status:      domain.StatusUnassigned,
		Description: "job " + id,
		CreatedAt:   time.Now().UTC(),
		LocationID:  "loc-1",
	}
}

func TestStore_PutAndGetJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetJob("missing"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	job := unassignedJob("j1")
	if err := s.PutJob(ctx, job, false); err != nil {
		t.Fatalf("PutJob returned error: %v", err)
	}

	got, err := s.GetJob("j1")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if got.Description != "job j1" || got.Status != domain.StatusUnassigned {
		t.Fatalf("unexpected job: %+v", got)
	}

	// Mutating what Put or Get handed over must not touch store state.
	job.Description = "tampered"
	got.Status = domain.StatusDone
	again, _ := s.GetJob("j1")
	if again.Description != "job j1" || again.Status != domain.StatusUnassigned {
		t.Fatalf("store state was mutated through a shared pointer: %+v", again)
	}
}

func TestStore_ListJobsCreationOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.PutJob(ctx, unassignedJob(id), false); err != nil {
			t.Fatalf("PutJob(%s): %v", id, err)
		}
	}
	// Re-put the first record: an update keeps its original position.
	updated := unassignedJob("a")
	updated.Description = "job a v2"
	if err := s.PutJob(ctx, updated, false); err != nil {
		t.Fatalf("PutJob update: %v", err)
	}

	jobs, err := s.ListJobs(ports.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	for i, want := range []string{"a", "b", "c"} {
		if jobs[i].ID != want {
			t.Fatalf("position %d: got %s, want %s", i, jobs[i].ID, want)
		}
	}
	if jobs[0].Description != "job a v2" {
		t.Fatalf("update was not applied: %+v", jobs[0])
	}
}

func TestStore_ListJobsFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j1 := unassignedJob("j1")
	j2 := unassignedJob("j2")
	j2.LocationID = "loc-2"
	j3 := unassignedJob("j3")
	j3.Status = domain.StatusAccepted
	j3.Owner = "a@example.com"
	for _, j := range []*domain.Job{j1, j2, j3} {
		if err := s.PutJob(ctx, j, false); err != nil {
			t.Fatalf("PutJob: %v", err)
		}
	}

	loc := "loc-1"
	jobs, err := s.ListJobs(ports.JobFilter{Status: domain.StatusUnassigned, LocationID: &loc})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("expected only j1, got %+v", jobs)
	}
}

func TestStore_TransitionJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutJob(ctx, unassignedJob("j1"), false); err != nil {
		t.Fatalf("PutJob: %v", err)
	}

	job, err := s.TransitionJob(ctx, "j1", domain.StatusUnassigned, nil, domain.StatusAccepted, "a@example.com")
	if err != nil {
		t.Fatalf("TransitionJob: %v", err)
	}
	if job.Status != domain.StatusAccepted || job.Owner != "a@example.com" {
		t.Fatalf("unexpected result: %+v", job)
	}

	// Same expectation again: the stored status moved on.
	if _, err := s.TransitionJob(ctx, "j1", domain.StatusUnassigned, nil, domain.StatusAccepted, "b@example.com"); !errors.Is(err, domain.ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged, got %v", err)
	}
	stored, _ := s.GetJob("j1")
	if stored.Owner != "a@example.com" {
		t.Fatalf("failed transition must write nothing, got owner %q", stored.Owner)
	}

	// Owner-gated step by the wrong user.
	other := "b@example.com"
	if _, err := s.TransitionJob(ctx, "j1", domain.StatusAccepted, &other, domain.StatusDone, other); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	// The owner completes it.
	owner := "a@example.com"
	done, err := s.TransitionJob(ctx, "j1", domain.StatusAccepted, &owner, domain.StatusDone, owner)
	if err != nil {
		t.Fatalf("owner completion failed: %v", err)
	}
	if done.Status != domain.StatusDone {
		t.Fatalf("expected Done, got %s", done.Status)
	}
}

func TestStore_TransitionJobNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.TransitionJob(context.Background(), "nope", domain.StatusUnassigned, nil, domain.StatusAccepted, "a@example.com"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_TransitionJobConcurrentClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.PutJob(ctx, unassignedJob("contested"), false); err != nil {
		t.Fatalf("PutJob: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	winners := make(chan string, workers)
	losers := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := string(rune('a'+n%26)) + "@example.com"
			if _, err := s.TransitionJob(ctx, "contested", domain.StatusUnassigned, nil, domain.StatusAccepted, owner); err != nil {
				losers <- err
				return
			}
			winners <- owner
		}(i)
	}
	wg.Wait()
	close(winners)
	close(losers)

	var won []string
	for w := range winners {
		won = append(won, w)
	}
	if len(won) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(won))
	}
	for err := range losers {
		if !errors.Is(err, domain.ErrStatusChanged) {
			t.Fatalf("loser got %v, want ErrStatusChanged", err)
		}
	}

	job, _ := s.GetJob("contested")
	if job.Status != domain.StatusAccepted || job.Owner != won[0] {
		t.Fatalf("store disagrees with the winner: %+v", job)
	}
}

func TestStore_EvictJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"j1", "j2"} {
		if err := s.PutJob(ctx, unassignedJob(id), false); err != nil {
			t.Fatalf("PutJob: %v", err)
		}
	}

	listener := s.Subscribe(8)
	defer listener.Close()

	// Missing ids are ignored.
	if err := s.EvictJobs(ctx, []string{"j1", "ghost"}); err != nil {
		t.Fatalf("EvictJobs: %v", err)
	}
	if _, err := s.GetJob("j1"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("evicted job still readable: %v", err)
	}
	if _, err := s.GetJob("j2"); err != nil {
		t.Fatalf("untouched job disappeared: %v", err)
	}

	ev := nextEvent(t, listener)
	if ev.Kind != domain.ChangeEvict || ev.ID != "j1" || !ev.Remote {
		t.Fatalf("expected remote evict event for j1, got %+v", ev)
	}
}

func TestStore_ChangeEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	listener := s.Subscribe(8)
	defer listener.Close()

	if err := s.PutJob(ctx, unassignedJob("j1"), false); err != nil {
		t.Fatalf("PutJob: %v", err)
	}
	ev := nextEvent(t, listener)
	if ev.Entity != domain.EntityJob || ev.Kind != domain.ChangeInsert || ev.ID != "j1" || ev.Remote {
		t.Fatalf("unexpected insert event: %+v", ev)
	}

	// The write is visible before its event reaches listeners.
	if _, err := s.GetJob("j1"); err != nil {
		t.Fatalf("record not readable after its event: %v", err)
	}

	if err := s.PutJob(ctx, unassignedJob("j1"), true); err != nil {
		t.Fatalf("PutJob: %v", err)
	}
	ev = nextEvent(t, listener)
	if ev.Kind != domain.ChangeUpdate || !ev.Remote {
		t.Fatalf("expected remote update event, got %+v", ev)
	}

	s.AnnounceReady(ports.SubJobs)
	ev = nextEvent(t, listener)
	if ev.Kind != domain.ChangeReady || ev.ID != ports.SubJobs {
		t.Fatalf("expected ready event for jobs, got %+v", ev)
	}
}

func TestStore_ExpiredContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	if err := s.PutJob(ctx, unassignedJob("j1"), false); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if _, err := s.TransitionJob(ctx, "j1", domain.StatusUnassigned, nil, domain.StatusAccepted, "a@example.com"); !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	// Nothing was written.
	if _, err := s.GetJob("j1"); !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("timed-out write left state behind: %v", err)
	}
}

func TestListener_CloseIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	listener := s.Subscribe(4)
	listener.Close()
	listener.Close()

	select {
	case _, ok := <-listener.Events():
		if ok {
			t.Fatalf("closed listener delivered an event")
		}
	case <-time.After(time.Second):
		t.Fatalf("events channel did not close")
	}

	// Publishing after close must not panic.
	if err := s.PutJob(context.Background(), unassignedJob("j1"), false); err != nil {
		t.Fatalf("PutJob after listener close: %v", err)
	}
}

func nextEvent(t *testing.T, l ports.ChangeListener) domain.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-l.Events():
		if !ok {
			t.Fatalf("change feed closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change event")
		return domain.ChangeEvent{}
	}
}
