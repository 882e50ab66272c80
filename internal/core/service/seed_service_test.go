package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

func TestSeedService_Seed(t *testing.T) {
	store := newReplicaStore(t)
	prop := &stubPropagator{}
	svc := NewSeedService(store, prop, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	locs, err := store.ListLocations()
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locs) != len(seedLocations) {
		t.Fatalf("expected %d locations, got %d", len(seedLocations), len(locs))
	}
	for i, name := range seedLocations {
		if locs[i].Name != name {
			t.Fatalf("position %d: got %q, want %q", i, locs[i].Name, name)
		}
	}

	jobs, err := store.ListJobs(ports.JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected exactly one seeded job, got %d", len(jobs))
	}
	job := jobs[0]
	if job.Description != "Random Job" || job.Status != domain.StatusUnassigned {
		t.Fatalf("unexpected seeded job: %+v", job)
	}
	if job.LocationID != locs[0].ID {
		t.Fatalf("seeded job must live in %q", locs[0].Name)
	}

	// Every seeded record is propagated once.
	if prop.count() != len(seedLocations)+1 {
		t.Fatalf("expected %d mutations, got %d", len(seedLocations)+1, prop.count())
	}
}

func TestSeedService_SeedIsIdempotent(t *testing.T) {
	store := newReplicaStore(t)
	svc := NewSeedService(store, &stubPropagator{}, zerolog.Nop())
	ctx := context.Background()

	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := svc.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	locs, _ := store.ListLocations()
	if len(locs) != len(seedLocations) {
		t.Fatalf("reseeding duplicated locations: %d", len(locs))
	}
	jobs, _ := store.ListJobs(ports.JobFilter{})
	if len(jobs) != 1 {
		t.Fatalf("reseeding duplicated the job: %d", len(jobs))
	}
}

func TestSeedService_SkipsJobWhenJobsExist(t *testing.T) {
	store := newReplicaStore(t)
	seedJob(t, store, "existing", domain.StatusAccepted, "alice@example.com")

	svc := NewSeedService(store, &stubPropagator{}, zerolog.Nop())
	if err := svc.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}

	jobs, _ := store.ListJobs(ports.JobFilter{})
	if len(jobs) != 1 || jobs[0].ID != "existing" {
		t.Fatalf("seed must not add a job when jobs already exist: %+v", jobs)
	}
}
