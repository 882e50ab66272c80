package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

// seedLocations are the demo service areas.
var seedLocations = []string{
	"New York",
	"Los Angeles",
	"Chicago",
	"Miami",
	"Dallas",
	"Houston",
	"Philadelphia",
}

// SeedService populates demo data: the standard set of locations and one
// unassigned job in the first of them. Idempotent by location name.
type SeedService struct {
	store      ports.EntityStore
	propagator ports.Propagator
	log        zerolog.Logger
}

func NewSeedService(store ports.EntityStore, propagator ports.Propagator, log zerolog.Logger) *SeedService {
	return &SeedService{store: store, propagator: propagator, log: log}
}

// Seed creates any missing demo locations and, when the store holds no
// jobs at all, a single unassigned job.
func (s *SeedService) Seed(ctx context.Context) error {
	existing, err := s.store.ListLocations()
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	byName := make(map[string]*domain.Location, len(existing))
	for _, loc := range existing {
		byName[loc.Name] = loc
	}

	for _, name := range seedLocations {
		if _, ok := byName[name]; ok {
			continue
		}
		loc := &domain.Location{ID: uuid.NewString(), Name: name}
		if err := s.store.PutLocation(ctx, loc, false); err != nil {
			return fmt.Errorf("seed location %q: %w", name, err)
		}
		byName[name] = loc
		s.propagator.Enqueue(ports.OutboundMutation{
			MutationID: uuid.NewString(),
			Entity:     domain.EntityLocation,
			Location:   loc,
		})
	}

	jobs, err := s.store.ListJobs(ports.JobFilter{})
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(jobs) > 0 {
		return nil
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Status:      domain.StatusUnassigned,
		Description: "Random Job",
		CreatedAt:   time.Now().UTC(),
		LocationID:  byName[seedLocations[0]].ID,
	}
	if err := s.store.PutJob(ctx, job, false); err != nil {
		return fmt.Errorf("seed job: %w", err)
	}
	s.propagator.Enqueue(ports.OutboundMutation{
		MutationID: uuid.NewString(),
		Entity:     domain.EntityJob,
		Job:        job,
	})

	s.log.Info().Int("locations", len(seedLocations)).Msg("demo data seeded")
	return nil
}
