package service

import (
	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

// AlertService signals when a new unassigned job arrives from another
// device, so the notification collaborator can surface it. Delivery
// mechanics (push, sound) are out of scope here; this is just the signal.
type AlertService struct {
	store ports.EntityStore
	log   zerolog.Logger

	listener ports.ChangeListener
	out      chan string
}

// NewAlertService starts watching the change feed. The returned service
// must be closed to release its feed registration.
func NewAlertService(store ports.EntityStore, log zerolog.Logger) *AlertService {
	s := &AlertService{
		store:    store,
		log:      log,
		listener: store.Subscribe(0),
		out:      make(chan string, 8),
	}
	go s.run()
	return s
}

// NewJobs yields the id of each unassigned job inserted by the sync layer.
// Signals are coalesced when the consumer lags; missing one is acceptable,
// double-delivering is not.
func (s *AlertService) NewJobs() <-chan string {
	return s.out
}

// Close releases the feed registration and closes the signal channel.
func (s *AlertService) Close() {
	s.listener.Close()
}

func (s *AlertService) run() {
	defer close(s.out)
	for ev := range s.listener.Events() {
		if ev.Entity != domain.EntityJob || ev.Kind != domain.ChangeInsert || !ev.Remote {
			continue
		}
		job, err := s.store.GetJob(ev.ID)
		if err != nil || job.Status != domain.StatusUnassigned {
			continue
		}
		select {
		case s.out <- job.ID:
		default:
			// Consumer lagging; drop rather than stall the feed drain.
		}
	}
}
