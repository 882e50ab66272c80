package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/metrics"
)

// Deduper abstracts the idempotency store for inbound events (Redis in
// production, in-memory otherwise).
type Deduper interface {
	IsDuplicate(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// Inbound drains the sync client's remote change stream into the replica.
// Redelivered events are applied once; applying is otherwise last-write-
// wins, since remote convergence is the sync layer's problem, not ours.
type Inbound struct {
	store  ports.EntityStore
	client ports.SyncClient
	dedup  Deduper
	sink   metrics.Sink
	log    zerolog.Logger
}

func NewInbound(store ports.EntityStore, client ports.SyncClient, dedup Deduper, sink metrics.Sink, log zerolog.Logger) *Inbound {
	return &Inbound{
		store:  store,
		client: client,
		dedup:  dedup,
		sink:   sink,
		log:    log,
	}
}

// Run consumes the pull stream until ctx is cancelled, reconnecting with
// backoff when the stream drops.
func (i *Inbound) Run(ctx context.Context) error {
	err := retry.Do(
		func() error {
			if err := i.consume(ctx); err != nil {
				return err
			}
			// A cleanly closed stream still needs a new Pull.
			return fmt.Errorf("sync stream closed")
		},
		retry.Context(ctx),
		retry.Attempts(0), // retry until ctx cancellation
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			i.log.Warn().Err(err).Uint("attempt", n).Msg("sync stream reconnecting")
		}),
	)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (i *Inbound) consume(ctx context.Context) error {
	ch, err := i.client.Pull(ctx)
	if err != nil {
		return fmt.Errorf("sync pull: %w", err)
	}
	for change := range ch {
		i.apply(ctx, change)
	}
	return nil
}

// apply commits one remote change to the store. Failures are logged and
// skipped: the store stays consistent, the record simply converges on the
// next delivery.
func (i *Inbound) apply(ctx context.Context, change ports.InboundChange) {
	if change.EventID != "" {
		dup, err := i.dedup.IsDuplicate(ctx, change.EventID)
		if err != nil {
			i.log.Warn().Err(err).Str("event_id", change.EventID).Msg("dedup check failed, applying anyway")
		} else if dup {
			i.sink.InboundDuplicate()
			return
		}
	}

	var err error
	switch {
	case change.Entity == domain.EntityJob && change.Kind == domain.ChangeDelete:
		err = i.store.EvictJobs(ctx, []string{change.RecordID})
	case change.Job != nil:
		err = i.store.PutJob(ctx, change.Job, true)
	case change.Location != nil:
		err = i.store.PutLocation(ctx, change.Location, true)
	case change.User != nil:
		err = i.store.PutUser(ctx, change.User, true)
	default:
		i.log.Warn().Str("event_id", change.EventID).Msg("inbound change carries no record, skipped")
		return
	}
	if err != nil {
		i.log.Error().Err(err).Str("event_id", change.EventID).Msg("failed to apply inbound change")
		return
	}

	i.sink.InboundApplied(string(change.Kind))
	if change.EventID != "" {
		if err := i.dedup.Mark(ctx, change.EventID); err != nil {
			i.log.Warn().Err(err).Str("event_id", change.EventID).Msg("failed to mark event applied")
		}
	}
}
