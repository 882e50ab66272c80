package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes committed local mutations to a fixed set of workers
// using consistent hashing on the record id, so outbound pushes for the
// same record leave in commit order while different records propagate in
// parallel.
type Dispatcher struct {
	workers []chan ports.OutboundMutation
	client  ports.SyncClient
	sink    metrics.Sink
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, client ports.SyncClient, sink metrics.Sink, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.OutboundMutation, numWorkers),
		client:  client,
		sink:    sink,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.OutboundMutation, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a mutation to the worker responsible for its record.
// Non-blocking up to channelBuffer capacity; past that the mutation is
// dropped with a log, since propagation retries are the sync layer's
// concern, not the write path's.
func (d *Dispatcher) Enqueue(m ports.OutboundMutation) {
	select {
	case d.workers[d.shardIndex(recordID(m))] <- m:
	default:
		d.log.Error().
			Str("mutation_id", m.MutationID).
			Msg("outbound queue full, mutation dropped")
		d.sink.OutboundPushed(metrics.OutcomeFailed)
	}
}

// shardIndex maps a record id deterministically to a worker index.
func (d *Dispatcher) shardIndex(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32()) % len(d.workers)
}

func recordID(m ports.OutboundMutation) string {
	switch {
	case m.Job != nil:
		return m.Job.ID
	case m.Location != nil:
		return m.Location.ID
	case m.User != nil:
		return m.User.ID
	}
	return m.MutationID
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.OutboundMutation) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if err := d.client.Push(ctx, m); err != nil {
				d.sink.OutboundPushed(metrics.OutcomeFailed)
				d.log.Error().Err(err).
					Str("mutation_id", m.MutationID).
					Int("worker_id", id).
					Msg("outbound push failed")
				continue
			}
			d.sink.OutboundPushed(metrics.OutcomeSuccess)
		}
	}
}
