package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
	"github.com/fieldops/job-tracker/internal/metrics"
)

type recordingSyncClient struct {
	mu     sync.Mutex
	pushed []ports.OutboundMutation
	fail   bool
	seen   chan struct{}
}

func newRecordingSyncClient() *recordingSyncClient {
	return &recordingSyncClient{seen: make(chan struct{}, 1024)}
}

func (c *recordingSyncClient) Bootstrap(context.Context, ports.Scope) (*ports.BootstrapData, error) {
	return &ports.BootstrapData{}, nil
}

func (c *recordingSyncClient) Push(_ context.Context, m ports.OutboundMutation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("push refused")
	}
	c.pushed = append(c.pushed, m)
	c.seen <- struct{}{}
	return nil
}

func (c *recordingSyncClient) Pull(context.Context) (<-chan ports.InboundChange, error) {
	ch := make(chan ports.InboundChange)
	close(ch)
	return ch, nil
}

func (c *recordingSyncClient) await(t *testing.T, n int) []ports.OutboundMutation {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for push %d of %d", i+1, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ports.OutboundMutation, len(c.pushed))
	copy(out, c.pushed)
	return out
}

func jobMutation(mutationID, jobID string) ports.OutboundMutation {
	return ports.OutboundMutation{
		MutationID: mutationID,
		Entity:     domain.EntityJob,
		Job:        &domain.Job{ID: jobID, Status: domain.StatusUnassigned},
	}
}

func TestDispatcher_DeliversMutations(t *testing.T) {
	client := newRecordingSyncClient()
	d := NewDispatcher(4, client, metrics.NewNoopSink(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(jobMutation("m1", "job-a"))
	d.Enqueue(jobMutation("m2", "job-b"))

	pushed := client.await(t, 2)
	ids := map[string]bool{}
	for _, m := range pushed {
		ids[m.MutationID] = true
	}
	if !ids["m1"] || !ids["m2"] {
		t.Fatalf("missing mutations: %+v", pushed)
	}
}

func TestDispatcher_SameRecordKeepsCommitOrder(t *testing.T) {
	client := newRecordingSyncClient()
	d := NewDispatcher(4, client, metrics.NewNoopSink(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	const n = 20
	for i := 0; i < n; i++ {
		d.Enqueue(jobMutation(fmt.Sprintf("m%02d", i), "contested"))
	}

	pushed := client.await(t, n)
	for i, m := range pushed {
		if want := fmt.Sprintf("m%02d", i); m.MutationID != want {
			t.Fatalf("push %d out of order: got %s, want %s", i, m.MutationID, want)
		}
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(4, newRecordingSyncClient(), metrics.NewNoopSink(), zerolog.Nop())
	for _, id := range []string{"a", "b", "job-123"} {
		first := d.shardIndex(id)
		for i := 0; i < 10; i++ {
			if got := d.shardIndex(id); got != first {
				t.Fatalf("shardIndex(%q) is not deterministic: %d vs %d", id, first, got)
			}
		}
		if first < 0 || first >= len(d.workers) {
			t.Fatalf("shardIndex(%q) = %d out of range", id, first)
		}
	}
}

func TestDispatcher_PushFailureDoesNotStopWorker(t *testing.T) {
	client := newRecordingSyncClient()
	client.fail = true
	d := NewDispatcher(1, client, metrics.NewNoopSink(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Enqueue(jobMutation("m1", "job-a"))
	time.Sleep(100 * time.Millisecond)

	client.mu.Lock()
	client.fail = false
	client.mu.Unlock()

	d.Enqueue(jobMutation("m2", "job-a"))
	pushed := client.await(t, 1)
	if len(pushed) != 1 || pushed[0].MutationID != "m2" {
		t.Fatalf("worker did not survive a failed push: %+v", pushed)
	}
}
