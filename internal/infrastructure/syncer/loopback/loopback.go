// Package loopback provides an in-process sync backend. A single Hub plays
// the role of the remote service; each device holds a Client. Pushes from
// one client are delivered to every other client's pull stream, which is
// enough to exercise multi-device convergence in tests and offline demos.
package loopback

import (
	"context"
	"sync"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

const pullBuffer = 64

// Hub is the shared "remote" state plus the fan-out of changes to pulling
// clients.
type Hub struct {
	mu        sync.Mutex
	jobs      map[string]*domain.Job
	locations map[string]*domain.Location
	users     map[string]*domain.UserProfile
	seq       []string // job ids in first-seen order
	locSeq    []string

	nextSub int
	subs    map[int]*puller
}

type puller struct {
	owner *Client
	ch    chan ports.InboundChange
}

// Client is one device's handle on the hub.
type Client struct {
	hub *Hub
}

func NewHub() *Hub {
	return &Hub{
		jobs:      make(map[string]*domain.Job),
		locations: make(map[string]*domain.Location),
		users:     make(map[string]*domain.UserProfile),
		subs:      make(map[int]*puller),
	}
}

// Client returns a new device handle.
func (h *Hub) Client() *Client {
	return &Client{hub: h}
}

// SeedJob places a job directly into the hub, as an external admin process
// would, and delivers it to every pulling client.
func (h *Hub) SeedJob(job *domain.Job) {
	h.mu.Lock()
	if _, ok := h.jobs[job.ID]; !ok {
		h.seq = append(h.seq, job.ID)
	}
	h.jobs[job.ID] = job.Clone()
	h.broadcastLocked(nil, ports.InboundChange{
		EventID: "seed-job-" + job.ID,
		Entity:  domain.EntityJob,
		Kind:    domain.ChangeInsert,
		Job:     job.Clone(),
	})
	h.mu.Unlock()
}

// Bootstrap snapshots the hub state covered by scope.
func (c *Client) Bootstrap(ctx context.Context, scope ports.Scope) (*ports.BootstrapData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	data := &ports.BootstrapData{}
	switch scope.Entity {
	case domain.EntityJob:
		for _, id := range h.seq {
			job := h.jobs[id]
			if scope.LocationID == nil || job.LocationID == *scope.LocationID {
				data.Jobs = append(data.Jobs, job.Clone())
			}
		}
	case domain.EntityLocation:
		for _, id := range h.locSeq {
			data.Locations = append(data.Locations, h.locations[id].Clone())
		}
	case domain.EntityUser:
		if scope.UserID != "" {
			if u, ok := h.users[scope.UserID]; ok {
				data.Users = append(data.Users, u.Clone())
			}
			break
		}
		for _, u := range h.users {
			data.Users = append(data.Users, u.Clone())
		}
	}
	return data, nil
}

// Push applies a local mutation to the hub and delivers it to every other
// client's pull stream.
func (c *Client) Push(ctx context.Context, m ports.OutboundMutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := c.hub
	h.mu.Lock()
	defer h.mu.Unlock()

	change := ports.InboundChange{EventID: m.MutationID, Entity: m.Entity}
	switch {
	case m.Job != nil:
		if _, ok := h.jobs[m.Job.ID]; ok {
			change.Kind = domain.ChangeUpdate
		} else {
			change.Kind = domain.ChangeInsert
			h.seq = append(h.seq, m.Job.ID)
		}
		h.jobs[m.Job.ID] = m.Job.Clone()
		change.Job = m.Job.Clone()
	case m.Location != nil:
		if _, ok := h.locations[m.Location.ID]; ok {
			change.Kind = domain.ChangeUpdate
		} else {
			change.Kind = domain.ChangeInsert
			h.locSeq = append(h.locSeq, m.Location.ID)
		}
		h.locations[m.Location.ID] = m.Location.Clone()
		change.Location = m.Location.Clone()
	case m.User != nil:
		if _, ok := h.users[m.User.ID]; ok {
			change.Kind = domain.ChangeUpdate
		} else {
			change.Kind = domain.ChangeInsert
		}
		h.users[m.User.ID] = m.User.Clone()
		change.User = m.User.Clone()
	default:
		return nil
	}

	h.broadcastLocked(c, change)
	return nil
}

// Pull returns a stream of changes pushed by other clients. The channel
// closes when ctx is cancelled.
func (c *Client) Pull(ctx context.Context) (<-chan ports.InboundChange, error) {
	h := c.hub
	h.mu.Lock()
	h.nextSub++
	id := h.nextSub
	p := &puller{owner: c, ch: make(chan ports.InboundChange, pullBuffer)}
	h.subs[id] = p
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(p.ch)
		h.mu.Unlock()
	}()
	return p.ch, nil
}

// broadcastLocked delivers a change to every pulling client except the
// originator. Callers hold h.mu.
func (h *Hub) broadcastLocked(from *Client, change ports.InboundChange) {
	for _, p := range h.subs {
		if p.owner == from {
			continue
		}
		select {
		case p.ch <- change:
		default:
			// Slow consumer; the next bootstrap reconverges it.
		}
	}
}
