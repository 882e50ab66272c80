package replica

import (
	"sync"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

// changeListener is one registration on the store's change feed. Events are
// delivered in commit order on a buffered channel owned by the store; the
// channel closes when the listener is closed.
type changeListener struct {
	id     int
	ch     chan domain.ChangeEvent
	once   sync.Once
	remove func(int)
}

func (l *changeListener) Events() <-chan domain.ChangeEvent {
	return l.ch
}

// Close unregisters the listener and closes its channel. Idempotent.
func (l *changeListener) Close() {
	l.once.Do(func() { l.remove(l.id) })
}

// Subscribe registers a change-feed listener. A buffer of 0 uses the
// default. Listeners that fall behind by more than the buffer lose events,
// which shows up as a warn log; consumers that recompute their full state
// per event should drain promptly or size the buffer accordingly.
func (s *Store) Subscribe(buffer int) ports.ChangeListener {
	if buffer <= 0 {
		buffer = defaultListenerBuffer
	}
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	s.nextID++
	l := &changeListener{
		id: s.nextID,
		ch: make(chan domain.ChangeEvent, buffer),
	}
	l.remove = func(id int) {
		// Removal and channel close happen under the same lock publish
		// sends under, so a send on a closed channel is impossible.
		s.listenerMu.Lock()
		defer s.listenerMu.Unlock()
		if _, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(l.ch)
		}
	}
	s.listeners[l.id] = l
	return l
}

// publish fans one committed event out to every listener. Delivery is
// non-blocking so a stalled consumer can never wedge the write path.
func (s *Store) publish(ev domain.ChangeEvent) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()

	for _, l := range s.listeners {
		select {
		case l.ch <- ev:
		default:
			s.log.Warn().
				Str("entity", string(ev.Entity)).
				Str("record_id", ev.ID).
				Str("kind", string(ev.Kind)).
				Msg("change feed listener buffer full, event dropped")
		}
	}
}
