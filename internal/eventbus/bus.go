package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight, in-memory signal used to decouple the scheduler
// from whatever renders prompts (D-Bus bridge, CLI watcher, tests).
//
// Contract:
//   - Publish never blocks.
//   - Subscribers get buffered channels; a full buffer drops the event.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	// Subscribe delivers every event whose Type is in types (all events when
	// types is empty). The returned func unsubscribes and closes the channel.
	Subscribe(buffer int, types ...string) (ch <-chan Event, unsubscribe func())
	// Subscribers reports the number of live subscriptions.
	Subscribers() int
}

// New returns a simple in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscription{}}
}

type subscription struct {
	ch     chan Event
	filter map[string]struct{}
}

func (s *subscription) wants(typ string) bool {
	if len(s.filter) == 0 {
		return true
	}
	_, ok := s.filter[typ]
	return ok
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscription
	seq  atomic.Uint64

	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	b.mu.RLock()
	targets := make([]*subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Type) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		// A concurrent unsubscribe may close the channel under us.
		func() {
			defer func() { _ = recover() }()
			select {
			case s.ch <- e:
			default:
				b.dropped.Add(1)
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscription{ch: make(chan Event, buffer)}
	if len(types) > 0 {
		s.filter = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.filter[t] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.ch)
		})
	}
	return s.ch, unsub
}

func (b *memBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
