package nostr

import (
	"context"
	"fmt"
	"sync"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sebdeveloper6952/dvmjob/domain"
)

const memorySubBuffer = 64

// MemoryTransport is an in-process Transport. Published events are recorded and
// delivered to matching subscriptions, which makes it usable as a stand-in for relays.
type MemoryTransport struct {
	mu         sync.Mutex
	published  []goNostr.Event
	subs       map[int]*memorySub
	nextSubID  int
	publishErr error
	onPublish  func(goNostr.Event)
}

type memorySub struct {
	filter goNostr.Filter
	events chan *goNostr.Event
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		subs: make(map[int]*memorySub),
	}
}

// FailPublish makes every following Publish call fail with err, or succeed again when
// err is nil.
func (m *MemoryTransport) FailPublish(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// OnPublish registers a hook called after each successful publish.
func (m *MemoryTransport) OnPublish(fn func(goNostr.Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPublish = fn
}

func (m *MemoryTransport) Publish(ctx context.Context, e goNostr.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPublish, err)
	}

	m.mu.Lock()
	if m.publishErr != nil {
		err := m.publishErr
		m.mu.Unlock()
		return fmt.Errorf("%w: %w", domain.ErrPublish, err)
	}
	m.published = append(m.published, e)
	m.deliverLocked(&e)
	hook := m.onPublish
	m.mu.Unlock()

	if hook != nil {
		hook(e)
	}

	return nil
}

// Inject delivers an event to subscribers without recording it as published by us.
func (m *MemoryTransport) Inject(e goNostr.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliverLocked(&e)
}

func (m *MemoryTransport) deliverLocked(e *goNostr.Event) {
	for _, sub := range m.subs {
		if !sub.filter.Matches(e) {
			continue
		}
		ev := *e
		select {
		case sub.events <- &ev:
		default:
		}
	}
}

func (m *MemoryTransport) Subscribe(ctx context.Context, filter goNostr.Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	sub := &memorySub{
		filter: filter,
		events: make(chan *goNostr.Event, memorySubBuffer),
	}
	m.subs[id] = sub
	m.mu.Unlock()

	return NewSubscription(sub.events, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
		close(sub.events)
	}), nil
}

func (m *MemoryTransport) Published() []goNostr.Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]goNostr.Event, len(m.published))
	copy(out, m.published)

	return out
}

func (m *MemoryTransport) ActiveSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.subs)
}
