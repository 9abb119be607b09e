package nostr

import (
	"context"
	"sync"

	goNostr "github.com/nbd-wtf/go-nostr"
)

// Transport publishes events to a set of relays and subscribes to them by filter.
type Transport interface {
	// Publish returns nil as soon as one relay accepts the event.
	Publish(ctx context.Context, e goNostr.Event) error
	Subscribe(ctx context.Context, filter goNostr.Filter) (*Subscription, error)
}

// Subscription is a stream of events matching a filter. Events is closed once the
// subscription is closed and every relay feeding it has stopped.
type Subscription struct {
	Events <-chan *goNostr.Event

	cancel func()
	once   sync.Once
}

func NewSubscription(events <-chan *goNostr.Event, cancel func()) *Subscription {
	return &Subscription{
		Events: events,
		cancel: cancel,
	}
}

// Close is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}
