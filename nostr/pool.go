package nostr

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const maxParallelDials = 8

// Pool is a Transport over a fixed set of relay URLs.
type Pool struct {
	urls   []string
	mu     sync.RWMutex
	relays []*goNostr.Relay
	log    *logrus.Logger
}

func NewPool(
	log *logrus.Logger,
	urls ...string,
) *Pool {
	return &Pool{
		urls: urls,
		log:  log,
	}
}

// Connect dials every relay in parallel. Relays that cannot be reached are logged and
// skipped; it fails only if none could be reached.
func (p *Pool) Connect(ctx context.Context) error {
	if len(p.urls) == 0 {
		return errors.New("must provide at least one relay")
	}

	var g errgroup.Group
	g.SetLimit(maxParallelDials)

	for i := range p.urls {
		url := p.urls[i]
		g.Go(func() error {
			relay, err := goNostr.RelayConnect(ctx, url)
			if err != nil {
				p.log.Errorf("[nostr] connect to relay %s %+v", url, err)
				return nil
			}

			p.mu.Lock()
			p.relays = append(p.relays, relay)
			p.mu.Unlock()
			p.log.Debugf("[nostr] connected to relay %s", url)

			return nil
		})
	}
	_ = g.Wait()

	if len(p.connected()) == 0 {
		return fmt.Errorf("could not connect to any of %d relays", len(p.urls))
	}

	return nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.relays {
		if err := p.relays[i].Close(); err != nil {
			p.log.Debugf("[nostr] close relay %s %+v", p.relays[i].URL, err)
		}
	}
	p.relays = nil
}

func (p *Pool) connected() []*goNostr.Relay {
	p.mu.RLock()
	defer p.mu.RUnlock()

	relays := make([]*goNostr.Relay, len(p.relays))
	copy(relays, p.relays)

	return relays
}

func (p *Pool) Publish(
	ctx context.Context,
	e goNostr.Event,
) error {
	p.log.Tracef("[nostr] publish event %+v", e)

	relays := p.connected()
	if len(relays) == 0 {
		return fmt.Errorf("%w: no relays connected", domain.ErrPublish)
	}

	// buffered so that publishes still in flight after the first ack can finish
	results := make(chan error, len(relays))
	for i := range relays {
		go func(relay *goNostr.Relay) {
			if err := relay.Publish(ctx, e); err != nil {
				results <- fmt.Errorf("%s: %w", relay.URL, err)
				return
			}
			results <- nil
		}(relays[i])
	}

	errs := make([]error, 0, len(relays))
	for range relays {
		err := <-results
		if err == nil {
			return nil
		}
		p.log.Errorf("[nostr] publish to relay %+v", err)
		errs = append(errs, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrPublish, errors.Join(errs...))
}

func (p *Pool) Subscribe(
	ctx context.Context,
	filter goNostr.Filter,
) (*Subscription, error) {
	relays := p.connected()
	if len(relays) == 0 {
		return nil, errors.New("no relays connected")
	}

	subCtx, cancel := context.WithCancel(ctx)
	events := make(chan *goNostr.Event)
	subs := make([]*goNostr.Subscription, 0, len(relays))
	for i := range relays {
		sub, err := relays[i].Subscribe(subCtx, goNostr.Filters{filter})
		if err != nil {
			p.log.Errorf("[nostr] subscribe to relay %s %+v", relays[i].URL, err)
			continue
		}
		subs = append(subs, sub)
	}

	if len(subs) == 0 {
		cancel()
		return nil, errors.New("no relay accepted the subscription")
	}

	var (
		wg     sync.WaitGroup
		seenMu sync.Mutex
		seen   = make(map[string]struct{})
	)

	firstSeen := func(id string) bool {
		seenMu.Lock()
		defer seenMu.Unlock()
		if _, ok := seen[id]; ok {
			return false
		}
		seen[id] = struct{}{}
		return true
	}

	for i := range subs {
		wg.Add(1)
		go func(sub *goNostr.Subscription) {
			defer wg.Done()

			for {
				select {
				case event, ok := <-sub.Events:
					if !ok {
						return
					}
					if !p.valid(event) || !firstSeen(event.ID) {
						continue
					}
					p.log.Tracef("[nostr] received event %+v", event)

					select {
					case events <- event:
					case <-subCtx.Done():
						return
					}
				case <-subCtx.Done():
					return
				}
			}
		}(subs[i])
	}

	go func() {
		wg.Wait()
		close(events)
	}()

	return NewSubscription(events, func() {
		cancel()
		for i := range subs {
			subs[i].Unsub()
		}
	}), nil
}

func (p *Pool) valid(e *goNostr.Event) bool {
	ok, err := e.CheckSignature()
	if err != nil || !ok {
		p.log.Debugf("[nostr] dropping event %s with bad signature", e.ID)
		return false
	}

	return true
}
