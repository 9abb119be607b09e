package nostr

import (
	"context"
	"strconv"

	goNostr "github.com/nbd-wtf/go-nostr"
)

const (
	KindHandlerInformation = 31990
)

// Provider is a DVM that announced itself with a NIP-89 handler information event.
type Provider struct {
	Pubkey  string
	Kinds   []int
	Profile *ProfileMetadata
}

func HandlerInformationFilter(kind int) goNostr.Filter {
	return goNostr.Filter{
		Kinds: []int{KindHandlerInformation},
		Tags:  goNostr.TagMap{"k": []string{strconv.Itoa(kind)}},
	}
}

func ProviderFromHandlerInformation(e *goNostr.Event) *Provider {
	p := &Provider{
		Pubkey: e.PubKey,
		Kinds:  make([]int, 0, 1),
	}

	for i := range e.Tags {
		if len(e.Tags[i]) > 1 && e.Tags[i][0] == "k" {
			kind, err := strconv.Atoi(e.Tags[i][1])
			if err != nil {
				continue
			}
			p.Kinds = append(p.Kinds, kind)
		}
	}

	// an announcement without a readable profile is still a provider
	if profile, err := ProfileMetadataFromEvent(e); err == nil {
		p.Profile = profile
	}

	return p
}

// DiscoverProviders collects announcements for kind until ctx is done. Later
// announcements from the same pubkey replace earlier ones.
func DiscoverProviders(
	ctx context.Context,
	t Transport,
	kind int,
) ([]*Provider, error) {
	sub, err := t.Subscribe(ctx, HandlerInformationFilter(kind))
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	var (
		byPubkey = make(map[string]*Provider)
		order    = make([]string, 0)
		latest   = make(map[string]goNostr.Timestamp)
	)

	for {
		select {
		case e, ok := <-sub.Events:
			if !ok {
				return collect(order, byPubkey), nil
			}
			if ts, seen := latest[e.PubKey]; seen && ts >= e.CreatedAt {
				continue
			}
			if _, seen := byPubkey[e.PubKey]; !seen {
				order = append(order, e.PubKey)
			}
			latest[e.PubKey] = e.CreatedAt
			byPubkey[e.PubKey] = ProviderFromHandlerInformation(e)
		case <-ctx.Done():
			return collect(order, byPubkey), nil
		}
	}
}

func collect(order []string, byPubkey map[string]*Provider) []*Provider {
	out := make([]*Provider, 0, len(order))
	for _, pk := range order {
		out = append(out, byPubkey[pk])
	}

	return out
}
