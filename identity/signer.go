package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/sebdeveloper6952/dvmjob/domain"
)

// Signer authorizes events on behalf of the user.
type Signer interface {
	PublicKey(ctx context.Context) (string, error)
	// SignEvent sets PubKey, ID and Sig on e.
	SignEvent(ctx context.Context, e *goNostr.Event) error
}

// LocalSigner signs with a secret key held in memory.
type LocalSigner struct {
	sk string
	pk string
}

// NewLocalSigner accepts a hex or nsec encoded secret key.
func NewLocalSigner(secret string) (*LocalSigner, error) {
	sk, err := decodeSecretKey(secret)
	if err != nil {
		return nil, err
	}

	pk, err := goNostr.GetPublicKey(sk)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentity, err)
	}

	return &LocalSigner{
		sk: sk,
		pk: pk,
	}, nil
}

func GenerateLocalSigner() (*LocalSigner, error) {
	return NewLocalSigner(goNostr.GeneratePrivateKey())
}

func decodeSecretKey(secret string) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", fmt.Errorf("%w: empty secret key", domain.ErrIdentity)
	}

	if !strings.HasPrefix(secret, "nsec") {
		return secret, nil
	}

	prefix, value, err := nip19.Decode(secret)
	if err != nil {
		return "", fmt.Errorf("%w: decode nsec %w", domain.ErrIdentity, err)
	}

	sk, ok := value.(string)
	if prefix != "nsec" || !ok {
		return "", fmt.Errorf("%w: not a secret key", domain.ErrIdentity)
	}

	return sk, nil
}

func (s *LocalSigner) PublicKey(ctx context.Context) (string, error) {
	return s.pk, nil
}

func (s *LocalSigner) SignEvent(ctx context.Context, e *goNostr.Event) error {
	e.PubKey = s.pk
	return e.Sign(s.sk)
}

// SecretKeyHex is used when persisting a generated key.
func (s *LocalSigner) SecretKeyHex() string {
	return s.sk
}

// Provider hands out the signer used for job requests. A delegated signer wins over the
// local key so that key material never has to be handed to this process. The local key
// is loaded on first use and then reused.
type Provider struct {
	delegate Signer
	load     func() (*LocalSigner, error)
	local    *LocalSigner
}

func NewProvider(
	delegate Signer,
	load func() (*LocalSigner, error),
) *Provider {
	return &Provider{
		delegate: delegate,
		load:     load,
	}
}

// Signer is not safe for concurrent use; the job machine calls it under its own lock.
func (p *Provider) Signer() (Signer, error) {
	if p.delegate != nil {
		return p.delegate, nil
	}

	if p.local != nil {
		return p.local, nil
	}

	if p.load == nil {
		return nil, domain.ErrIdentity
	}

	local, err := p.load()
	if err != nil {
		if errors.Is(err, domain.ErrIdentity) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrIdentity, err)
	}
	p.local = local

	return local, nil
}
