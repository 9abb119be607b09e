package identity_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/stretchr/testify/require"
)

func TestLocalSignerSignsEvents(t *testing.T) {
	sk := goNostr.GeneratePrivateKey()
	wantPk, err := goNostr.GetPublicKey(sk)
	require.NoError(t, err)

	signer, err := identity.NewLocalSigner(sk)
	require.NoError(t, err)

	pk, err := signer.PublicKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, wantPk, pk)

	ev := &goNostr.Event{Kind: 5001, CreatedAt: goNostr.Now(), Tags: goNostr.Tags{}}
	require.NoError(t, signer.SignEvent(context.Background(), ev))
	require.Equal(t, wantPk, ev.PubKey)
	require.NotEmpty(t, ev.ID)

	ok, err := ev.CheckSignature()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestNewLocalSignerAcceptsNsec(t *testing.T) {
	sk := goNostr.GeneratePrivateKey()
	nsec, err := nip19.EncodePrivateKey(sk)
	require.NoError(t, err)

	signer, err := identity.NewLocalSigner(nsec)
	require.NoError(t, err)
	require.Equal(t, sk, signer.SecretKeyHex())
}

func TestNewLocalSignerRejectsGarbage(t *testing.T) {
	for _, secret := range []string{"", "   ", "nsec1notbech32", "npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"} {
		_, err := identity.NewLocalSigner(secret)
		require.ErrorIs(t, err, domain.ErrIdentity, secret)
	}
}

func TestProviderPrefersDelegate(t *testing.T) {
	delegate, err := identity.GenerateLocalSigner()
	require.NoError(t, err)

	p := identity.NewProvider(delegate, func() (*identity.LocalSigner, error) {
		t.Fatal("local key must not be loaded when a delegate is present")
		return nil, nil
	})

	signer, err := p.Signer()
	require.NoError(t, err)
	require.Same(t, delegate, signer)
}

func TestProviderLoadsLocalKeyOnce(t *testing.T) {
	loads := 0
	p := identity.NewProvider(nil, func() (*identity.LocalSigner, error) {
		loads++
		return identity.GenerateLocalSigner()
	})

	first, err := p.Signer()
	require.NoError(t, err)
	second, err := p.Signer()
	require.NoError(t, err)

	require.Same(t, first, second)
	require.Equal(t, 1, loads)
}

func TestProviderErrors(t *testing.T) {
	_, err := identity.NewProvider(nil, nil).Signer()
	require.ErrorIs(t, err, domain.ErrIdentity)

	p := identity.NewProvider(nil, func() (*identity.LocalSigner, error) {
		return nil, errors.New("disk on fire")
	})
	_, err = p.Signer()
	require.ErrorIs(t, err, domain.ErrIdentity)
	require.ErrorContains(t, err, "disk on fire")
}

func TestLoadOrCreateKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "secret.key")

	created, err := identity.LoadOrCreateKeyFile(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, created.SecretKeyHex(), strings.TrimSpace(string(b)))

	loaded, err := identity.KeyFileLoader(path)()
	require.NoError(t, err)
	require.Equal(t, created.SecretKeyHex(), loaded.SecretKeyHex())
}
