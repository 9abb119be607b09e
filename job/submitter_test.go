package job_test

import (
	"context"
	"errors"
	"testing"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/sebdeveloper6952/dvmjob/job"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/stretchr/testify/require"
)

type failingSigner struct{}

func (failingSigner) PublicKey(context.Context) (string, error) {
	return "", errors.New("user rejected")
}

func (failingSigner) SignEvent(context.Context, *goNostr.Event) error {
	return errors.New("user rejected")
}

func TestSubmitterSubmit(t *testing.T) {
	transport := nostr.NewMemoryTransport()
	signer, err := identity.GenerateLocalSigner()
	require.NoError(t, err)

	s := job.NewSubmitter(transport, "", testLogger())
	id, err := s.Submit(context.Background(), signer, &domain.JobRequest{
		Kind:  5001,
		Input: "summarize this",
		Params: map[string]string{
			"task":  "summarize",
			"model": "small",
		},
	})
	require.NoError(t, err)

	published := transport.Published()
	require.Len(t, published, 1)
	require.Equal(t, id, published[0].ID)
	require.Equal(t, "", published[0].Content)
	require.Equal(t, goNostr.Tags{
		{"i", "summarize this", "text"},
		{"output", "text/plain"},
		{"param", "model", "small"},
		{"param", "task", "summarize"},
	}, published[0].Tags)
}

func TestSubmitterErrors(t *testing.T) {
	transport := nostr.NewMemoryTransport()
	signer, err := identity.GenerateLocalSigner()
	require.NoError(t, err)
	s := job.NewSubmitter(transport, "", testLogger())

	tests := []struct {
		name   string
		signer identity.Signer
		req    *domain.JobRequest
		fail   error
		want   error
	}{
		{
			name:   "negative kind",
			signer: signer,
			req:    &domain.JobRequest{Kind: -1, Input: "x"},
			want:   domain.ErrInvalidRequest,
		},
		{
			name:   "empty input",
			signer: signer,
			req:    &domain.JobRequest{Kind: 5001},
			want:   domain.ErrInvalidRequest,
		},
		{
			name:   "signer refuses",
			signer: failingSigner{},
			req:    &domain.JobRequest{Kind: 5001, Input: "x"},
			want:   domain.ErrIdentity,
		},
		{
			name:   "all relays reject",
			signer: signer,
			req:    &domain.JobRequest{Kind: 5001, Input: "x"},
			fail:   errors.New("blocked: rate limited"),
			want:   domain.ErrPublish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport.FailPublish(tt.fail)
			_, err := s.Submit(context.Background(), tt.signer, tt.req)
			require.ErrorIs(t, err, tt.want)
		})
	}
	require.Empty(t, transport.Published())
}
