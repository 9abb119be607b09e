package job_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	goNostr "github.com/nbd-wtf/go-nostr"
	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/sebdeveloper6952/dvmjob/job"
	"github.com/sebdeveloper6952/dvmjob/lightning"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// provider plays the DVM side of a job against the memory transport.
type provider struct {
	t         *testing.T
	sk        string
	pk        string
	transport *nostr.MemoryTransport
}

func newProvider(t *testing.T, transport *nostr.MemoryTransport) *provider {
	sk := goNostr.GeneratePrivateKey()
	pk, err := goNostr.GetPublicKey(sk)
	require.NoError(t, err)

	return &provider{
		t:         t,
		sk:        sk,
		pk:        pk,
		transport: transport,
	}
}

func (p *provider) request(jobID string) goNostr.Event {
	for _, e := range p.transport.Published() {
		if e.ID == jobID {
			return e
		}
	}
	p.t.Fatalf("job request %s was never published", jobID)
	return goNostr.Event{}
}

func (p *provider) feedback(jobID string, status string, payment *domain.PaymentInfo) {
	req := p.request(jobID)
	ev := nostr.NewFeedbackEvent(p.pk, jobID, req.PubKey, status, payment)
	require.NoError(p.t, ev.Sign(p.sk))
	p.transport.Inject(*ev)
}

func (p *provider) rawFeedback(jobID string, tags goNostr.Tags) {
	ev := &goNostr.Event{
		PubKey:    p.pk,
		CreatedAt: goNostr.Now(),
		Kind:      nostr.KindJobFeedback,
		Tags:      append(goNostr.Tags{{"e", jobID}}, tags...),
	}
	require.NoError(p.t, ev.Sign(p.sk))
	p.transport.Inject(*ev)
}

func (p *provider) result(jobID string, content string) string {
	req := p.request(jobID)
	ev := nostr.NewJobResultEvent(p.pk, &req, content)
	require.NoError(p.t, ev.Sign(p.sk))
	p.transport.Inject(*ev)
	return ev.ID
}

type recorder struct {
	mu     sync.Mutex
	states []domain.State
}

func (r *recorder) record(s domain.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) statuses() []domain.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.JobStatus, 0, len(r.states))
	for _, s := range r.states {
		if len(out) > 0 && out[len(out)-1] == s.Status {
			continue
		}
		out = append(out, s.Status)
	}
	return out
}

func newMachine(t *testing.T, transport nostr.Transport, opts ...job.Option) *job.Machine {
	m := job.NewMachine(
		transport,
		identity.NewProvider(nil, identity.GenerateLocalSigner),
		testLogger(),
		opts...,
	)
	t.Cleanup(m.Reset)
	return m
}

func waitStatus(t *testing.T, m *job.Machine, status domain.JobStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return m.State().Status == status
	}, waitFor, tick, "status never became %s, is %s", status, m.State().Status)
}

type fakeWallet struct {
	mu    sync.Mutex
	err   error
	paid  []string
	block chan struct{}
}

func (w *fakeWallet) PayInvoice(ctx context.Context, payReq string) (*lightning.Payment, error) {
	if w.block != nil {
		select {
		case <-w.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	w.paid = append(w.paid, payReq)
	return &lightning.Payment{}, nil
}

func (w *fakeWallet) invoices() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.paid...)
}
