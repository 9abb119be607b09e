package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/sebdeveloper6952/dvmjob/lightning"
	"github.com/sebdeveloper6952/dvmjob/metrics"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/sirupsen/logrus"
)

const DefaultPaymentTimeout = 5 * time.Minute

type Option func(*Machine)

func WithPaymentTimeout(d time.Duration) Option {
	return func(m *Machine) {
		m.paymentTimeout = d
	}
}

// WithProvider targets job requests at a single provider pubkey.
func WithProvider(pk string) Option {
	return func(m *Machine) {
		m.providerPk = pk
	}
}

func WithWallet(w lightning.Wallet) Option {
	return func(m *Machine) {
		m.wallet = w
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) {
		m.metrics = mt
	}
}

// WithOnChange registers fn to be called with a snapshot after every state change.
// fn runs while the machine is locked: it must not block or call back into the Machine.
func WithOnChange(fn func(domain.State)) Option {
	return func(m *Machine) {
		m.onChange = fn
	}
}

// Machine drives one job at a time from submission to result. Feedback and result
// events arrive on transport goroutines; each callback carries the epoch of the job it
// was registered for and is dropped once that job has been reset or replaced.
type Machine struct {
	transport      nostr.Transport
	identity       *identity.Provider
	submitter      *Submitter
	wallet         lightning.Wallet
	metrics        *metrics.Metrics
	log            *logrus.Logger
	paymentTimeout time.Duration
	providerPk     string
	onChange       func(domain.State)

	mu        sync.Mutex
	epoch     uint64
	state     domain.State
	cancels   []CancelFunc
	timer     paymentTimer
	payCancel context.CancelFunc
	// set after a failed Pay; the provider may then replace its invoice once
	reissue bool
}

func NewMachine(
	transport nostr.Transport,
	ids *identity.Provider,
	log *logrus.Logger,
	opts ...Option,
) *Machine {
	m := &Machine{
		transport:      transport,
		identity:       ids,
		log:            log,
		paymentTimeout: DefaultPaymentTimeout,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.submitter = NewSubmitter(transport, m.providerPk, log)

	return m
}

// State returns a snapshot of the current job.
func (m *Machine) State() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

// Submit retires the current job, publishes a new request and starts listening for
// its feedback and result. It blocks until a relay accepted the request or all of
// them failed.
func (m *Machine) Submit(
	ctx context.Context,
	kind int,
	input string,
	params map[string]string,
) (string, error) {
	m.mu.Lock()
	retired := m.resetLocked()
	epoch := m.epoch
	m.setStatusLocked(domain.StatusSubmitted)
	m.notifyLocked()

	signer, err := m.identity.Signer()
	if err != nil {
		m.failLocked(err.Error())
		m.mu.Unlock()
		stopListeners(retired)
		return "", err
	}
	m.mu.Unlock()
	stopListeners(retired)

	req := &domain.JobRequest{
		Kind:      kind,
		Input:     input,
		Params:    params,
		CreatedAt: time.Now(),
	}
	m.metrics.Submitted()
	jobID, err := m.submitter.Submit(ctx, signer, req)

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return "", domain.ErrSuperseded
	}
	if err != nil {
		m.metrics.PublishFailed()
		m.log.Errorf("[job] submit %+v", err)
		m.failLocked(err.Error())
		m.mu.Unlock()
		return "", err
	}
	m.state.JobID = jobID
	m.notifyLocked()
	m.mu.Unlock()

	// listeners outlive the submit call; only their cancel funcs end them
	subCtx := context.WithoutCancel(ctx)
	cancels, err := m.listen(subCtx, epoch, jobID, nostr.ResultKind(kind))

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		stopListeners(cancels)
		return "", domain.ErrSuperseded
	}
	if err != nil {
		m.log.Errorf("[job] listen for job %s %+v", jobID, err)
		m.failLocked(err.Error())
		m.mu.Unlock()
		return "", err
	}
	m.cancels = append(m.cancels, cancels...)
	m.mu.Unlock()

	return jobID, nil
}

func (m *Machine) listen(
	ctx context.Context,
	epoch uint64,
	jobID string,
	resultKind int,
) ([]CancelFunc, error) {
	cancelFeedback, err := ListenFeedback(ctx, m.transport, jobID, m.log, func(fb *domain.Feedback) {
		m.handleFeedback(epoch, fb)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to feedback %w", err)
	}

	cancelResult, err := ListenResult(ctx, m.transport, jobID, resultKind, m.log, func(res *domain.JobResult) {
		m.handleResult(epoch, res)
	})
	if err != nil {
		cancelFeedback()
		return nil, fmt.Errorf("subscribe to results %w", err)
	}

	return []CancelFunc{cancelFeedback, cancelResult}, nil
}

// Reset cancels listeners, the payment timer and any wallet payment in flight, and
// returns the machine to idle. It is idempotent. Once it returns no listener callback of
// the retired job is running.
func (m *Machine) Reset() {
	m.mu.Lock()
	retired := m.resetLocked()
	m.notifyLocked()
	m.mu.Unlock()

	stopListeners(retired)
}

// Pay settles the pending invoice with the configured wallet. The job stays in paying
// until the provider reports processing or delivers the result; a failed payment puts
// it back to payment_required.
func (m *Machine) Pay(ctx context.Context) error {
	m.mu.Lock()
	if m.wallet == nil {
		m.mu.Unlock()
		return domain.ErrNoWallet
	}
	if m.state.Status != domain.StatusPaymentRequired || m.state.Payment == nil {
		m.mu.Unlock()
		return domain.ErrNoPayment
	}

	epoch := m.epoch
	invoice := m.state.Payment.Invoice
	payCtx, cancel := context.WithCancel(ctx)
	m.payCancel = cancel
	m.setStatusLocked(domain.StatusPaying)
	m.notifyLocked()
	m.mu.Unlock()

	_, err := m.wallet.PayInvoice(payCtx, invoice)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch {
		return domain.ErrSuperseded
	}
	m.payCancel = nil

	if err != nil {
		m.log.Errorf("[job] pay invoice for %s %+v", m.state.JobID, err)
		if m.state.Status == domain.StatusPaying {
			m.reissue = true
			m.setStatusLocked(domain.StatusPaymentRequired)
			m.notifyLocked()
		}
		return fmt.Errorf("pay invoice %w", err)
	}
	m.log.Debugf("[job] paid invoice for %s", m.state.JobID)

	return nil
}

func (m *Machine) handleFeedback(epoch uint64, fb *domain.Feedback) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(epoch) {
		return
	}

	status := m.state.Status
	switch fb.Status {
	case domain.FeedbackPaymentRequired:
		if fb.Payment == nil {
			m.log.Debugf("[job] payment-required without invoice for %s", m.state.JobID)
			return
		}
		switch {
		case status == domain.StatusSubmitted || status == domain.StatusPaying:
			if m.state.Payment == nil {
				m.state.Payment = fb.Payment
			}
		case status == domain.StatusPaymentRequired && m.reissue:
			if fb.Payment.Invoice == m.state.Payment.Invoice {
				return
			}
			m.log.Debugf("[job] provider reissued invoice for %s", m.state.JobID)
			m.state.Payment = fb.Payment
			m.reissue = false
		default:
			return
		}
		m.state.PaymentTimedOut = false
		m.setStatusLocked(domain.StatusPaymentRequired)
	case domain.FeedbackProcessing:
		if status == domain.StatusProcessing {
			return
		}
		m.state.PaymentTimedOut = false
		m.setStatusLocked(domain.StatusProcessing)
	case domain.FeedbackError:
		m.log.Errorf("[job] provider failed job %s %q", m.state.JobID, fb.Content)
		m.failLocked(domain.ErrProvider.Error())
		return
	default:
		m.log.Tracef("[job] ignoring feedback %q for %s", fb.Status, m.state.JobID)
		return
	}

	m.notifyLocked()
}

func (m *Machine) handleResult(epoch uint64, res *domain.JobResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.activeLocked(epoch) {
		return
	}

	m.state.Result = res
	m.setStatusLocked(domain.StatusCompleted)
	m.notifyLocked()
	m.log.Debugf("[job] job %s completed", m.state.JobID)
}

func (m *Machine) handlePaymentTimeout(epoch uint64, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch || !m.timer.current(gen) {
		return
	}
	if m.state.Status != domain.StatusPaymentRequired {
		return
	}

	m.state.PaymentTimedOut = true
	m.metrics.PaymentTimedOut()
	m.log.Warnf("[job] job %s %v", m.state.JobID, domain.ErrPaymentTimeout)
	m.notifyLocked()
}

// activeLocked reports whether a callback registered for epoch may still change state.
func (m *Machine) activeLocked(epoch uint64) bool {
	if epoch != m.epoch {
		return false
	}

	return m.state.Status != domain.StatusIdle && !m.state.Status.Terminal()
}

// setStatusLocked is the only place the payment timer is armed or disarmed: it runs
// exactly while the job is in payment_required, and restarts when the invoice changes.
func (m *Machine) setStatusLocked(s domain.JobStatus) {
	prev := m.state.Status
	m.state.Status = s

	if s == domain.StatusPaymentRequired {
		invoice := ""
		if m.state.Payment != nil {
			invoice = m.state.Payment.Invoice
		}
		if prev != domain.StatusPaymentRequired || !m.timer.armedFor(invoice) {
			epoch := m.epoch
			m.timer.arm(m.timeoutFor(m.state.Payment), invoice, func(gen uint64) {
				m.handlePaymentTimeout(epoch, gen)
			})
		}
	} else {
		m.timer.disarm()
	}

	if prev != s {
		m.log.Debugf("[job] %s -> %s", prev, s)
		m.metrics.Transition(s.String())
	}
}

func (m *Machine) failLocked(msg string) {
	m.state.Error = msg
	m.setStatusLocked(domain.StatusError)
	m.notifyLocked()
}

// resetLocked retires the current job and returns its listeners. The caller stops them
// with stopListeners after releasing the lock, since a listener may be waiting for it.
func (m *Machine) resetLocked() []CancelFunc {
	retired := m.cancels
	m.cancels = nil

	if m.payCancel != nil {
		m.payCancel()
		m.payCancel = nil
	}

	m.timer.disarm()
	m.epoch++
	m.reissue = false
	m.state = domain.State{}

	return retired
}

func stopListeners(cancels []CancelFunc) {
	for _, cancel := range cancels {
		cancel()
	}
}

// timeoutFor shortens the payment timeout to the invoice expiry when the invoice can
// be decoded.
func (m *Machine) timeoutFor(payment *domain.PaymentInfo) time.Duration {
	d := m.paymentTimeout
	if payment == nil {
		return d
	}

	invoice, err := lightning.DecodeInvoice(payment.Invoice)
	if err != nil {
		m.log.Tracef("[job] decode invoice %+v", err)
		return d
	}

	if invoice.AmountMsats != 0 && invoice.AmountMsats != payment.AmountMsats {
		m.log.Warnf(
			"[job] invoice amount %d msats differs from requested %d msats",
			invoice.AmountMsats,
			payment.AmountMsats,
		)
	}

	if until := time.Until(invoice.ExpiresAt); until < d {
		d = until
	}
	if d < 0 {
		d = 0
	}

	return d
}

func (m *Machine) snapshotLocked() domain.State {
	s := m.state
	if s.Payment != nil {
		p := *s.Payment
		s.Payment = &p
	}
	if s.Result != nil {
		r := *s.Result
		s.Result = &r
	}

	return s
}

func (m *Machine) notifyLocked() {
	if m.onChange != nil {
		m.onChange(m.snapshotLocked())
	}
}
