package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/sebdeveloper6952/dvmjob/job"
	"github.com/sebdeveloper6952/dvmjob/lightning"
	"github.com/sebdeveloper6952/dvmjob/lightning/lnbits"
	"github.com/sebdeveloper6952/dvmjob/lightning/lnd"
	"github.com/sebdeveloper6952/dvmjob/metrics"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/spf13/cobra"
)

var (
	flagKind    int
	flagService string
	flagParams  []string
	flagPay     bool
)

var submitCmd = &cobra.Command{
	Use:   "submit [flags] <input>",
	Short: "publish a job request and follow it until it completes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doSubmit,
}

func init() {
	submitCmd.Flags().IntVar(&flagKind, "kind", 0, "job request kind, overrides --service")
	submitCmd.Flags().StringVar(&flagService, "service", "generate", "service from the catalog, see the services command")
	submitCmd.Flags().StringArrayVar(&flagParams, "param", nil, "job parameter as key=value, repeatable")
	submitCmd.Flags().BoolVar(&flagPay, "pay", false, "pay invoices with the configured wallet")
}

func doSubmit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind, params, err := requestKindAndParams()
	if err != nil {
		return err
	}

	pool := nostr.NewPool(logger, cfg.Relays...)
	if err := pool.Connect(ctx); err != nil {
		return err
	}
	defer pool.Close()

	reg := prometheus.NewRegistry()
	if cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, reg)
	}

	wallet, closeWallet, err := newWallet()
	if err != nil {
		return err
	}
	defer closeWallet()

	changed := make(chan struct{}, 1)
	opts := []job.Option{
		job.WithPaymentTimeout(cfg.PaymentTimeout),
		job.WithProvider(cfg.ProviderPubkey),
		job.WithMetrics(metrics.New(reg)),
		job.WithOnChange(notifier(changed)),
	}
	if wallet != nil {
		opts = append(opts, job.WithWallet(wallet))
	}

	machine := job.NewMachine(pool, identityProvider(), logger, opts...)
	defer machine.Reset()

	publishCtx, cancel := context.WithTimeout(ctx, cfg.PublishTimeout)
	jobID, err := machine.Submit(publishCtx, kind, strings.Join(args, " "), params)
	cancel()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "job %s submitted\n", jobID)

	return follow(ctx, cmd.OutOrStdout(), machine, changed, flagPay)
}

// notifier turns state changes into a wake-up signal. Signals coalesce, so the reader
// must look at the machine's current state after each one.
func notifier(changed chan<- struct{}) func(domain.State) {
	return func(domain.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	}
}

// follow prints the job's progress until it completes, fails or ctx is done. With pay
// set, the first invoice seen is paid with the machine's wallet.
func follow(
	ctx context.Context,
	out io.Writer,
	machine *job.Machine,
	changed <-chan struct{},
	pay bool,
) error {
	var (
		last       domain.State
		payStarted bool
	)

	for {
		s := machine.State()
		printState(out, last, s)
		last = s

		switch s.Status {
		case domain.StatusPaymentRequired:
			if pay && !payStarted {
				payStarted = true
				go func() {
					if err := machine.Pay(ctx); err != nil {
						logger.Errorf("[cli] pay %+v", err)
					}
				}()
			}
		case domain.StatusCompleted:
			fmt.Fprintln(out, s.Result.Content)
			return nil
		case domain.StatusError:
			return errors.New(s.Error)
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func requestKindAndParams() (int, map[string]string, error) {
	params := make(map[string]string)
	kind := flagKind

	if kind == 0 {
		svc, ok := domain.ServiceByName(flagService)
		if !ok {
			return 0, nil, fmt.Errorf("unknown service %q", flagService)
		}
		kind = svc.Kind
		for k, v := range svc.Params {
			params[k] = v
		}
	}

	for _, p := range flagParams {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return 0, nil, fmt.Errorf("param %q is not key=value", p)
		}
		params[k] = v
	}

	return kind, params, nil
}

// identityProvider signs with a local key: the configured secret, or else the key file,
// which is created on first use. The CLI has no remote signer to delegate to.
func identityProvider() *identity.Provider {
	if cfg.SecretKey != "" {
		return identity.NewProvider(nil, func() (*identity.LocalSigner, error) {
			return identity.NewLocalSigner(cfg.SecretKey)
		})
	}

	return identity.NewProvider(nil, identity.KeyFileLoader(cfg.KeyFile))
}

func newWallet() (lightning.Wallet, func(), error) {
	noop := func() {}

	switch cfg.Wallet.Backend {
	case "lnd":
		network, err := lnd.ParseNetwork(cfg.Wallet.Lnd.Network)
		if err != nil {
			return nil, noop, err
		}

		var tlsData string
		if cfg.Wallet.Lnd.TLSPath != "" {
			b, err := os.ReadFile(cfg.Wallet.Lnd.TLSPath)
			if err != nil {
				return nil, noop, err
			}
			tlsData = string(b)
		}

		client, err := lnd.New(
			cfg.Wallet.Lnd.Address,
			cfg.Wallet.Lnd.MacaroonHex,
			tlsData,
			network,
		)
		if err != nil {
			return nil, noop, err
		}

		return client, client.Close, nil
	case "lnbits":
		return lnbits.New(cfg.Wallet.Lnbits.URL, cfg.Wallet.Lnbits.Key), noop, nil
	}

	return nil, noop, nil
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Errorf("[cli] metrics server %+v", err)
	}
}

func printState(out io.Writer, prev, s domain.State) {
	if s.PaymentTimedOut && !prev.PaymentTimedOut {
		fmt.Fprintln(out, "payment not confirmed yet, the provider may still pick it up")
		return
	}
	if s.Status == prev.Status {
		return
	}

	switch s.Status {
	case domain.StatusPaymentRequired:
		fmt.Fprintf(out, "payment required: %d sats\n%s\n", s.Payment.Sats(), s.Payment.Invoice)
	case domain.StatusError:
		fmt.Fprintf(out, "error: %s\n", s.Error)
	default:
		fmt.Fprintln(out, s.Status)
	}
}
