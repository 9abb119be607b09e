package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/sebdeveloper6952/dvmjob/identity"
	"github.com/sebdeveloper6952/dvmjob/nostr"
	"github.com/spf13/cobra"
)

var (
	flagDiscoverKind    int
	flagDiscoverTimeout time.Duration
)

var servicesCmd = &cobra.Command{
	Use:   "services",
	Short: "list the services submit knows by name",
	Run: func(cmd *cobra.Command, args []string) {
		for _, svc := range domain.Services {
			fmt.Fprintf(cmd.OutOrStdout(), "%-10s %d  %s\n", svc.Name, svc.Kind, svc.Description)
		}
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "discover providers announcing support for a job kind",
	RunE:  doProviders,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "create the local secret key if it does not exist and print the public key",
	RunE: func(cmd *cobra.Command, args []string) error {
		signer, err := identity.LoadOrCreateKeyFile(cfg.KeyFile)
		if err != nil {
			return err
		}
		pk, err := signer.PublicKey(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pk)
		return nil
	},
}

func init() {
	generate, _ := domain.ServiceByName("generate")
	providersCmd.Flags().IntVar(&flagDiscoverKind, "kind", generate.Kind, "job request kind")
	providersCmd.Flags().DurationVar(&flagDiscoverTimeout, "timeout", 5*time.Second, "how long to collect announcements")
}

func doProviders(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), flagDiscoverTimeout)
	defer cancel()

	pool := nostr.NewPool(logger, cfg.Relays...)
	if err := pool.Connect(ctx); err != nil {
		return err
	}
	defer pool.Close()

	providers, err := nostr.DiscoverProviders(ctx, pool, flagDiscoverKind)
	if err != nil {
		return err
	}

	for _, p := range providers {
		name := ""
		if p.Profile != nil {
			name = p.Profile.Name
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", p.Pubkey, name)
	}

	return nil
}
