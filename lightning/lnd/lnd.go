package lnd

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/lndclient"
	"github.com/sebdeveloper6952/dvmjob/lightning"
)

// defaultMaxFeeSats caps routing fees for job payments, which are small.
const defaultMaxFeeSats = 100

type Client struct {
	svc    *lndclient.GrpcLndServices
	maxFee btcutil.Amount
}

func New(
	address string,
	macaroonHex string,
	tlsData string,
	network lndclient.Network,
) (*Client, error) {
	svc, err := lndclient.NewLndServices(&lndclient.LndServicesConfig{
		LndAddress:        address,
		Network:           network,
		CustomMacaroonHex: macaroonHex,
		TLSData:           tlsData,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		svc:    svc,
		maxFee: defaultMaxFeeSats,
	}, nil
}

func (l *Client) PayInvoice(
	ctx context.Context,
	payReq string,
) (*lightning.Payment, error) {
	results := l.svc.Client.PayInvoice(ctx, payReq, l.maxFee, nil)

	select {
	case res, ok := <-results:
		if !ok {
			return nil, errors.New("lnd closed payment stream")
		}
		if res.Err != nil {
			return nil, fmt.Errorf("lnd pay invoice %w", res.Err)
		}

		return &lightning.Payment{
			Hash:     res.Preimage.Hash(),
			Preimage: res.Preimage.String(),
			FeeMsats: int64(res.PaidFee) * 1000,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Client) Close() {
	l.svc.Close()
}

// ParseNetwork maps a configured network name to lndclient's network type.
func ParseNetwork(name string) (lndclient.Network, error) {
	switch name {
	case "mainnet", "":
		return lndclient.NetworkMainnet, nil
	case "testnet":
		return lndclient.NetworkTestnet, nil
	case "regtest":
		return lndclient.NetworkRegtest, nil
	case "simnet":
		return lndclient.NetworkSimnet, nil
	case "signet":
		return lndclient.NetworkSignet, nil
	}

	return "", fmt.Errorf("unknown lnd network %q", name)
}
