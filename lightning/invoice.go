package lightning

import (
	"errors"
	"strings"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/zpay32"
)

type Invoice struct {
	PayReq      string
	AmountMsats int64
	ExpiresAt   time.Time
}

// NetworkParams guesses the chain from the human readable part of the invoice.
func NetworkParams(payReq string) (*chaincfg.Params, error) {
	payReq = strings.ToLower(payReq)

	switch {
	case strings.HasPrefix(payReq, "lnbcrt"):
		return &chaincfg.RegressionNetParams, nil
	case strings.HasPrefix(payReq, "lnbc"):
		return &chaincfg.MainNetParams, nil
	case strings.HasPrefix(payReq, "lntbs"):
		return &chaincfg.SigNetParams, nil
	case strings.HasPrefix(payReq, "lntb"):
		return &chaincfg.TestNet3Params, nil
	case strings.HasPrefix(payReq, "lnsb"):
		return &chaincfg.SimNetParams, nil
	}

	return nil, errors.New("unknown invoice network")
}

func DecodeInvoice(payReq string) (*Invoice, error) {
	params, err := NetworkParams(payReq)
	if err != nil {
		return nil, err
	}

	decoded, err := zpay32.Decode(payReq, params)
	if err != nil {
		return nil, err
	}

	invoice := &Invoice{
		PayReq:    payReq,
		ExpiresAt: decoded.Timestamp.Add(decoded.Expiry()),
	}
	if decoded.MilliSat != nil {
		invoice.AmountMsats = int64(*decoded.MilliSat)
	}

	return invoice, nil
}
