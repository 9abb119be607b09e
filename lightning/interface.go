package lightning

import (
	"context"

	"github.com/lightningnetwork/lnd/lntypes"
)

type Payment struct {
	Hash     lntypes.Hash
	Preimage string
	FeeMsats int64
}

// Wallet pays BOLT-11 invoices. Implementations block until the payment either
// settles or definitely failed.
type Wallet interface {
	PayInvoice(ctx context.Context, payReq string) (*Payment, error)
}
