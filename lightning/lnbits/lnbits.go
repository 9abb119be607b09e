package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lightningnetwork/lnd/lntypes"
	"github.com/sebdeveloper6952/dvmjob/lightning"
)

const pollInterval = time.Second

type lnbits struct {
	url    string
	key    string
	client *http.Client
}

type payment struct {
	Out    bool   `json:"out"`
	Bolt11 string `json:"bolt11"`
}

type paymentResponse struct {
	PaymentHash string `json:"payment_hash"`
	Paid        bool   `json:"paid"`
	Preimage    string `json:"preimage"`
	Detail      string `json:"detail"`
}

func New(
	url string,
	key string,
) lightning.Wallet {
	return &lnbits{
		url:    url,
		key:    key,
		client: http.DefaultClient,
	}
}

func (l *lnbits) PayInvoice(ctx context.Context, payReq string) (*lightning.Payment, error) {
	bodyBytes, err := json.Marshal(&payment{
		Out:    true,
		Bolt11: payReq,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		l.url+"/api/v1/payments",
		bytes.NewBuffer(bodyBytes),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	target := &paymentResponse{}
	if err := l.do(req, target); err != nil {
		return nil, err
	}

	hash, err := lntypes.MakeHashFromStr(target.PaymentHash)
	if err != nil {
		return nil, err
	}

	return l.waitPaid(ctx, hash)
}

func (l *lnbits) waitPaid(ctx context.Context, hash lntypes.Hash) (*lightning.Payment, error) {
	for {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			l.url+"/api/v1/payments/"+hash.String(),
			http.NoBody,
		)
		if err != nil {
			return nil, err
		}

		target := &paymentResponse{}
		if err := l.do(req, target); err != nil {
			return nil, err
		}

		if target.Paid {
			return &lightning.Payment{
				Hash:     hash,
				Preimage: target.Preimage,
			}, nil
		}

		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *lnbits) do(req *http.Request, target *paymentResponse) error {
	req.Header.Set("X-Api-Key", l.key)

	res, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(target); err != nil {
		return err
	}

	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("lnbits %s %s", res.Status, target.Detail)
	}

	return nil
}
