package lnbits_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sebdeveloper6952/dvmjob/lightning/lnbits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paymentHash = "7f0b5a2e3c1d9e8f7a6b5c4d3e2f1a0b9c8d7e6f5a4b3c2d1e0f9a8b7c6d5e4f"

func TestPayInvoice(t *testing.T) {
	var polls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "walletkey", r.Header.Get("X-Api-Key"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/payments":
			body := map[string]any{}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, true, body["out"])
			assert.Equal(t, "lnbc1invoice", body["bolt11"])
			_ = json.NewEncoder(w).Encode(map[string]any{"payment_hash": paymentHash})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, paymentHash):
			polls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]any{"paid": true, "preimage": "00ff"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	wallet := lnbits.New(srv.URL, "walletkey")
	payment, err := wallet.PayInvoice(context.Background(), "lnbc1invoice")
	require.NoError(t, err)
	require.Equal(t, paymentHash, payment.Hash.String())
	require.Equal(t, "00ff", payment.Preimage)
	require.Equal(t, int32(1), polls.Load())
}

func TestPayInvoiceRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{"detail": "insufficient balance"})
	}))
	defer srv.Close()

	_, err := lnbits.New(srv.URL, "walletkey").PayInvoice(context.Background(), "lnbc1invoice")
	require.ErrorContains(t, err, "insufficient balance")
}
