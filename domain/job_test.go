package domain_test

import (
	"testing"

	"github.com/sebdeveloper6952/dvmjob/domain"
	"github.com/stretchr/testify/require"
)

func TestPaymentInfoSatsRoundsUp(t *testing.T) {
	require.Equal(t, int64(0), domain.PaymentInfo{AmountMsats: 0}.Sats())
	require.Equal(t, int64(1), domain.PaymentInfo{AmountMsats: 1}.Sats())
	require.Equal(t, int64(1), domain.PaymentInfo{AmountMsats: 1000}.Sats())
	require.Equal(t, int64(2), domain.PaymentInfo{AmountMsats: 1001}.Sats())
}

func TestJobStatusNames(t *testing.T) {
	require.Equal(t, "payment_required", domain.StatusPaymentRequired.String())
	require.True(t, domain.StatusCompleted.Terminal())
	require.True(t, domain.StatusError.Terminal())
	require.False(t, domain.StatusPaying.Terminal())
}
