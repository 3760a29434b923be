package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCountersNormalizeLabels(t *testing.T) {
	IncPayment(" PAID ")
	assert.Equal(t, float64(1), testutil.ToFloat64(paymentsTotal.WithLabelValues("paid")))

	AddPaymentRevenue("EUR", decimal.RequireFromString("12.50"))
	assert.InDelta(t, 12.5, testutil.ToFloat64(paymentsRevenueTotal.WithLabelValues("eur")), 0.0001)

	IncGatewayCall("mollie", "get", errors.New("boom"))
	assert.Equal(t, float64(1), testutil.ToFloat64(gatewayCallsTotal.WithLabelValues("mollie", "get", "error")))
}

func TestWalletMetrics(t *testing.T) {
	AddCreditsApplied(100)
	AddCreditsApplied(50)
	assert.Equal(t, float64(150), testutil.ToFloat64(creditsAppliedTotal))

	ObserveReconcile("webhook", "credited", 20*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(reconcileTotal.WithLabelValues("webhook", "credited")))

	IncNotification("Balance", "sent")
	assert.Equal(t, float64(1), testutil.ToFloat64(notificationsTotal.WithLabelValues("balance", "sent")))
}

func TestMustRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		MustRegister()
		MustRegister()
	})
}
