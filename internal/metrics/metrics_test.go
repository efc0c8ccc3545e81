package metrics_test

import (
	"testing"

	"github.com/alejandrodnm/ftmorisk/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSetGovernorState_OnlyCurrentStateIsOne(t *testing.T) {
	states := []string{"healthy", "reduce", "flatten"}
	metrics.SetGovernorState(states, "reduce")

	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.GovernorState.WithLabelValues("healthy")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.GovernorState.WithLabelValues("reduce")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.GovernorState.WithLabelValues("flatten")))
}

func TestOrdersPlaced_IncrementsByLabel(t *testing.T) {
	before := testutil.ToFloat64(metrics.OrdersPlaced.WithLabelValues("EURUSD", "buy"))
	metrics.OrdersPlaced.WithLabelValues("EURUSD", "buy").Inc()
	after := testutil.ToFloat64(metrics.OrdersPlaced.WithLabelValues("EURUSD", "buy"))

	assert.Equal(t, before+1, after)
}
