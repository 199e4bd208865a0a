package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gathered returns the value of the first sample of name whose labels
// include all of want.
func gathered(t *testing.T, name string, want map[string]string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func TestRecordCurrencyIgnoresNonPositive(t *testing.T) {
	before := gathered(t, "syndicate_currency_awarded_total", map[string]string{"currency": "torcoins"})
	RecordCurrency("torcoins", 0)
	RecordCurrency("torcoins", -3)
	RecordCurrency("torcoins", 2)
	after := gathered(t, "syndicate_currency_awarded_total", map[string]string{"currency": "torcoins"})
	assert.Equal(t, before+2, after)
}

func TestRecordContractLifecycle(t *testing.T) {
	RecordContractAccepted("easy", true)
	RecordContractCompleted("easy", 3*time.Second)
	assert.GreaterOrEqual(t, gathered(t, "syndicate_contracts_accepted_total", map[string]string{"difficulty": "easy", "forced": "true"}), 1.0)
	assert.GreaterOrEqual(t, gathered(t, "syndicate_contracts_completed_total", map[string]string{"difficulty": "easy"}), 1.0)
}

func TestSetActiveSessions(t *testing.T) {
	SetActiveSessions(4)
	assert.Equal(t, 4.0, gathered(t, "syndicate_sessions_active", nil))
}
