package observability

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRecordTrade(t *testing.T) {
	skipped := DefaultMetrics.TradesSkipped.WithLabelValues("MISSING_PRICE_DATA")
	before := counterValue(t, DefaultMetrics.TradesSimulated)
	skippedBefore := counterValue(t, skipped)

	RecordTrade(false, "")
	RecordTrade(true, "MISSING_PRICE_DATA")

	assert.Equal(t, before+1, counterValue(t, DefaultMetrics.TradesSimulated))
	assert.Equal(t, skippedBefore+1, counterValue(t, skipped))
}

func TestRecordPriceFetch(t *testing.T) {
	failures := DefaultMetrics.PriceFetchFailures.WithLabelValues("test")
	before := counterValue(t, failures)

	RecordPriceFetch("test", 0.1, nil)
	RecordPriceFetch("test", 0.2, errors.New("timeout"))

	assert.Equal(t, before+1, counterValue(t, failures))
}

func TestRecordSignal_NoneLabel(t *testing.T) {
	none := DefaultMetrics.SignalsGenerated.WithLabelValues("none")
	before := counterValue(t, none)

	RecordSignal("")

	assert.Equal(t, before+1, counterValue(t, none))
}
