package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()

	r.ObserveSuccess("ETH/USD", "1h", "default", 2.8, 0.7, true, 20*time.Millisecond)
	r.ObserveSuccess("ETH/USD", "1h", "default", 3.1, 0.6, false, 10*time.Millisecond)
	r.ObserveFailure("1h", "no_support_below_price", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.Analyses.WithLabelValues("1h", "success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.Analyses.WithLabelValues("1h", "failed", "no_support_below_price")))
	assert.Equal(t, 3.1, testutil.ToFloat64(r.Recommended.WithLabelValues("ETH/USD", "1h", "default")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.EntrySignals.WithLabelValues("ETH/USD", "default")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.Confidence))
}

func TestRecorderHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveFailure("4h", "market_data_empty", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `leverage_analyses_total{error_kind="market_data_empty",status="failed",timeframe="4h"} 1`))
}
