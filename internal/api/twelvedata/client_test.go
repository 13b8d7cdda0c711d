package twelvedata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/LeverageAdvisor/models"
)

const seriesBody = `{
  "meta": {"symbol": "ETH/USD", "interval": "1h"},
  "values": [
    {"datetime": "2024-01-01 02:00:00", "open": "102", "high": "104", "low": "101", "close": "103", "volume": "12"},
    {"datetime": "2024-01-01 01:00:00", "open": "101", "high": "103", "low": "100", "close": "102", "volume": "11"},
    {"datetime": "2024-01-01 00:00:00", "open": "100", "high": "102", "low": "99", "close": "101", "volume": "10"}
  ],
  "status": "ok"
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientOptions{
		APIKey:          "test-key",
		BaseURL:         srv.URL,
		RequestTimeout:  time.Second,
		RequestsPerSec:  100,
		MaxRetries:      1,
		MaxRetryTimeout: time.Second,
	})
}

func TestGetCandles(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/time_series", r.URL.Path)
		assert.Equal(t, "ETH/USD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "15min", r.URL.Query().Get("interval"))
		assert.Equal(t, "3", r.URL.Query().Get("outputsize"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		_, _ = w.Write([]byte(seriesBody))
	})

	candles, err := client.GetCandles(context.Background(), "ETH/USD", "15m", 3)
	require.NoError(t, err)
	require.Len(t, candles, 3)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), candles[0].Timestamp)
	assert.Equal(t, 100.0, candles[0].Open)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 10.0, candles[0].Volume)
	assert.Equal(t, 103.0, candles[2].Close)
}

func TestGetCandlesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 400, "message": "invalid symbol", "status": "error"}`))
	})

	_, err := client.GetCandles(context.Background(), "NOPE", "1h", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid symbol")
}

func TestGetCandlesEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"values": [], "status": "ok"}`))
	})

	_, err := client.GetCandles(context.Background(), "ETH/USD", "1h", 10)
	var md *models.InsufficientMarketDataError
	require.True(t, errors.As(err, &md))
	assert.Equal(t, models.KindMarketDataEmpty, md.Kind)
}

func TestParseDatetime(t *testing.T) {
	ts, err := parseDatetime("2024-02-03")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), ts)

	_, err = parseDatetime("03/02/2024")
	assert.Error(t, err)
}
