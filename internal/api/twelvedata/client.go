package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	httpClient "github.com/Alias1177/LeverageAdvisor/internal/platform/http"
	"github.com/Alias1177/LeverageAdvisor/models"
)

// DefaultBaseURL is the public Twelve Data endpoint
const DefaultBaseURL = "https://api.twelvedata.com"

var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		Timeout:         options.RequestTimeout,
		RequestsPerSec:  options.RequestsPerSec,
		MaxRetries:      options.MaxRetries,
		MaxRetryTimeout: options.MaxRetryTimeout,
	}
	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// GetCandles fetches candle data from Twelve Data API, oldest first.
// timeframe may use either "1h"/"15m" or Twelve Data interval names.
func (c *Client) GetCandles(ctx context.Context, symbol string, timeframe string, count int) ([]models.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", models.TwelveDataInterval(timeframe))
	query.Set("outputsize", fmt.Sprint(count))
	query.Set("timezone", "UTC")
	c.logger.Debug().Str("symbol", symbol).Str("interval", query.Get("interval")).Int("count", count).Msg("Fetching candles")
	query.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/time_series?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	var data models.TwelveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if data.Status == "error" {
		c.logger.Error().Str("symbol", symbol).Str("message", data.Message).Msg("Twelve Data API error")
		return nil, fmt.Errorf("twelve data API error: %s", data.Message)
	}
	if len(data.Values) == 0 {
		c.logger.Warn().Str("symbol", symbol).Msg("No candles in response")
		return nil, models.NewMarketDataError(models.KindMarketDataEmpty, symbol, "values", "empty data returned")
	}

	candles := make([]models.Candle, 0, len(data.Values))
	for _, v := range data.Values {
		ts, err := parseDatetime(v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("parsing datetime %q: %w", v.Datetime, err)
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      v.Open,
			High:      v.High,
			Low:       v.Low,
			Close:     v.Close,
			Volume:    v.Volume,
		})
	}

	// Sort candles oldest first for proper calculations
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	c.logger.Debug().Int("count", len(candles)).Msg("Fetched candles")
	return candles, nil
}

// GetHistoricalCandles fetches enough candles to cover the given number of days
func (c *Client) GetHistoricalCandles(ctx context.Context, symbol string, timeframe string, days int) ([]models.Candle, error) {
	count := models.CandlesForDays(timeframe, days)
	if count <= 0 {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	// Twelve Data caps outputsize at 5000
	if count > 5000 {
		count = 5000
	}
	return c.GetCandles(ctx, symbol, timeframe, count)
}

func parseDatetime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range datetimeLayouts {
		ts, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
