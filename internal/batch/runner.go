// Package batch runs the leverage pipeline over many symbol, timeframe and
// strategy combinations.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Alias1177/LeverageAdvisor/internal/analysis/correlation"
	"github.com/Alias1177/LeverageAdvisor/internal/analysis/market"
	"github.com/Alias1177/LeverageAdvisor/internal/analysis/prediction"
	"github.com/Alias1177/LeverageAdvisor/internal/analysis/technical"
	"github.com/Alias1177/LeverageAdvisor/internal/config"
	"github.com/Alias1177/LeverageAdvisor/internal/leverage"
	"github.com/Alias1177/LeverageAdvisor/internal/metrics"
	"github.com/Alias1177/LeverageAdvisor/internal/notify"
	"github.com/Alias1177/LeverageAdvisor/models"
)

// Job is one unit of work
type Job struct {
	Symbol    string
	Timeframe string
	Strategy  string
}

func (j Job) String() string {
	return j.Symbol + "/" + j.Timeframe + "/" + j.Strategy
}

// BuildJobs returns the cross product of the inputs, symbols outermost
func BuildJobs(symbols, timeframes, strategies []string) []Job {
	jobs := make([]Job, 0, len(symbols)*len(timeframes)*len(strategies))
	for _, s := range symbols {
		for _, tf := range timeframes {
			for _, st := range strategies {
				jobs = append(jobs, Job{Symbol: s, Timeframe: tf, Strategy: st})
			}
		}
	}
	return jobs
}

// Store persists analysis records
type Store interface {
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
}

// Options tunes a Runner
type Options struct {
	Workers         int
	CandleCount     int
	BTCSymbol       string
	BTCDropScenario float64 // percent, negative for a drop
	Levels          technical.LevelOptions
}

// Summary describes one finished run
type Summary struct {
	ExecutionID  string
	Total        int
	Succeeded    int
	Failed       int
	EntrySignals int
	Records      []models.AnalysisRecord // in job order, only units that finished
}

// Runner executes jobs against a candle source. Store, notifier and metrics
// are optional.
type Runner struct {
	source   models.CandleSource
	configs  *config.LeverageConfigManager
	store    Store
	notifier notify.Notifier
	metrics  *metrics.Recorder
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// Option customizes a Runner
type Option func(*Runner)

// WithStore persists every record
func WithStore(s Store) Option { return func(r *Runner) { r.store = s } }

// WithNotifier announces entry signals
func WithNotifier(n notify.Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithMetrics records unit outcomes
func WithMetrics(m *metrics.Recorder) Option { return func(r *Runner) { r.metrics = m } }

// WithLogger sets the runner logger
func WithLogger(l zerolog.Logger) Option {
	return func(r *Runner) { r.logger = l.With().Str("component", "batch_runner").Logger() }
}

// NewRunner creates a runner
func NewRunner(source models.CandleSource, configs *config.LeverageConfigManager, opts Options, options ...Option) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.CandleCount < 1 {
		opts.CandleCount = 200
	}
	r := &Runner{
		source:  source,
		configs: configs,
		opts:    opts,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run analyzes every job with bounded parallelism. A unit that fails
// analysis is recorded as failed and does not stop the others; a store
// failure or a cancelled context aborts the run.
func (r *Runner) Run(ctx context.Context, jobs []Job, mode market.Mode) (Summary, error) {
	summary := Summary{ExecutionID: uuid.NewString(), Total: len(jobs)}
	logger := r.logger.With().Str("execution_id", summary.ExecutionID).Logger()
	logger.Info().Int("jobs", len(jobs)).Str("mode", mode.String()).Msg("Starting batch run")

	records := make([]*models.AnalysisRecord, len(jobs))
	btc := newBTCCache(r.source, r.opts.BTCSymbol, r.opts.CandleCount)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			rec, err := r.runJob(gctx, summary.ExecutionID, job, mode, btc, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", job, err)
			}
			records[i] = rec
			return nil
		})
	}
	err := g.Wait()

	for _, rec := range records {
		if rec == nil {
			continue
		}
		summary.Records = append(summary.Records, *rec)
		if rec.Status == models.StatusSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if rec.EntrySignal {
			summary.EntrySignals++
		}
	}

	ev := logger.Info()
	if err != nil {
		ev = logger.Error().Err(err)
	}
	ev.Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("entry_signals", summary.EntrySignals).
		Msg("Batch run finished")
	return summary, err
}

// runJob returns an error only when the whole run must stop
func (r *Runner) runJob(ctx context.Context, execID string, job Job, mode market.Mode, btc *btcCache, logger zerolog.Logger) (*models.AnalysisRecord, error) {
	started := r.now()
	logger = logger.With().Str("symbol", job.Symbol).Str("timeframe", job.Timeframe).Str("strategy", job.Strategy).Logger()

	rec, signal, err := r.analyze(ctx, execID, job, mode, btc, logger)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Str("error_kind", string(models.KindOf(err))).Msg("Analysis failed")
		rec = models.NewFailedRecord(execID, job.Symbol, job.Timeframe, job.Strategy, err, r.now().UTC())
	}
	took := r.now().Sub(started)

	if r.store != nil {
		if err := r.store.SaveAnalysis(ctx, rec); err != nil {
			return nil, err
		}
	}

	if r.metrics != nil {
		if rec.Status == models.StatusSuccess {
			r.metrics.ObserveSuccess(job.Symbol, job.Timeframe, job.Strategy, rec.RecommendedLeverage, rec.ConfidenceLevel, signal, took)
		} else {
			r.metrics.ObserveFailure(job.Timeframe, rec.ErrorKind, took)
		}
	}

	if signal && r.notifier != nil {
		if err := r.notifier.Notify(ctx, rec); err != nil {
			logger.Warn().Err(err).Msg("Failed to deliver entry signal")
		}
	}
	return rec, nil
}

func (r *Runner) analyze(ctx context.Context, execID string, job Job, mode market.Mode, btc *btcCache, logger zerolog.Logger) (*models.AnalysisRecord, bool, error) {
	candles, err := r.source.GetCandles(ctx, job.Symbol, job.Timeframe, r.opts.CandleCount)
	if err != nil {
		return nil, false, fmt.Errorf("fetch candles: %w", err)
	}

	var btcCandles []models.Candle
	if r.opts.BTCSymbol != "" && !sameAsset(job.Symbol, r.opts.BTCSymbol) {
		if btcCandles, err = btc.get(ctx, job.Timeframe); err != nil {
			logger.Warn().Err(err).Msg("BTC candles unavailable, using default correlation risk")
		}
	}

	ev, err := r.evaluate(job, candles, btcCandles, mode, logger)
	if err != nil {
		return nil, false, err
	}
	logger.Info().
		Float64("recommended", ev.Recommendation.RecommendedLeverage).
		Float64("confidence", ev.Recommendation.ConfidenceLevel).
		Bool("entry_signal", ev.EntrySignal).
		Msg("Leverage recommendation")
	return models.NewSuccessRecord(execID, job.Symbol, job.Timeframe, job.Strategy, ev.Recommendation, ev.EntrySignal, r.now().UTC()), ev.EntrySignal, nil
}

// Evaluation is the outcome of the analysis chain for one job
type Evaluation struct {
	Recommendation *models.LeverageRecommendation
	EntrySignal    bool
	Constants      config.Constants
	Supports       []models.SupportResistanceLevel
	Resistances    []models.SupportResistanceLevel
	BTCRisk        *models.BTCCorrelationRisk
	Anomalies      []models.MarketAnomaly
}

// Evaluate runs the analysis chain on already fetched series. btcCandles may
// be nil, in which case the engine uses its default correlation risk.
func (r *Runner) Evaluate(job Job, candles, btcCandles []models.Candle, mode market.Mode) (*Evaluation, error) {
	return r.evaluate(job, candles, btcCandles, mode, r.logger)
}

func (r *Runner) evaluate(job Job, candles, btcCandles []models.Candle, mode market.Mode, logger zerolog.Logger) (*Evaluation, error) {
	constants, err := r.configs.GetAdjustedConstants(job.Timeframe, r.configs.CategoryOf(job.Symbol))
	if err != nil {
		return nil, err
	}
	entry, err := r.configs.EntryConditions(job.Strategy)
	if err != nil {
		return nil, err
	}

	analyzer := market.NewAnalyzer(constants.MarketContext, logger)
	mc, err := analyzer.Analyze(candles, mode)
	if err != nil {
		var md *models.InsufficientMarketDataError
		if errors.As(err, &md) && md.Symbol == "" {
			md.Symbol = job.Symbol
		}
		return nil, err
	}
	history := HistoryAt(candles, mode, mc.Timestamp)

	supports, resistances := technical.DetectLevels(history, mc.CurrentPrice, r.opts.Levels)
	levels := make([]models.SupportResistanceLevel, 0, len(supports)+len(resistances))
	levels = append(append(levels, supports...), resistances...)

	ev := &Evaluation{
		Constants:   constants,
		Supports:    supports,
		Resistances: resistances,
		BTCRisk:     r.btcRisk(job, history, HistoryAt(btcCandles, mode, mc.Timestamp), logger),
		Anomalies:   analyzer.DetectAnomalies(history),
	}

	engine, err := leverage.NewEngine(constants, leverage.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	ev.Recommendation, err = engine.CalculateSafeLeverage(leverage.Request{
		Symbol:              job.Symbol,
		SupportLevels:       supports,
		ResistanceLevels:    resistances,
		BreakoutPredictions: prediction.EstimateBreakouts(history, levels),
		BTCCorrelationRisk:  ev.BTCRisk,
		MarketContext:       mc,
	})
	if err != nil {
		return nil, err
	}
	ev.EntrySignal = entry.Allows(ev.Recommendation, constants.MinRiskReward)
	return ev, nil
}

// btcRisk is advisory: any failure yields nil and the engine falls back to
// its configured defaults
func (r *Runner) btcRisk(job Job, history, btcHistory []models.Candle, logger zerolog.Logger) *models.BTCCorrelationRisk {
	if len(btcHistory) == 0 {
		return nil
	}
	risk, err := correlation.AnalyzeBTC(job.Symbol, history, btcHistory, r.opts.BTCDropScenario)
	if err != nil {
		logger.Warn().Err(err).Msg("BTC correlation unavailable, using default correlation risk")
		return nil
	}
	return risk
}

// HistoryAt returns the bars a decision at the given instant may see. In
// backtest mode that is every bar strictly before at; in realtime mode the
// whole series.
func HistoryAt(candles []models.Candle, mode market.Mode, at time.Time) []models.Candle {
	if !mode.IsBacktest() {
		return candles
	}
	n := sort.Search(len(candles), func(i int) bool { return !candles[i].Timestamp.Before(at) })
	return candles[:n]
}

func sameAsset(a, b string) bool {
	norm := func(s string) string {
		s = strings.ToUpper(s)
		if i := strings.IndexAny(s, "/-_:"); i > 0 {
			s = s[:i]
		}
		return s
	}
	return norm(a) == norm(b)
}

type btcEntry struct {
	once    sync.Once
	candles []models.Candle
	err     error
}

// btcCache fetches the BTC series once per timeframe per run
type btcCache struct {
	source models.CandleSource
	symbol string
	count  int

	mu      sync.Mutex
	entries map[string]*btcEntry
}

func newBTCCache(source models.CandleSource, symbol string, count int) *btcCache {
	return &btcCache{source: source, symbol: symbol, count: count, entries: make(map[string]*btcEntry)}
}

var errNoBTCSymbol = errors.New("no BTC symbol configured")

func (c *btcCache) get(ctx context.Context, timeframe string) ([]models.Candle, error) {
	if c.symbol == "" {
		return nil, errNoBTCSymbol
	}
	c.mu.Lock()
	e, ok := c.entries[timeframe]
	if !ok {
		e = &btcEntry{}
		c.entries[timeframe] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.candles, e.err = c.source.GetCandles(ctx, c.symbol, timeframe, c.count)
	})
	return e.candles, e.err
}
