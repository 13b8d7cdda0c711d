// Package metrics exposes Prometheus instruments for batch analysis runs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Recorder holds the analyzer's Prometheus metrics
type Recorder struct {
	registry *prometheus.Registry

	Analyses        *prometheus.CounterVec
	AnalysisSeconds *prometheus.HistogramVec
	Recommended     *prometheus.GaugeVec
	Confidence      *prometheus.GaugeVec
	EntrySignals    *prometheus.CounterVec
}

// NewRecorder creates the metrics on a private registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leverage_analyses_total",
				Help: "Analysis units by timeframe, status and error kind",
			},
			[]string{"timeframe", "status", "error_kind"},
		),

		AnalysisSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leverage_analysis_duration_seconds",
				Help:    "Wall time of one analysis unit including data fetch",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"timeframe"},
		),

		Recommended: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leverage_recommended",
				Help: "Latest recommended leverage",
			},
			[]string{"symbol", "timeframe", "strategy"},
		),

		Confidence: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leverage_confidence",
				Help: "Latest recommendation confidence (0.0 to 1.0)",
			},
			[]string{"symbol", "timeframe", "strategy"},
		),

		EntrySignals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leverage_entry_signals_total",
				Help: "Recommendations that passed the entry conditions",
			},
			[]string{"symbol", "strategy"},
		),
	}

	r.registry.MustRegister(r.Analyses, r.AnalysisSeconds, r.Recommended, r.Confidence, r.EntrySignals)
	return r
}

// Registry returns the registry the metrics live on
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveSuccess records a recommendation
func (r *Recorder) ObserveSuccess(symbol, timeframe, strategy string, recommended, confidence float64, entry bool, took time.Duration) {
	r.Analyses.WithLabelValues(timeframe, "success", "").Inc()
	r.AnalysisSeconds.WithLabelValues(timeframe).Observe(took.Seconds())
	r.Recommended.WithLabelValues(symbol, timeframe, strategy).Set(recommended)
	r.Confidence.WithLabelValues(symbol, timeframe, strategy).Set(confidence)
	if entry {
		r.EntrySignals.WithLabelValues(symbol, strategy).Inc()
	}
}

// ObserveFailure records a unit that ended in an error of the given kind
func (r *Recorder) ObserveFailure(timeframe, errorKind string, took time.Duration) {
	r.Analyses.WithLabelValues(timeframe, "failed", errorKind).Inc()
	r.AnalysisSeconds.WithLabelValues(timeframe).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (r *Recorder) Serve(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
