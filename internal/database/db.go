package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Alias1177/LeverageAdvisor/models"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// New opens a PostgreSQL connection, checks it and creates the schema
func New(ctx context.Context, dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{db}
	if err := d.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Migrate creates the necessary tables if they don't exist
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leverage_analyses (
			id BIGSERIAL PRIMARY KEY,
			execution_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			current_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			recommended_leverage DOUBLE PRECISION NOT NULL DEFAULT 0,
			max_safe_leverage DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_reward_ratio DOUBLE PRECISION NOT NULL DEFAULT 0,
			stop_loss_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			take_profit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
			confidence_level DOUBLE PRECISION NOT NULL DEFAULT 0,
			reasoning TEXT[] NOT NULL DEFAULT '{}',
			entry_signal BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (execution_id, symbol, timeframe, strategy)
		)
	`)
	if err != nil {
		return fmt.Errorf("create leverage_analyses: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS leverage_analyses_symbol_created_idx
		ON leverage_analyses (symbol, created_at DESC)
	`)
	if err != nil {
		return fmt.Errorf("create leverage_analyses index: %w", err)
	}
	return nil
}

// SaveAnalysis stores one analysis unit, replacing an earlier row of the same
// execution, symbol, timeframe and strategy
func (db *DB) SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	reasoning := rec.Reasoning
	if reasoning == nil {
		reasoning = []string{}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO leverage_analyses (
			execution_id, symbol, timeframe, strategy, status, error_kind, error_message,
			current_price, recommended_leverage, max_safe_leverage, risk_reward_ratio,
			stop_loss_price, take_profit_price, confidence_level, reasoning, entry_signal, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (execution_id, symbol, timeframe, strategy)
		DO UPDATE SET
			status = EXCLUDED.status,
			error_kind = EXCLUDED.error_kind,
			error_message = EXCLUDED.error_message,
			current_price = EXCLUDED.current_price,
			recommended_leverage = EXCLUDED.recommended_leverage,
			max_safe_leverage = EXCLUDED.max_safe_leverage,
			risk_reward_ratio = EXCLUDED.risk_reward_ratio,
			stop_loss_price = EXCLUDED.stop_loss_price,
			take_profit_price = EXCLUDED.take_profit_price,
			confidence_level = EXCLUDED.confidence_level,
			reasoning = EXCLUDED.reasoning,
			entry_signal = EXCLUDED.entry_signal,
			created_at = EXCLUDED.created_at
	`,
		rec.ExecutionID, rec.Symbol, rec.Timeframe, rec.Strategy, rec.Status, rec.ErrorKind, rec.ErrorMessage,
		rec.CurrentPrice, rec.RecommendedLeverage, rec.MaxSafeLeverage, rec.RiskRewardRatio,
		rec.StopLossPrice, rec.TakeProfitPrice, rec.ConfidenceLevel, pq.Array(reasoning), rec.EntrySignal, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("save analysis %s %s/%s/%s: %w", rec.ExecutionID, rec.Symbol, rec.Timeframe, rec.Strategy, err)
	}
	return nil
}

// LatestAnalyses returns the newest rows for a symbol, newest first
func (db *DB) LatestAnalyses(ctx context.Context, symbol string, limit int) ([]models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT execution_id, symbol, timeframe, strategy, status, error_kind, error_message,
			current_price, recommended_leverage, max_safe_leverage, risk_reward_ratio,
			stop_loss_price, take_profit_price, confidence_level, reasoning, entry_signal, created_at
		FROM leverage_analyses
		WHERE symbol = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query analyses for %s: %w", symbol, err)
	}
	defer rows.Close()

	var out []models.AnalysisRecord
	for rows.Next() {
		var rec models.AnalysisRecord
		if err := rows.Scan(
			&rec.ExecutionID, &rec.Symbol, &rec.Timeframe, &rec.Strategy, &rec.Status, &rec.ErrorKind, &rec.ErrorMessage,
			&rec.CurrentPrice, &rec.RecommendedLeverage, &rec.MaxSafeLeverage, &rec.RiskRewardRatio,
			&rec.StopLossPrice, &rec.TakeProfitPrice, &rec.ConfidenceLevel, pq.Array(&rec.Reasoning), &rec.EntrySignal, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
