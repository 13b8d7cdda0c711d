package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/LeverageAdvisor/models"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn}, mock
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS leverage_analyses`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS leverage_analyses_symbol_created_idx`).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAnalysis(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	rec := &models.AnalysisRecord{
		ExecutionID:         "exec-1",
		Symbol:              "ETH/USD",
		Timeframe:           "1h",
		Strategy:            "default",
		Status:              models.StatusSuccess,
		CurrentPrice:        100,
		RecommendedLeverage: 2.8,
		MaxSafeLeverage:     4,
		RiskRewardRatio:     0.75,
		StopLossPrice:       96.4,
		TakeProfitPrice:     104.5,
		ConfidenceLevel:     0.7,
		Reasoning:           []string{"first", "second"},
		EntrySignal:         true,
		CreatedAt:           at,
	}

	mock.ExpectExec(`INSERT INTO leverage_analyses .* ON CONFLICT \(execution_id, symbol, timeframe, strategy\)`).
		WithArgs("exec-1", "ETH/USD", "1h", "default", models.StatusSuccess, "", "",
			100.0, 2.8, 4.0, 0.75, 96.4, 104.5, 0.7, sqlmock.AnyArg(), true, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, db.SaveAnalysis(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAnalysisWrapsError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectExec(`INSERT INTO leverage_analyses`).WillReturnError(boom)

	err := db.SaveAnalysis(context.Background(), &models.AnalysisRecord{ExecutionID: "e", Symbol: "BTC/USD"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestLatestAnalyses(t *testing.T) {
	db, mock := newMock(t)
	at := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	columns := []string{
		"execution_id", "symbol", "timeframe", "strategy", "status", "error_kind", "error_message",
		"current_price", "recommended_leverage", "max_safe_leverage", "risk_reward_ratio",
		"stop_loss_price", "take_profit_price", "confidence_level", "reasoning", "entry_signal", "created_at",
	}
	rows := sqlmock.NewRows(columns).
		AddRow("exec-2", "ETH/USD", "4h", "default", models.StatusFailed, "no_support_below_price", "no support",
			0.0, 0.0, 0.0, 0.0, 0.0, 0.0, 0.0, "{}", false, at.Add(time.Hour)).
		AddRow("exec-1", "ETH/USD", "1h", "default", models.StatusSuccess, "", "",
			100.0, 2.8, 4.0, 0.75, 96.4, 104.5, 0.7, `{"line one","line two"}`, true, at)

	mock.ExpectQuery(`SELECT .* FROM leverage_analyses\s+WHERE symbol = \$1`).
		WithArgs("ETH/USD", 5).
		WillReturnRows(rows)

	got, err := db.LatestAnalyses(context.Background(), "ETH/USD", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "exec-2", got[0].ExecutionID)
	assert.Equal(t, "no_support_below_price", got[0].ErrorKind)
	assert.Empty(t, got[0].Reasoning)
	assert.Equal(t, []string{"line one", "line two"}, got[1].Reasoning)
	assert.Equal(t, 2.8, got[1].RecommendedLeverage)
	assert.True(t, got[1].EntrySignal)
	assert.NoError(t, mock.ExpectationsWereMet())
}
