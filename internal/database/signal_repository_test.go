package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// MockPoolAdapter wraps pgxmock.PgxPoolIface to implement DatabasePool interface
type MockPoolAdapter struct {
	mock pgxmock.PgxPoolIface
}

func NewMockPoolAdapter(mock pgxmock.PgxPoolIface) DatabasePool {
	return &MockPoolAdapter{mock: mock}
}

func (m *MockPoolAdapter) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return m.mock.QueryRow(ctx, sql, args...)
}

func (m *MockPoolAdapter) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	result, err := m.mock.Exec(ctx, sql, args...)
	if err == nil {
		rows := result.RowsAffected()
		return pgconn.NewCommandTag(fmt.Sprintf("DELETE %d", rows)), nil
	}
	return pgconn.CommandTag{}, err
}

func (m *MockPoolAdapter) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return m.mock.Query(ctx, sql, args...)
}

func signalColumns() []string {
	return []string{
		"id", "ticker", "signal", "confidence", "signal_date", "sharpe_ratio",
		"mean_return", "n_clusters", "min_cluster_size", "lookback_window", "created_at",
	}
}

func TestSignalRepository_NewSignalRepository(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	adapter := NewMockPoolAdapter(mockPool)
	repo := NewSignalRepository(adapter)
	assert.NotNil(t, repo)
	assert.Equal(t, adapter, repo.pool)
}

func TestSignalRepository_Insert_GeneratesID(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	signalDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2024, 3, 15, 21, 5, 0, 0, time.UTC)
	sharpe := decimal.NewFromFloat(1.42)
	meanReturn := decimal.NewFromFloat(0.0031)

	record := &models.SignalRecord{
		Ticker:         "AAPL",
		Signal:         "BUY",
		Confidence:     "High",
		SignalDate:     signalDate,
		SharpeRatio:    sharpe,
		MeanReturn:     meanReturn,
		NClusters:      5,
		MinClusterSize: 5,
		LookbackWindow: 252,
	}

	mockPool.ExpectQuery(`INSERT INTO prediction_signals`).
		WithArgs(pgxmock.AnyArg(), "AAPL", "BUY", "High", signalDate, sharpe, meanReturn, 5, 5, 252).
		WillReturnRows(
			pgxmock.NewRows(signalColumns()).
				AddRow("f0e9d8c7-0000-0000-0000-000000000001", "AAPL", "BUY", "High",
					signalDate, sharpe, meanReturn, 5, 5, 252, createdAt),
		)

	stored, err := repo.Insert(ctx, record)
	assert.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "f0e9d8c7-0000-0000-0000-000000000001", stored.ID)
	assert.Equal(t, "AAPL", stored.Ticker)
	assert.Equal(t, "BUY", stored.Signal)
	assert.Equal(t, "High", stored.Confidence)
	assert.True(t, sharpe.Equal(stored.SharpeRatio))
	assert.True(t, meanReturn.Equal(stored.MeanReturn))
	assert.Equal(t, createdAt, stored.CreatedAt)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_Insert_KeepsProvidedID(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	signalDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	createdAt := signalDate.Add(12 * time.Hour)
	sharpe := decimal.NewFromFloat(-0.4)
	meanReturn := decimal.NewFromFloat(-0.001)
	id := "11111111-2222-3333-4444-555555555555"

	record := &models.SignalRecord{
		ID:             id,
		Ticker:         "MSFT",
		Signal:         "SELL",
		Confidence:     "Medium",
		SignalDate:     signalDate,
		SharpeRatio:    sharpe,
		MeanReturn:     meanReturn,
		NClusters:      4,
		MinClusterSize: 8,
		LookbackWindow: 126,
	}

	mockPool.ExpectQuery(`INSERT INTO prediction_signals`).
		WithArgs(id, "MSFT", "SELL", "Medium", signalDate, sharpe, meanReturn, 4, 8, 126).
		WillReturnRows(
			pgxmock.NewRows(signalColumns()).
				AddRow(id, "MSFT", "SELL", "Medium", signalDate, sharpe, meanReturn, 4, 8, 126, createdAt),
		)

	stored, err := repo.Insert(ctx, record)
	assert.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, id, stored.ID)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_Insert_QueryError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	mockPool.ExpectQuery(`INSERT INTO prediction_signals`).
		WithArgs(pgxmock.AnyArg(), "AAPL", "HOLD", "Low", pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), 5, 5, 252).
		WillReturnError(errors.New("connection refused"))

	record := &models.SignalRecord{
		Ticker:         "AAPL",
		Signal:         "HOLD",
		Confidence:     "Low",
		SignalDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		SharpeRatio:    decimal.Zero,
		MeanReturn:     decimal.Zero,
		NClusters:      5,
		MinClusterSize: 5,
		LookbackWindow: 252,
	}

	stored, err := repo.Insert(ctx, record)
	assert.Error(t, err)
	assert.Nil(t, stored)
	assert.Contains(t, err.Error(), "failed to insert prediction signal")

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_ListByTicker_Success(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	newer := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC)
	older := newer.Add(-24 * time.Hour)
	sharpe := decimal.NewFromFloat(0.9)
	meanReturn := decimal.NewFromFloat(0.002)

	rows := pgxmock.NewRows(signalColumns()).
		AddRow("id-1", "AAPL", "BUY", "High", newer.Truncate(24*time.Hour), sharpe, meanReturn, 5, 5, 252, newer).
		AddRow("id-2", "AAPL", "HOLD", "Low", older.Truncate(24*time.Hour), decimal.Zero, decimal.Zero, 5, 5, 252, older)

	mockPool.ExpectQuery(`FROM prediction_signals`).
		WithArgs("AAPL", 10).
		WillReturnRows(rows)

	records, err := repo.ListByTicker(ctx, "AAPL", 10)
	assert.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "id-1", records[0].ID)
	assert.Equal(t, "BUY", records[0].Signal)
	assert.Equal(t, "id-2", records[1].ID)
	assert.Equal(t, "HOLD", records[1].Signal)
	assert.True(t, records[0].CreatedAt.After(records[1].CreatedAt))

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_ListByTicker_Empty(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	mockPool.ExpectQuery(`FROM prediction_signals`).
		WithArgs("ZZZZ", 10).
		WillReturnRows(pgxmock.NewRows(signalColumns()))

	records, err := repo.ListByTicker(ctx, "ZZZZ", 10)
	assert.NoError(t, err)
	assert.Empty(t, records)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_ListByTicker_QueryError(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	mockPool.ExpectQuery(`FROM prediction_signals`).
		WithArgs("AAPL", 10).
		WillReturnError(errors.New("connection timeout"))

	records, err := repo.ListByTicker(ctx, "AAPL", 10)
	assert.Error(t, err)
	assert.Nil(t, records)
	assert.Contains(t, err.Error(), "failed to list prediction signals")

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSignalRepository_CleanupOlderThan(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err, "Failed to create mock pool")
	defer mockPool.Close()

	repo := NewSignalRepository(NewMockPoolAdapter(mockPool))
	ctx := context.Background()

	mockPool.ExpectExec(`DELETE FROM prediction_signals`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	affected, err := repo.CleanupOlderThan(ctx, 90*24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), affected)

	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestNewRecord(t *testing.T) {
	params := models.PredictionParams{
		Ticker:         "AAPL",
		NClusters:      5,
		MinClusterSize: 5,
		LookbackWindow: 252,
	}
	current := models.CurrentPrediction{
		Signal:     models.SignalBuy,
		Confidence: models.ConfidenceHigh,
		Date:       "2024-03-15",
	}

	record := NewRecord("AAPL", params, current, 1.42, 0.0031)
	require.NotNil(t, record)
	assert.Empty(t, record.ID)
	assert.Equal(t, "AAPL", record.Ticker)
	assert.Equal(t, "BUY", record.Signal)
	assert.Equal(t, "High", record.Confidence)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), record.SignalDate)
	assert.True(t, decimal.NewFromFloat(1.42).Equal(record.SharpeRatio))
	assert.True(t, decimal.NewFromFloat(0.0031).Equal(record.MeanReturn))
	assert.Equal(t, 5, record.NClusters)
	assert.Equal(t, 252, record.LookbackWindow)
}

func TestNewRecord_BadDateFallsBackToNow(t *testing.T) {
	current := models.CurrentPrediction{
		Signal:     models.SignalHold,
		Confidence: models.ConfidenceLow,
		Date:       "not-a-date",
	}

	before := time.Now().UTC()
	record := NewRecord("AAPL", models.PredictionParams{}, current, 0, 0)
	after := time.Now().UTC()

	require.NotNil(t, record)
	assert.False(t, record.SignalDate.Before(before))
	assert.False(t, record.SignalDate.After(after))
}
