package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// SignalRepository persists one row per produced prediction and serves the
// per-ticker history endpoint.
type SignalRepository struct {
	pool DatabasePool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool DatabasePool) *SignalRepository {
	return &SignalRepository{
		pool: pool,
	}
}

// Insert stores one prediction outcome and returns the persisted row.
func (r *SignalRepository) Insert(ctx context.Context, record *models.SignalRecord) (*models.SignalRecord, error) {
	query := `
		INSERT INTO prediction_signals
			(id, ticker, signal, confidence, signal_date, sharpe_ratio, mean_return,
			 n_clusters, min_cluster_size, lookback_window)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, ticker, signal, confidence, signal_date, sharpe_ratio, mean_return,
			n_clusters, min_cluster_size, lookback_window, created_at
	`

	id := record.ID
	if id == "" {
		id = uuid.New().String()
	}

	var stored models.SignalRecord
	err := r.pool.QueryRow(ctx, query,
		id,
		record.Ticker,
		record.Signal,
		record.Confidence,
		record.SignalDate,
		record.SharpeRatio,
		record.MeanReturn,
		record.NClusters,
		record.MinClusterSize,
		record.LookbackWindow,
	).Scan(
		&stored.ID,
		&stored.Ticker,
		&stored.Signal,
		&stored.Confidence,
		&stored.SignalDate,
		&stored.SharpeRatio,
		&stored.MeanReturn,
		&stored.NClusters,
		&stored.MinClusterSize,
		&stored.LookbackWindow,
		&stored.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert prediction signal: %w", err)
	}

	return &stored, nil
}

// ListByTicker returns the most recent persisted signals for one ticker,
// newest first.
func (r *SignalRepository) ListByTicker(ctx context.Context, ticker string, limit int) ([]models.SignalRecord, error) {
	query := `
		SELECT id, ticker, signal, confidence, signal_date, sharpe_ratio, mean_return,
			n_clusters, min_cluster_size, lookback_window, created_at
		FROM prediction_signals
		WHERE ticker = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ticker, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list prediction signals: %w", err)
	}
	defer rows.Close()

	var records []models.SignalRecord
	for rows.Next() {
		var record models.SignalRecord
		err := rows.Scan(
			&record.ID,
			&record.Ticker,
			&record.Signal,
			&record.Confidence,
			&record.SignalDate,
			&record.SharpeRatio,
			&record.MeanReturn,
			&record.NClusters,
			&record.MinClusterSize,
			&record.LookbackWindow,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prediction signal: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prediction signals: %w", err)
	}

	return records, nil
}

// CleanupOlderThan deletes history rows older than the retention window and
// returns the number of rows removed.
func (r *SignalRepository) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `
		DELETE FROM prediction_signals
		WHERE created_at < $1
	`

	result, err := r.pool.Exec(ctx, query, time.Now().UTC().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup prediction signals: %w", err)
	}

	return result.RowsAffected(), nil
}

// NewRecord assembles an unsaved SignalRecord from one pipeline outcome.
func NewRecord(ticker string, params models.PredictionParams, current models.CurrentPrediction, sharpe, meanReturn float64) *models.SignalRecord {
	signalDate, err := time.Parse("2006-01-02", current.Date)
	if err != nil {
		signalDate = time.Now().UTC()
	}
	return &models.SignalRecord{
		Ticker:         ticker,
		Signal:         string(current.Signal),
		Confidence:     string(current.Confidence),
		SignalDate:     signalDate,
		SharpeRatio:    decimal.NewFromFloat(sharpe),
		MeanReturn:     decimal.NewFromFloat(meanReturn),
		NClusters:      params.NClusters,
		MinClusterSize: params.MinClusterSize,
		LookbackWindow: params.LookbackWindow,
	}
}
