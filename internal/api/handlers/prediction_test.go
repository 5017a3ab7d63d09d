package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

type stubPrediction struct {
	result       *models.PredictionResult
	err          error
	history      []models.SignalRecord
	historyErr   error
	predictCalls int
	gotParams    models.PredictionParams
	gotLimit     int
}

func (s *stubPrediction) DefaultParams(ticker string) models.PredictionParams {
	return models.PredictionParams{
		Ticker:         ticker,
		NClusters:      5,
		MinClusterSize: 5,
		LookbackWindow: 252,
	}
}

func (s *stubPrediction) Predict(ctx context.Context, params models.PredictionParams) (*models.PredictionResult, error) {
	s.predictCalls++
	s.gotParams = params
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubPrediction) History(ctx context.Context, ticker string, limit int) ([]models.SignalRecord, error) {
	s.gotLimit = limit
	return s.history, s.historyErr
}

func newPredictionRouter(stub *stubPrediction) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewPredictionHandler(stub)
	router.GET("/api/v1/prediction/:ticker/predict", h.GetPrediction)
	router.GET("/api/v1/prediction/:ticker/history", h.GetSignalHistory)
	return router
}

func buyResult(ticker string) *models.PredictionResult {
	return &models.PredictionResult{
		Ticker: ticker,
		Overview: models.Overview{
			CurrentPrediction: models.CurrentPrediction{
				Signal:     models.SignalBuy,
				Confidence: models.ConfidenceHigh,
				Date:       "2024-06-28",
			},
		},
		GeneratedAt: time.Date(2024, 6, 28, 21, 0, 0, 0, time.UTC),
	}
}

func TestGetPrediction_Success(t *testing.T) {
	stub := &stubPrediction{result: buyResult("AAPL")}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/prediction/AAPL/predict?start_date=2024-01-02&end_date=2024-06-28&n_clusters=4&min_cluster_size=10&lookback_window=120", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result models.PredictionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "AAPL", result.Ticker)
	assert.Equal(t, models.SignalBuy, result.Overview.CurrentPrediction.Signal)

	assert.Equal(t, "AAPL", stub.gotParams.Ticker)
	assert.Equal(t, 4, stub.gotParams.NClusters)
	assert.Equal(t, 10, stub.gotParams.MinClusterSize)
	assert.Equal(t, 120, stub.gotParams.LookbackWindow)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), stub.gotParams.StartDate)
	assert.Equal(t, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), stub.gotParams.EndDate)
}

func TestGetPrediction_DefaultsWhenNoQuery(t *testing.T) {
	stub := &stubPrediction{result: buyResult("MSFT")}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/MSFT/predict", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, stub.gotParams.NClusters)
	assert.Equal(t, 252, stub.gotParams.LookbackWindow)
	assert.True(t, stub.gotParams.StartDate.IsZero())
	assert.True(t, stub.gotParams.EndDate.IsZero())
}

func TestGetPrediction_MalformedDate(t *testing.T) {
	stub := &stubPrediction{result: buyResult("AAPL")}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/predict?start_date=01-02-2024", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid parameter")
	assert.Zero(t, stub.predictCalls, "malformed input should never reach the pipeline")
}

func TestGetPrediction_MalformedInt(t *testing.T) {
	stub := &stubPrediction{result: buyResult("AAPL")}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/predict?n_clusters=five", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, stub.predictCalls)
}

func TestGetPrediction_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"invalid parameter", utils.NewInvalidParameterError("n_clusters must be between 2 and 10, got 11"), http.StatusBadRequest, "invalid parameter"},
		{"unknown ticker", utils.NewDataUnavailableError("ZZZZ"), http.StatusNotFound, "data unavailable"},
		{"insufficient history", utils.NewInsufficientHistoryError(60, 40), http.StatusUnprocessableEntity, "insufficient history"},
		{"provider down", utils.NewProviderError("provider request failed", errors.New("connection refused")), http.StatusServiceUnavailable, "provider unavailable"},
		{"clustering failure", utils.NewClusteringError("empty feature matrix"), http.StatusInternalServerError, "clustering failed"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPrediction{err: tt.err}
			router := newPredictionRouter(stub)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/predict", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			var envelope map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
			assert.Equal(t, tt.wantError, envelope["error"])
			assert.NotEmpty(t, envelope["message"])
		})
	}
}

func TestGetSignalHistory_Success(t *testing.T) {
	now := time.Now().UTC()
	stub := &stubPrediction{history: []models.SignalRecord{
		{ID: "1", Ticker: "AAPL", Signal: "BUY", Confidence: "High", SharpeRatio: decimal.NewFromFloat(1.2), CreatedAt: now},
		{ID: "2", Ticker: "AAPL", Signal: "HOLD", Confidence: "Medium", SharpeRatio: decimal.NewFromFloat(0.1), CreatedAt: now.Add(-time.Hour)},
	}}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/history", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp SignalHistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Signals, 2)
	assert.Equal(t, "BUY", resp.Signals[0].Signal)
	assert.Equal(t, 20, stub.gotLimit, "default limit should apply")
}

func TestGetSignalHistory_LimitParsing(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantLimit int
	}{
		{"explicit limit", "?limit=5", 5},
		{"zero clamps to default", "?limit=0", 20},
		{"oversized clamps to default", "?limit=1000", 20},
		{"garbage clamps to default", "?limit=many", 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPrediction{}
			router := newPredictionRouter(stub)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/history"+tt.query, nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantLimit, stub.gotLimit)
		})
	}
}

func TestGetSignalHistory_EmptyIsArrayNotNull(t *testing.T) {
	stub := &stubPrediction{}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/history", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"signals":[]`)
}

func TestGetSignalHistory_RepositoryError(t *testing.T) {
	stub := &stubPrediction{historyErr: errors.New("connection refused")}
	router := newPredictionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/prediction/AAPL/history", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
