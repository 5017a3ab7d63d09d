package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// PredictionAPI is the prediction surface the HTTP layer consumes.
type PredictionAPI interface {
	DefaultParams(ticker string) models.PredictionParams
	Predict(ctx context.Context, params models.PredictionParams) (*models.PredictionResult, error)
	History(ctx context.Context, ticker string, limit int) ([]models.SignalRecord, error)
}

// PredictionHandler serves regime predictions and the persisted signal
// history.
type PredictionHandler struct {
	predictions PredictionAPI
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(predictions PredictionAPI) *PredictionHandler {
	return &PredictionHandler{predictions: predictions}
}

// SignalHistoryResponse lists persisted signals for one ticker, newest
// first.
type SignalHistoryResponse struct {
	Ticker  string                `json:"ticker"`
	Count   int                   `json:"count"`
	Signals []models.SignalRecord `json:"signals"`
}

// GetPrediction runs the full clustering pipeline for a ticker. Query
// parameters override the configured defaults; dates are YYYY-MM-DD.
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	params := h.predictions.DefaultParams(c.Param("ticker"))

	var err error
	if params.StartDate, err = dateQuery(c, "start_date", params.StartDate); err != nil {
		respondError(c, err)
		return
	}
	if params.EndDate, err = dateQuery(c, "end_date", params.EndDate); err != nil {
		respondError(c, err)
		return
	}
	if params.NClusters, err = intQuery(c, "n_clusters", params.NClusters); err != nil {
		respondError(c, err)
		return
	}
	if params.MinClusterSize, err = intQuery(c, "min_cluster_size", params.MinClusterSize); err != nil {
		respondError(c, err)
		return
	}
	if params.LookbackWindow, err = intQuery(c, "lookback_window", params.LookbackWindow); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.predictions.Predict(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSignalHistory returns recent persisted signals for a ticker.
func (h *PredictionHandler) GetSignalHistory(c *gin.Context) {
	ticker := c.Param("ticker")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	signals, err := h.predictions.History(c.Request.Context(), ticker, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if signals == nil {
		signals = []models.SignalRecord{}
	}

	c.JSON(http.StatusOK, SignalHistoryResponse{
		Ticker:  ticker,
		Count:   len(signals),
		Signals: signals,
	})
}
