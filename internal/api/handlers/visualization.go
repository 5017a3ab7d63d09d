package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// ChartAPI is the chart-data surface the HTTP layer consumes.
type ChartAPI interface {
	ChartData(ctx context.Context, ticker string, start, end time.Time) (*models.ChartData, error)
}

// VisualizationHandler serves candlestick chart payloads with indicator
// overlays.
type VisualizationHandler struct {
	charts ChartAPI
}

// NewVisualizationHandler creates a new visualization handler
func NewVisualizationHandler(charts ChartAPI) *VisualizationHandler {
	return &VisualizationHandler{charts: charts}
}

// GetChart returns dates, OHLC, volume, and indicator overlay series for a
// ticker. The window defaults to the trailing 30 days.
func (h *VisualizationHandler) GetChart(c *gin.Context) {
	start, err := dateQuery(c, "start_date", time.Time{})
	if err != nil {
		respondError(c, err)
		return
	}
	end, err := dateQuery(c, "end_date", time.Time{})
	if err != nil {
		respondError(c, err)
		return
	}

	chart, err := h.charts.ChartData(c.Request.Context(), c.Param("ticker"), start, end)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, chart)
}
