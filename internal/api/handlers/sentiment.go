package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmarkin/regimecast-ai-go/internal/models"
)

// SentimentAPI is the news-sentiment surface the HTTP layer consumes.
type SentimentAPI interface {
	Analyze(ctx context.Context, ticker string) (*models.SentimentSummary, error)
}

// SentimentHandler proxies news-sentiment analysis for a ticker.
type SentimentHandler struct {
	sentiment SentimentAPI
}

// NewSentimentHandler creates a new sentiment handler
func NewSentimentHandler(sentiment SentimentAPI) *SentimentHandler {
	return &SentimentHandler{sentiment: sentiment}
}

// AnalyzeSentiment returns the earnings-weighted news-sentiment summary for
// a ticker. Provider rate limiting surfaces as 429.
func (h *SentimentHandler) AnalyzeSentiment(c *gin.Context) {
	summary, err := h.sentiment.Analyze(c.Request.Context(), c.Param("ticker"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
