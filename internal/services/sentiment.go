package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmarkin/regimecast-ai-go/internal/config"
	"github.com/dmarkin/regimecast-ai-go/internal/models"
	"github.com/dmarkin/regimecast-ai-go/internal/utils"
)

// newsTimeFormat is the time_published layout in the news feed.
const newsTimeFormat = "20060102T150405"

// earningsWeight scales a day's sentiment by its strongest earnings-topic
// relevance: score * (1 + earningsWeight * relevance).
const earningsWeight = 0.5

// sentimentHistoryDays caps the per-day history returned to clients.
const sentimentHistoryDays = 30

// SentimentService proxies the Alpha Vantage news-sentiment feed and distills
// it into a per-ticker summary with an earnings-weighted score and a
// short-over-long momentum trend.
type SentimentService struct {
	httpClient *http.Client
	cfg        config.SentimentConfig
	logger     *logrus.Logger
}

// NewSentimentService creates the sentiment proxy service.
func NewSentimentService(cfg config.SentimentConfig, logger *logrus.Logger) *SentimentService {
	return &SentimentService{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cfg:        cfg,
		logger:     logger,
	}
}

// Wire types for the NEWS_SENTIMENT payload. Per-ticker scores arrive as
// quoted strings, the overall score as a plain number.
type newsFeedResponse struct {
	Information string        `json:"Information"`
	Feed        []newsArticle `json:"feed"`
}

type newsArticle struct {
	TimePublished   string            `json:"time_published"`
	OverallScore    float64           `json:"overall_sentiment_score"`
	Topics          []articleTopic    `json:"topics"`
	TickerSentiment []tickerSentiment `json:"ticker_sentiment"`
}

type articleTopic struct {
	Topic          string `json:"topic"`
	RelevanceScore string `json:"relevance_score"`
}

type tickerSentiment struct {
	Ticker         string `json:"ticker"`
	RelevanceScore string `json:"relevance_score"`
	SentimentScore string `json:"ticker_sentiment_score"`
}

// dailySentiment aggregates the articles of one calendar day.
type dailySentiment struct {
	date        string
	sum         float64
	count       int
	maxEarnings float64
}

// Analyze fetches recent news for ticker and returns the processed summary.
func (s *SentimentService) Analyze(ctx context.Context, ticker string) (*models.SentimentSummary, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, utils.NewInvalidParameterError("ticker must not be empty")
	}
	if s.cfg.APIKey == "" {
		return nil, utils.NewProviderError("sentiment provider api key not configured", nil)
	}

	feed, err := s.fetchFeed(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if len(feed.Feed) == 0 {
		s.logger.WithField("ticker", ticker).Info("No sentiment data available")
		return emptySentimentSummary(), nil
	}

	days, articleCount := s.aggregateByDay(ticker, feed.Feed)
	if len(days) == 0 {
		return emptySentimentSummary(), nil
	}

	summary := summarize(days, articleCount)
	s.logger.WithFields(logrus.Fields{
		"ticker":     ticker,
		"news_count": summary.NewsCount,
		"category":   summary.Category,
	}).Info("Sentiment analysis completed")
	return summary, nil
}

// fetchFeed calls the NEWS_SENTIMENT endpoint and detects quota rejections,
// which the provider reports inside a 200 body.
func (s *SentimentService) fetchFeed(ctx context.Context, ticker string) (*newsFeedResponse, error) {
	daysBack := s.cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 30
	}
	limit := s.cfg.Limit
	if limit <= 0 {
		limit = 1000
	}

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", ticker)
	params.Set("time_from", time.Now().UTC().AddDate(0, 0, -daysBack).Format("20060102T0000"))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("apikey", s.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, utils.NewProviderError("failed to create sentiment request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, utils.NewProviderError("failed to fetch sentiment data", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close sentiment response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NewProviderError("failed to read sentiment response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, utils.NewProviderError(fmt.Sprintf("sentiment provider returned status %d", resp.StatusCode), nil)
	}

	var feed newsFeedResponse
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, utils.NewProviderError("failed to decode sentiment response", err)
	}

	if feed.Information != "" && strings.Contains(strings.ToLower(feed.Information), "rate limit") {
		return nil, utils.NewRateLimitError("sentiment provider rate limit reached, try again later")
	}

	return &feed, nil
}

// aggregateByDay extracts this ticker's sentiment from each article and folds
// it into per-day aggregates, returned in chronological order. Articles
// without an entry for the ticker or with an unparseable timestamp are
// dropped.
func (s *SentimentService) aggregateByDay(ticker string, articles []newsArticle) ([]dailySentiment, int) {
	byDay := make(map[string]*dailySentiment)
	articleCount := 0

	for _, article := range articles {
		published, err := time.Parse(newsTimeFormat, article.TimePublished)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"ticker":         ticker,
				"time_published": article.TimePublished,
			}).Warn("Skipping article with unparseable timestamp")
			continue
		}

		score, ok := tickerScore(ticker, article.TickerSentiment)
		if !ok {
			continue
		}
		articleCount++

		day := published.Format("2006-01-02")
		agg, exists := byDay[day]
		if !exists {
			agg = &dailySentiment{date: day}
			byDay[day] = agg
		}
		agg.sum += score
		agg.count++
		if rel := earningsRelevance(article.Topics); rel > agg.maxEarnings {
			agg.maxEarnings = rel
		}
	}

	days := make([]dailySentiment, 0, len(byDay))
	for _, agg := range byDay {
		days = append(days, *agg)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].date < days[j].date })
	return days, articleCount
}

// summarize turns the daily aggregates into the response payload. The
// headline score is the latest day's earnings-weighted mean; the trend
// compares 3-day against 7-day sentiment momentum and stays Neutral when
// fewer than seven days of news exist.
func summarize(days []dailySentiment, articleCount int) *models.SentimentSummary {
	means := make([]float64, len(days))
	weighted := make([]float64, len(days))
	for i, d := range days {
		means[i] = d.sum / float64(d.count)
		weighted[i] = means[i] * (1 + earningsWeight*d.maxEarnings)
	}

	trend := "Neutral"
	last := len(means) - 1
	if ma3, ok3 := trailingMean(means, last, 3); ok3 {
		if ma7, ok7 := trailingMean(means, last, 7); ok7 {
			switch momentum := ma3 - ma7; {
			case momentum > 0:
				trend = "Positive"
			case momentum < 0:
				trend = "Negative"
			}
		}
	}

	history := make(map[string]float64)
	from := len(days) - sentimentHistoryDays
	if from < 0 {
		from = 0
	}
	for i := from; i < len(days); i++ {
		history[days[i].date] = weighted[i]
	}

	current := weighted[last]
	return &models.SentimentSummary{
		OverallSentiment: current,
		Category:         sentimentCategory(current),
		NewsCount:        articleCount,
		Trend:            trend,
		History:          history,
		ScoreDefinitions: sentimentScoreDefinitions(),
	}
}

// trailingMean averages the window ending at index i, requiring the window to
// be fully populated.
func trailingMean(values []float64, i, window int) (float64, bool) {
	if i-window+1 < 0 {
		return 0, false
	}
	var sum float64
	for j := i - window + 1; j <= i; j++ {
		sum += values[j]
	}
	return sum / float64(window), true
}

func tickerScore(ticker string, entries []tickerSentiment) (float64, bool) {
	for _, entry := range entries {
		if entry.Ticker != ticker {
			continue
		}
		score, err := strconv.ParseFloat(entry.SentimentScore, 64)
		if err != nil {
			return 0, false
		}
		return score, true
	}
	return 0, false
}

func earningsRelevance(topics []articleTopic) float64 {
	for _, topic := range topics {
		if topic.Topic != "Earnings" {
			continue
		}
		rel, err := strconv.ParseFloat(topic.RelevanceScore, 64)
		if err != nil {
			return 0
		}
		return rel
	}
	return 0
}

// sentimentCategory buckets a score per the provider's published thresholds.
func sentimentCategory(score float64) string {
	switch {
	case score <= -0.35:
		return "Bearish"
	case score <= -0.15:
		return "Somewhat-Bearish"
	case score < 0.15:
		return "Neutral"
	case score < 0.35:
		return "Somewhat-Bullish"
	default:
		return "Bullish"
	}
}

func sentimentScoreDefinitions() map[string]string {
	return map[string]string{
		"Bearish":          "x <= -0.35",
		"Somewhat-Bearish": "-0.35 < x <= -0.15",
		"Neutral":          "-0.15 < x < 0.15",
		"Somewhat-Bullish": "0.15 <= x < 0.35",
		"Bullish":          "x >= 0.35",
	}
}

func emptySentimentSummary() *models.SentimentSummary {
	return &models.SentimentSummary{
		OverallSentiment: 0,
		Category:         "No Data",
		NewsCount:        0,
		Trend:            "Neutral",
		History:          map[string]float64{},
		ScoreDefinitions: sentimentScoreDefinitions(),
	}
}
