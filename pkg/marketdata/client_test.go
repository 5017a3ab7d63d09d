package marketdata_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmarkin/regimecast-ai-go/pkg/marketdata"
)

func TestNewClient(t *testing.T) {
	client := marketdata.NewClient("http://localhost:3001/", 0)
	assert.NotNil(t, client)
	assert.Equal(t, "http://localhost:3001", client.BaseURL)
	assert.NotNil(t, client.HTTPClient)
	assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)
}

func TestClient_HealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		responseStatus int
		responseBody   interface{}
		expectError    bool
	}{
		{
			name:           "successful health check",
			responseStatus: http.StatusOK,
			responseBody: marketdata.HealthResponse{
				Status:    "ok",
				Timestamp: time.Now().UTC(),
				Version:   "1.0.0",
			},
			expectError: false,
		},
		{
			name:           "server error",
			responseStatus: http.StatusInternalServerError,
			responseBody:   marketdata.ErrorResponse{Error: "internal server error"},
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/health", r.URL.Path)
				assert.Equal(t, http.MethodGet, r.Method)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.responseStatus)
				_ = json.NewEncoder(w).Encode(tt.responseBody)
			}))
			defer server.Close()

			client := marketdata.NewClient(server.URL, 5*time.Second)

			resp, err := client.HealthCheck(context.Background())
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, resp)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, resp)
				assert.Equal(t, "ok", resp.Status)
			}
		})
	}
}

func TestClient_GetDailyBars(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/daily/AAPL", r.URL.Path)
		assert.Equal(t, "2024-01-02", r.URL.Query().Get("start"))
		assert.Equal(t, "2024-01-05", r.URL.Query().Get("end"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(marketdata.DailyBarsResponse{
			Ticker: "AAPL",
			Bars: []marketdata.DailyBar{
				{
					Date:   "2024-01-02",
					Open:   decimal.RequireFromString("185.64"),
					High:   decimal.RequireFromString("186.95"),
					Low:    decimal.RequireFromString("183.89"),
					Close:  decimal.RequireFromString("185.14"),
					Volume: decimal.RequireFromString("82488700"),
				},
				{
					Date:   "2024-01-03",
					Open:   decimal.RequireFromString("184.22"),
					High:   decimal.RequireFromString("185.88"),
					Low:    decimal.RequireFromString("183.43"),
					Close:  decimal.RequireFromString("184.25"),
					Volume: decimal.RequireFromString("58414500"),
				},
			},
			Count:     2,
			Timestamp: time.Now().UTC(),
		})
	}))
	defer server.Close()

	client := marketdata.NewClient(server.URL, 5*time.Second)

	resp, err := client.GetDailyBars(context.Background(), "AAPL", start, end)
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, "AAPL", resp.Ticker)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Bars, 2)
	assert.Equal(t, "2024-01-02", resp.Bars[0].Date)
	assert.True(t, resp.Bars[0].Close.Equal(decimal.RequireFromString("185.14")))
	assert.True(t, resp.Bars[1].Volume.Equal(decimal.RequireFromString("58414500")))
}

func TestClient_GetDailyBars_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(marketdata.ErrorResponse{Error: "unknown ticker ZZZZ"})
	}))
	defer server.Close()

	client := marketdata.NewClient(server.URL, 5*time.Second)

	resp, err := client.GetDailyBars(context.Background(), "ZZZZ",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Nil(t, resp)

	var statusErr *marketdata.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.True(t, statusErr.IsNotFound())
	assert.False(t, statusErr.Retryable())
	assert.Contains(t, statusErr.Error(), "unknown ticker ZZZZ")
}

func TestClient_GetDailyBars_RetryableStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{name: "rate limited", status: http.StatusTooManyRequests},
		{name: "bad gateway", status: http.StatusBadGateway},
		{name: "service unavailable", status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("upstream unavailable"))
			}))
			defer server.Close()

			client := marketdata.NewClient(server.URL, 5*time.Second)

			_, err := client.GetDailyBars(context.Background(), "AAPL",
				time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
			require.Error(t, err)

			var statusErr *marketdata.StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.True(t, statusErr.Retryable())
			assert.False(t, statusErr.IsNotFound())
		})
	}
}

func TestClient_GetDailyBars_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := marketdata.NewClient(server.URL, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetDailyBars(ctx, "AAPL",
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)

	var statusErr *marketdata.StatusError
	assert.False(t, errors.As(err, &statusErr), "transport failures are not status errors")
}

func TestClient_Close(t *testing.T) {
	client := marketdata.NewClient("http://localhost:3001", time.Second)
	assert.NoError(t, client.Close())
}
