package feedback

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNewHTTPReporter(t *testing.T) {
	_, err := NewHTTPReporter("  ", time.Second, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	_, err = NewHTTPReporter("http://localhost:3000", time.Second, nil)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	r, err := NewHTTPReporter("http://localhost:3000/", 0, &mockLogger{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000/feedback", r.endpoint)
	assert.Equal(t, 5*time.Second, r.client.Timeout)
}

func TestHTTPReporter_Report(t *testing.T) {
	var got map[string]interface{}
	var path, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		path = req.URL.Path
		contentType = req.Header.Get("Content-Type")
		_ = json.NewDecoder(req.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, err := NewHTTPReporter(srv.URL, time.Second, &mockLogger{})
	require.NoError(t, err)

	sell, profit := 51200.0, 10.99
	err = r.Report(context.Background(), domain.Feedback{
		StrategyID: "s-1",
		TradeID:    "t-1",
		Symbol:     "BTCUSDT",
		Status:     domain.StatusSold,
		BuyPrice:   50000,
		SellPrice:  &sell,
		Quantity:   0.01,
		Profit:     &profit,
		Reason:     domain.ExitReasonTakeProfit,
	})
	require.NoError(t, err)

	assert.Equal(t, "/feedback", path)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "s-1", got["strategyId"])
	assert.Equal(t, "t-1", got["tradeId"])
	assert.Equal(t, "SOLD", got["status"])
	assert.Equal(t, 51200.0, got["sellPrice"])
	assert.Equal(t, 10.99, got["profit"])
	assert.Equal(t, "TAKE_PROFIT", got["reason"])
}

func TestHTTPReporter_ReportErrors(t *testing.T) {
	t.Run("non-2xx status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		r, err := NewHTTPReporter(srv.URL, time.Second, &mockLogger{})
		require.NoError(t, err)
		err = r.Report(context.Background(), domain.Feedback{TradeID: "t-1", Status: domain.StatusFailed})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {}))
		url := srv.URL
		srv.Close()

		r, err := NewHTTPReporter(url, time.Second, &mockLogger{})
		require.NoError(t, err)
		err = r.Report(context.Background(), domain.Feedback{TradeID: "t-1"})
		assert.ErrorIs(t, err, ports.ErrConnectionFailed)
	})
}

func TestNopReporter(t *testing.T) {
	assert.NoError(t, NopReporter{}.Report(context.Background(), domain.Feedback{}))
}
