package risk

import (
	"context"
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

func buyRequest(price, qty float64) ports.AdmissionRequest {
	return ports.AdmissionRequest{StrategyID: "s-1", Symbol: "BTCUSDT", Price: price, Quantity: qty}
}

func closedTrade(status domain.TradeStatus, profit float64) *domain.Trade {
	return &domain.Trade{
		ID:                "t-1",
		Status:            status,
		RequestedPrice:    50000,
		RequestedQuantity: 0.01,
		Profit:            profit,
	}
}

func TestRiskManager_Admit(t *testing.T) {
	tests := []struct {
		name    string
		config  RiskConfig
		prepare func(t *testing.T, m *RiskManager)
		req     ports.AdmissionRequest
		wantErr bool
	}{
		{
			name:   "no limits",
			config: RiskConfig{},
			req:    buyRequest(50000, 10),
		},
		{
			name:   "within limits",
			config: RiskConfig{MaxOpenTrades: 2, MaxPositionNotional: 1000, MaxDailyLoss: 100},
			req:    buyRequest(50000, 0.01),
		},
		{
			name:    "notional too large",
			config:  RiskConfig{MaxPositionNotional: 400},
			req:     buyRequest(50000, 0.01),
			wantErr: true,
		},
		{
			name:   "open trades exhausted",
			config: RiskConfig{MaxOpenTrades: 1},
			prepare: func(t *testing.T, m *RiskManager) {
				require.NoError(t, m.Admit(context.Background(), buyRequest(50000, 0.01)))
			},
			req:     buyRequest(50000, 0.01),
			wantErr: true,
		},
		{
			name:   "daily loss reached",
			config: RiskConfig{MaxDailyLoss: 10},
			prepare: func(t *testing.T, m *RiskManager) {
				require.NoError(t, m.Admit(context.Background(), buyRequest(50000, 0.01)))
				m.Release(context.Background(), closedTrade(domain.StatusSold, -12.5))
			},
			req:     buyRequest(50000, 0.01),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewRiskManager(tt.config, &mockLogger{})
			if tt.prepare != nil {
				tt.prepare(t, m)
			}
			err := m.Admit(context.Background(), tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ports.ErrAdmissionRejected)
				assert.Equal(t, 1, m.GetStats().Rejections)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRiskManager_ReleaseFreesCapacity(t *testing.T) {
	ctx := context.Background()
	m := NewRiskManager(RiskConfig{MaxOpenTrades: 1}, &mockLogger{})

	require.NoError(t, m.Admit(ctx, buyRequest(50000, 0.01)))
	stats := m.GetStats()
	assert.Equal(t, 1, stats.OpenTrades)
	assert.Equal(t, 500.0, stats.TotalExposure)

	m.Release(ctx, closedTrade(domain.StatusSold, 10.99))
	stats = m.GetStats()
	assert.Equal(t, 0, stats.OpenTrades)
	assert.Equal(t, 0.0, stats.TotalExposure)
	assert.Equal(t, 10.99, stats.DailyPnL)

	// FAILED trades release without booking profit.
	require.NoError(t, m.Admit(ctx, buyRequest(50000, 0.01)))
	m.Release(ctx, closedTrade(domain.StatusFailed, 0))
	assert.Equal(t, 10.99, m.GetStats().DailyPnL)
	assert.Equal(t, 2, m.GetStats().DailyTrades)

	m.Release(ctx, nil)
	assert.Equal(t, 0, m.GetStats().OpenTrades)
}

func TestRiskManager_DailyReset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 23, 59, 0, 0, time.UTC)
	m := NewRiskManager(RiskConfig{MaxDailyLoss: 10}, &mockLogger{})
	m.now = func() time.Time { return now }
	m.stats.LastResetTime = now

	require.NoError(t, m.Admit(ctx, buyRequest(50000, 0.01)))
	m.Release(ctx, closedTrade(domain.StatusSold, -20))
	assert.ErrorIs(t, m.Admit(ctx, buyRequest(50000, 0.01)), ports.ErrAdmissionRejected)

	now = now.Add(2 * time.Minute)
	require.NoError(t, m.Admit(ctx, buyRequest(50000, 0.01)))
	stats := m.GetStats()
	assert.Equal(t, 0.0, stats.DailyPnL)
	assert.Equal(t, 1, stats.DailyTrades)
}
