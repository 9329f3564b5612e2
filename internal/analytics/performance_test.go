package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalpExecutor/internal/domain"
)

func soldTrade(profit float64, reason domain.ExitReason, entry, exit time.Time) *domain.Trade {
	return &domain.Trade{
		Symbol:     "BTCUSDT",
		Status:     domain.StatusSold,
		EntryTime:  entry,
		ExitTime:   exit,
		ExitReason: reason,
		Profit:     profit,
	}
}

func TestAnalyzePerformance(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		// Deliberately out of exit order.
		soldTrade(-1000, domain.ExitReasonStopLoss, base.Add(90*time.Minute), base.Add(2*time.Hour)),
		soldTrade(1000, domain.ExitReasonTakeProfit, base, base.Add(time.Hour)),
		{Status: domain.StatusFailed, Profit: 0},
		{Status: domain.StatusSellFailed, ExitReason: domain.ExitReasonSellError},
	}

	metrics := AnalyzePerformance(trades, 10000)

	assert.Equal(t, 2, metrics.TotalTrades)
	assert.Equal(t, 1, metrics.WinningTrades)
	assert.Equal(t, 1, metrics.LosingTrades)
	assert.Equal(t, 0.5, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.TotalProfit)
	assert.Equal(t, 10000.0, metrics.FinalBalance)
	assert.Equal(t, 1000.0, metrics.AverageWin)
	assert.Equal(t, -1000.0, metrics.AverageLoss)
	assert.Equal(t, 1.0, metrics.ProfitFactor)
	assert.Equal(t, 0.0, metrics.Expectancy)
	assert.Equal(t, 1, metrics.MaxConsecutiveWins)
	assert.Equal(t, 1, metrics.MaxConsecutiveLosses)
	assert.Equal(t, 45*time.Minute, metrics.AverageHoldDuration)
	assert.Equal(t, map[domain.ExitReason]int{domain.ExitReasonTakeProfit: 1, domain.ExitReasonStopLoss: 1}, metrics.ExitReasons)

	require.Len(t, metrics.EquityCurve, 2)
	assert.Equal(t, 11000.0, metrics.EquityCurve[0].Value)
	assert.Equal(t, 10000.0, metrics.EquityCurve[1].Value)
	assert.InDelta(t, 1000.0/11000.0, metrics.MaxDrawdown, 1e-12)

	monthly := metrics.GetMonthlyReturns()
	require.Len(t, monthly, 1)
	assert.Equal(t, 0.0, monthly[0].Return)

	// The caller's slice keeps its order.
	assert.Equal(t, -1000.0, trades[0].Profit)
}

func TestAnalyzePerformanceEmptyTrades(t *testing.T) {
	metrics := AnalyzePerformance(nil, 10000.0)
	assert.Equal(t, 0, metrics.TotalTrades)
	assert.Equal(t, 10000.0, metrics.FinalBalance)
	assert.Empty(t, metrics.EquityCurve)
}

func TestAnalyzePerformanceDrawdown(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		soldTrade(1000, domain.ExitReasonTakeProfit, base, base.Add(time.Minute)),
		soldTrade(-2200, domain.ExitReasonStopLoss, base.Add(2*time.Minute), base.Add(3*time.Minute)),
		soldTrade(-100, domain.ExitReasonTimeLimit, base.Add(4*time.Minute), base.Add(5*time.Minute)),
	}

	metrics := AnalyzePerformance(trades, 10000.0)

	assert.InDelta(t, 2300.0/11000.0, metrics.MaxDrawdown, 1e-12)
	require.Len(t, metrics.Drawdowns, 1)
	assert.InDelta(t, 2300.0/11000.0, metrics.Drawdowns[0].Depth, 1e-12)
	assert.Equal(t, 2*time.Minute, metrics.Drawdowns[0].Duration)
	assert.Equal(t, 2, metrics.MaxConsecutiveLosses)
	assert.Greater(t, metrics.RecoveryFactor, -10.0)
	assert.Less(t, metrics.RecoveryFactor, 0.0)
}

func TestAnalyzePerformanceConsecutiveWins(t *testing.T) {
	base := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		soldTrade(10.99, domain.ExitReasonTakeProfit, base, base.Add(time.Minute)),
		soldTrade(5.01, domain.ExitReasonTimeLimit, base.Add(time.Hour), base.Add(2*time.Hour)),
	}

	metrics := AnalyzePerformance(trades, 1000)

	assert.Equal(t, 2, metrics.MaxConsecutiveWins)
	assert.Equal(t, 0, metrics.MaxConsecutiveLosses)
	assert.Equal(t, 1.0, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.ProfitFactor)
	assert.Empty(t, metrics.Drawdowns)
	assert.Len(t, metrics.GetMonthlyReturns(), 2)
}
