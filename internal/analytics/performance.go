package analytics

import (
	"math"
	"sort"
	"time"

	"scalpExecutor/internal/domain"
)

// PerformanceMetrics summarizes the realized results of closed trades.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int     `json:"totalTrades"`
	WinningTrades      int     `json:"winningTrades"`
	LosingTrades       int     `json:"losingTrades"`
	WinRate            float64 `json:"winRate"`
	TotalProfit        float64 `json:"totalProfit"`
	MaxDrawdown        float64 `json:"maxDrawdown"`
	ProfitFactor       float64 `json:"profitFactor"`
	AverageWin         float64 `json:"averageWin"`
	AverageLoss        float64 `json:"averageLoss"`
	FinalBalance       float64 `json:"finalBalance"`
	ReturnOnInvestment float64 `json:"returnOnInvestment"`

	// Advanced Metrics
	MaxConsecutiveWins   int                       `json:"maxConsecutiveWins"`
	MaxConsecutiveLosses int                       `json:"maxConsecutiveLosses"`
	AverageHoldDuration  time.Duration             `json:"averageHoldDurationNs"`
	RecoveryFactor       float64                   `json:"recoveryFactor"`
	Expectancy           float64                   `json:"expectancy"`
	ExitReasons          map[domain.ExitReason]int `json:"exitReasons"`
	MonthlyReturns       map[string]float64        `json:"monthlyReturns"`
	Drawdowns            []Drawdown                `json:"drawdowns"`
	EquityCurve          []EquityPoint             `json:"equityCurve"`
}

// Drawdown represents a drawdown period
type Drawdown struct {
	StartTime  time.Time     `json:"startTime"`
	EndTime    time.Time     `json:"endTime"`
	StartValue float64       `json:"startValue"`
	EndValue   float64       `json:"endValue"`
	Depth      float64       `json:"depth"`
	Duration   time.Duration `json:"durationNs"`
}

// EquityPoint represents a point on the equity curve
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// AnalyzePerformance calculates performance metrics from the SOLD trades in
// trades, in exit order. Other statuses are ignored; the input is not modified.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		ExitReasons:    make(map[domain.ExitReason]int),
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	sold := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t != nil && t.Status == domain.StatusSold {
			sold = append(sold, t)
		}
	}
	if len(sold) == 0 {
		return metrics
	}

	sort.SliceStable(sold, func(i, j int) bool {
		return sold[i].ExitTime.Before(sold[j].ExitTime)
	})

	var currentBalance = initialBalance
	var peakBalance = initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var grossWin, grossLoss float64
	var totalHold time.Duration

	for _, trade := range sold {
		metrics.TotalTrades++
		metrics.ExitReasons[trade.ExitReason]++
		totalHold += trade.ExitTime.Sub(trade.EntryTime)

		if trade.Profit > 0 {
			metrics.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			grossWin += trade.Profit
		} else {
			metrics.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss += trade.Profit
		}
		metrics.MaxConsecutiveWins = max(metrics.MaxConsecutiveWins, consecutiveWins)
		metrics.MaxConsecutiveLosses = max(metrics.MaxConsecutiveLosses, consecutiveLosses)

		// Update balance and equity curve
		currentBalance += trade.Profit
		metrics.TotalProfit += trade.Profit
		metrics.FinalBalance = currentBalance
		metrics.MonthlyReturns[trade.ExitTime.Format("2006-01")] += trade.Profit

		// Update drawdown tracking
		if currentBalance > peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.ExitTime
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else if currentBalance < peakBalance {
			drawdown := (peakBalance - currentBalance) / peakBalance
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.ExitTime,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			metrics.MaxDrawdown = math.Max(metrics.MaxDrawdown, drawdown)
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    currentBalance,
			Drawdown: (peakBalance - currentBalance) / peakBalance,
		})
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		last := sold[len(sold)-1]
		currentDrawdown.EndTime = last.ExitTime
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if metrics.WinningTrades > 0 {
		metrics.AverageWin = grossWin / float64(metrics.WinningTrades)
	}
	if metrics.LosingTrades > 0 {
		metrics.AverageLoss = grossLoss / float64(metrics.LosingTrades)
	}
	if grossLoss != 0 {
		metrics.ProfitFactor = grossWin / -grossLoss
	}
	metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
	metrics.AverageHoldDuration = totalHold / time.Duration(metrics.TotalTrades)
	if metrics.MaxDrawdown > 0 {
		metrics.RecoveryFactor = metrics.TotalProfit / (initialBalance * metrics.MaxDrawdown)
	}
	metrics.Expectancy = (metrics.WinRate * metrics.AverageWin) + ((1 - metrics.WinRate) * metrics.AverageLoss)

	return metrics
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time `json:"month"`
	Return float64   `json:"return"`
}
