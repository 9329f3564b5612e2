package risk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// RiskConfig holds configuration for risk management.
// A zero limit disables the corresponding check.
type RiskConfig struct {
	MaxOpenTrades       int
	MaxPositionNotional float64 // price * quantity of a single buy
	MaxDailyLoss        float64 // Absolute quote amount
}

// RiskManager admits new trades against portfolio limits.
// It implements ports.AdmissionGate.
type RiskManager struct {
	config RiskConfig
	logger ports.Logger
	now    func() time.Time

	mu    sync.Mutex
	stats RiskStats
}

// RiskStats holds risk management statistics
type RiskStats struct {
	DailyPnL      float64   `json:"dailyPnl"`
	OpenTrades    int       `json:"openTrades"`
	TotalExposure float64   `json:"totalExposure"`
	DailyTrades   int       `json:"dailyTrades"`
	Rejections    int       `json:"rejections"`
	LastResetTime time.Time `json:"lastResetTime"`
}

// NewRiskManager creates a new risk manager instance
func NewRiskManager(config RiskConfig, logger ports.Logger) *RiskManager {
	r := &RiskManager{
		config: config,
		logger: logger,
		now:    time.Now,
	}
	r.stats.LastResetTime = r.now()
	return r
}

// Admit reserves capacity for a buy or rejects it.
func (r *RiskManager) Admit(ctx context.Context, req ports.AdmissionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetIfNewDayLocked()

	notional := req.Price * req.Quantity
	if err := r.checkLocked(notional); err != nil {
		r.stats.Rejections++
		r.logger.Warn(ctx, "Risk check rejected trade", map[string]interface{}{
			"strategyID": req.StrategyID,
			"symbol":     req.Symbol,
			"notional":   notional,
			"reason":     err.Error(),
		})
		return fmt.Errorf("%w: %w", ports.ErrAdmissionRejected, err)
	}

	r.stats.OpenTrades++
	r.stats.TotalExposure += notional
	r.stats.DailyTrades++
	return nil
}

func (r *RiskManager) checkLocked(notional float64) error {
	if r.config.MaxOpenTrades > 0 && r.stats.OpenTrades >= r.config.MaxOpenTrades {
		return fmt.Errorf("open trades %d reached maximum allowed %d", r.stats.OpenTrades, r.config.MaxOpenTrades)
	}
	if r.config.MaxPositionNotional > 0 && notional > r.config.MaxPositionNotional {
		return fmt.Errorf("position notional %.2f exceeds maximum allowed %.2f", notional, r.config.MaxPositionNotional)
	}
	if r.config.MaxDailyLoss > 0 && r.stats.DailyPnL <= -r.config.MaxDailyLoss {
		return fmt.Errorf("daily loss %.2f reached maximum allowed %.2f", -r.stats.DailyPnL, r.config.MaxDailyLoss)
	}
	return nil
}

// Release frees the capacity held by a trade that reached a terminal status
// and books its realized profit.
func (r *RiskManager) Release(ctx context.Context, trade *domain.Trade) {
	if trade == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetIfNewDayLocked()

	if r.stats.OpenTrades > 0 {
		r.stats.OpenTrades--
	}
	r.stats.TotalExposure -= trade.RequestedPrice * trade.RequestedQuantity
	if r.stats.TotalExposure < 0 || r.stats.OpenTrades == 0 {
		r.stats.TotalExposure = 0
	}
	if trade.Status == domain.StatusSold {
		r.stats.DailyPnL += trade.Profit
	}
	r.logger.Debug(ctx, "Risk capacity released", map[string]interface{}{
		"tradeID":    trade.ID,
		"status":     trade.Status,
		"openTrades": r.stats.OpenTrades,
		"dailyPnl":   r.stats.DailyPnL,
	})
}

// resetIfNewDayLocked resets daily statistics at the first call of a new UTC day.
func (r *RiskManager) resetIfNewDayLocked() {
	now := r.now().UTC()
	last := r.stats.LastResetTime.UTC()
	if now.Year() == last.Year() && now.YearDay() == last.YearDay() {
		return
	}
	r.stats.DailyPnL = 0
	r.stats.DailyTrades = 0
	r.stats.LastResetTime = now
}

// GetStats returns a snapshot of the current risk management statistics
func (r *RiskManager) GetStats() RiskStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
