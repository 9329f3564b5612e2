package app

import (
	"context"
	"time"

	"scalpExecutor/internal/domain"
)

// supervise races the price thresholds against the holding deadline.
func (m ManualExit) supervise(ctx context.Context, s *TradingService, trade *domain.Trade) {
	fields := map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol}

	// A nil channel never fires: time-only supervision makes no price requests.
	var tick <-chan time.Time
	if m.Thresholds.Any() {
		ticker := time.NewTicker(s.cfg.PriceCheckInterval)
		defer ticker.Stop()
		tick = ticker.C
	}
	deadline := time.NewTimer(s.untilDeadline(trade))
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug(ctx, "Manual exit monitor stopped", fields)
			return

		case <-tick:
			if reason, price, ok := m.checkPrice(ctx, s, trade); ok {
				s.claimAndSell(ctx, trade, reason, price)
				return
			}

		case <-deadline.C:
			// A price check that is already due wins the tie.
			select {
			case <-tick:
				if reason, price, ok := m.checkPrice(ctx, s, trade); ok {
					s.claimAndSell(ctx, trade, reason, price)
					return
				}
			default:
			}
			s.logger.Info(ctx, "Holding duration elapsed", fields)
			s.claimAndSell(ctx, trade, domain.ExitReasonTimeLimit, 0)
			return
		}
	}
}

// checkPrice fetches the market price and evaluates the thresholds.
// Fetch errors are logged and treated as no trigger.
func (m ManualExit) checkPrice(ctx context.Context, s *TradingService, trade *domain.Trade) (domain.ExitReason, float64, bool) {
	price, err := s.exchange.GetTickerPrice(ctx, trade.Symbol)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn(ctx, "Price check failed, retrying next tick", map[string]interface{}{
				"tradeID": trade.ID,
				"error":   err.Error(),
			})
		}
		return "", 0, false
	}

	reason, hit := m.Thresholds.Evaluate(price)
	if !hit {
		s.logger.Debug(ctx, "Price within thresholds", map[string]interface{}{"tradeID": trade.ID, "price": price})
		return "", 0, false
	}
	s.logger.Info(ctx, "Exit threshold reached", map[string]interface{}{
		"tradeID": trade.ID,
		"price":   price,
		"reason":  reason,
	})
	return reason, price, true
}
