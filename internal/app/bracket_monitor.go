package app

import (
	"context"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// supervise polls the bracket until one leg fills or the holding deadline
// passes. Whichever path claims the trade first closes it.
func (b BracketExit) supervise(ctx context.Context, s *TradingService, trade *domain.Trade) {
	fields := map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "orderListID": b.Order.OrderListID}

	ticker := time.NewTicker(s.cfg.BracketPollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.untilDeadline(trade))
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug(ctx, "Bracket monitor stopped", fields)
			return

		case <-ticker.C:
			status, err := s.exchange.GetBracketOrderStatus(ctx, trade.Symbol, b.Order)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn(ctx, "Bracket status check failed, retrying next tick", map[string]interface{}{
					"tradeID": trade.ID,
					"error":   err.Error(),
				})
				continue
			}
			if !status.Completed {
				continue
			}
			if status.Fill == nil {
				s.logger.Warn(ctx, "Bracket finished without a fill; waiting for holding deadline", fields)
				continue
			}
			if !s.registry.Claim(trade.ID) {
				return
			}
			s.completeFromBracket(ctx, trade, status.Fill)
			return

		case <-deadline.C:
			if !s.registry.Claim(trade.ID) {
				return
			}
			s.logger.Info(ctx, "Holding duration elapsed, cancelling bracket order", fields)
			s.expireBracket(ctx, trade, b.Order)
			return
		}
	}
}

// classifyBracketFill maps the filled leg to an exit reason. When the exchange
// did not name the leg, a fill at or above entry is the take-profit side.
func classifyBracketFill(trade *domain.Trade, fill *ports.BracketFill) domain.ExitReason {
	switch fill.Leg {
	case ports.LegTakeProfit:
		return domain.ExitReasonTakeProfit
	case ports.LegStopLoss:
		return domain.ExitReasonStopLoss
	}
	if fill.Price >= trade.EntryPrice {
		return domain.ExitReasonTakeProfit
	}
	return domain.ExitReasonStopLoss
}

// bracketLegPrice is the configured price of the leg behind reason.
func bracketLegPrice(trade *domain.Trade, reason domain.ExitReason) float64 {
	if reason == domain.ExitReasonTakeProfit && trade.TakeProfit != nil {
		return *trade.TakeProfit
	}
	if reason == domain.ExitReasonStopLoss && trade.StopLoss != nil {
		return *trade.StopLoss
	}
	return trade.EntryPrice
}
