package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// claimAndSell sells the position if this caller wins the claim.
func (s *TradingService) claimAndSell(ctx context.Context, trade *domain.Trade, reason domain.ExitReason, refPrice float64) {
	if !s.registry.Claim(trade.ID) {
		return
	}
	s.sell(ctx, trade, reason, refPrice)
}

// sell places the market exit for a claimed trade and closes it.
// refPrice is the price that triggered the exit, 0 if none.
func (s *TradingService) sell(ctx context.Context, trade *domain.Trade, reason domain.ExitReason, refPrice float64) {
	s.sellRemainder(ctx, trade, reason, refPrice, nil)
}

// sellRemainder sells what is left of the position after partial, the part a
// bracket leg already executed (nil if none), and books both executions.
func (s *TradingService) sellRemainder(ctx context.Context, trade *domain.Trade, reason domain.ExitReason, refPrice float64, partial *ports.BracketFill) {
	op := "sell"
	ctx, cancel := s.exitContext(ctx)
	defer cancel()

	remaining := trade.EntryQuantity
	if partial != nil {
		remaining, _ = decimal.NewFromFloat(trade.EntryQuantity).Sub(decimal.NewFromFloat(partial.Quantity)).Float64()
	}
	qty := s.normalizer.Normalize(ctx, trade.Symbol, remaining)
	fields := map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol, "quantity": qty.Text, "reason": reason}

	if partial != nil {
		fields["executedQty"] = partial.Quantity
		// Below the lot minimum the remainder cannot be sold; book the partial fill alone.
		if remaining <= 0 || qty.Value > remaining {
			s.logger.Warn(ctx, op+": Remaining quantity is not sellable, closing from partial fill", fields)
			trade.Metadata.SellOrderID = partial.OrderID
			price := partial.Price
			if price <= 0 {
				price = s.fallbackExitPrice(ctx, trade, refPrice)
			}
			s.markSold(ctx, trade, price, reason, computeProfit(trade.EntryPrice, price, partial.Quantity, s.cfg.FeeRate))
			return
		}
	}

	s.logger.Info(ctx, op+": Placing exit market order...", fields)
	order, err := s.exchange.PlaceMarketOrder(ctx, trade.Symbol, domain.Sell, qty.Text)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to place exit market order", fields)
		s.markSellFailed(ctx, trade, fmt.Errorf("sell order failed: %w", err))
		return
	}

	exitPrice := order.AvgPrice
	if exitPrice <= 0 {
		exitPrice = s.fallbackExitPrice(ctx, trade, refPrice)
		s.logger.Warn(ctx, op+": Exit order AvgPrice is 0, using fallback price", map[string]interface{}{"orderID": order.OrderID, "fallbackPrice": exitPrice})
	}
	exitQty := order.ExecutedQty
	if exitQty <= 0 {
		exitQty = qty.Value
	}
	trade.Metadata.SellOrderID = order.OrderID

	if partial != nil {
		partialPrice := partial.Price
		if partialPrice <= 0 {
			partialPrice = exitPrice
		}
		exitPrice, exitQty = blendFills(partialPrice, partial.Quantity, exitPrice, exitQty)
	}
	profit := computeProfit(trade.EntryPrice, exitPrice, exitQty, s.cfg.FeeRate)
	s.markSold(ctx, trade, exitPrice, reason, profit)
}

// fallbackExitPrice picks the trigger price, then the current ticker, then the entry price.
func (s *TradingService) fallbackExitPrice(ctx context.Context, trade *domain.Trade, refPrice float64) float64 {
	if refPrice > 0 {
		return refPrice
	}
	if price, err := s.exchange.GetTickerPrice(ctx, trade.Symbol); err == nil && price > 0 {
		return price
	}
	return trade.EntryPrice
}

// completeFromBracket closes a trade whose bracket leg filled on the exchange.
func (s *TradingService) completeFromBracket(ctx context.Context, trade *domain.Trade, fill *ports.BracketFill) {
	ctx, cancel := s.exitContext(ctx)
	defer cancel()

	reason := classifyBracketFill(trade, fill)
	price := fill.Price
	if price <= 0 {
		price = bracketLegPrice(trade, reason)
	}
	qty := fill.Quantity
	if qty <= 0 {
		qty = trade.EntryQuantity
	}
	trade.Metadata.SellOrderID = fill.OrderID

	s.logger.Info(ctx, "Bracket order filled", map[string]interface{}{
		"tradeID": trade.ID,
		"leg":     fill.Leg,
		"orderID": fill.OrderID,
		"price":   price,
		"reason":  reason,
	})
	s.markSold(ctx, trade, price, reason, computeProfit(trade.EntryPrice, price, qty, s.cfg.FeeRate))
}

// expireBracket handles the holding deadline of a bracket trade: cancel the
// bracket, then sell at market whatever its legs did not already execute. A
// bracket the exchange no longer knows may have just filled, so it is
// re-queried instead of sold a second time.
func (s *TradingService) expireBracket(ctx context.Context, trade *domain.Trade, order domain.BracketOrder) {
	exitCtx, cancel := s.exitContext(ctx)
	defer cancel()
	fields := map[string]interface{}{"tradeID": trade.ID, "orderListID": order.OrderListID}

	err := s.exchange.CancelBracketOrder(exitCtx, trade.Symbol, order)
	switch {
	case err == nil:
		status, qerr := s.exchange.GetBracketOrderStatus(exitCtx, trade.Symbol, order)
		if qerr != nil {
			s.logger.Warn(exitCtx, "Bracket status unavailable after cancel, selling full quantity", map[string]interface{}{
				"tradeID":     trade.ID,
				"orderListID": order.OrderListID,
				"error":       qerr.Error(),
			})
			s.sell(ctx, trade, domain.ExitReasonTimeLimit, 0)
			return
		}
		if status.Fill != nil {
			s.completeFromBracket(ctx, trade, status.Fill)
			return
		}
		s.sellRemainder(ctx, trade, domain.ExitReasonTimeLimit, 0, status.Partial)

	case errors.Is(err, ports.ErrOrderNotFound):
		s.logger.Warn(exitCtx, "Bracket order not found on cancel, re-checking status", fields)
		status, qerr := s.exchange.GetBracketOrderStatus(exitCtx, trade.Symbol, order)
		if qerr != nil {
			s.logger.Error(exitCtx, qerr, "Bracket reconciliation failed", fields)
			s.markSellFailed(exitCtx, trade, fmt.Errorf("bracket reconciliation failed: %w", qerr))
			return
		}
		if status.Fill != nil {
			s.completeFromBracket(ctx, trade, status.Fill)
			return
		}
		s.logger.Warn(exitCtx, "Bracket order gone without a fill, selling at market", fields)
		s.sellRemainder(ctx, trade, domain.ExitReasonTimeLimit, 0, status.Partial)

	default:
		s.logger.Error(exitCtx, err, "Failed to cancel bracket order", fields)
		s.markSellFailed(exitCtx, trade, fmt.Errorf("cancel bracket order: %w", err))
	}
}

func (s *TradingService) markSold(ctx context.Context, trade *domain.Trade, price float64, reason domain.ExitReason, profit float64) {
	if err := trade.MarkSold(price, reason, profit, s.now()); err != nil {
		s.logger.Error(ctx, err, "Unexpected trade state while closing trade", map[string]interface{}{"tradeID": trade.ID})
		return
	}
	s.logger.Info(ctx, "Trade closed", map[string]interface{}{
		"tradeID":    trade.ID,
		"symbol":     trade.Symbol,
		"entryPrice": trade.EntryPrice,
		"exitPrice":  price,
		"reason":     reason,
		"profit":     profit,
	})
	s.settle(ctx, trade)
}

func (s *TradingService) markSellFailed(ctx context.Context, trade *domain.Trade, cause error) {
	if err := trade.MarkSellFailed(cause.Error(), s.now()); err != nil {
		s.logger.Error(ctx, err, "Unexpected trade state while failing sell", map[string]interface{}{"tradeID": trade.ID})
		return
	}
	s.settle(ctx, trade)
}

// settle persists a terminal trade, releases its admission slot and reports it.
func (s *TradingService) settle(ctx context.Context, trade *domain.Trade) {
	if err := s.trades.UpdateTrade(ctx, trade); err != nil {
		s.logger.Error(ctx, err, "Failed to persist trade", map[string]interface{}{"tradeID": trade.ID, "status": trade.Status})
	}
	s.gate.Release(ctx, trade)
	s.report(ctx, trade)
}
