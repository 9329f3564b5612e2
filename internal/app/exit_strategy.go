package app

import (
	"context"
	"fmt"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// ExitStrategy is how an executed trade is supervised until it closes.
// The two variants are BracketExit and ManualExit.
type ExitStrategy interface {
	Mode() domain.ExitMode
	// apply records the strategy in the trade metadata.
	apply(m *domain.TradeMetadata)
	// supervise blocks until the trade is closed or ctx is cancelled.
	supervise(ctx context.Context, s *TradingService, trade *domain.Trade)
}

// BracketExit relies on an exchange-side OCO order.
type BracketExit struct {
	Order domain.BracketOrder
}

// Mode implements ExitStrategy.
func (BracketExit) Mode() domain.ExitMode { return domain.ExitModeBracket }

func (b BracketExit) apply(m *domain.TradeMetadata) {
	order := b.Order
	m.ExitMode = domain.ExitModeBracket
	m.Bracket = &order
}

// Thresholds are the optional price levels of a manual exit.
type Thresholds struct {
	StopLoss   *float64
	TakeProfit *float64
}

// Any reports whether at least one price level is set.
func (t Thresholds) Any() bool {
	return t.StopLoss != nil || t.TakeProfit != nil
}

// Evaluate returns the exit reason triggered by price, if any.
func (t Thresholds) Evaluate(price float64) (domain.ExitReason, bool) {
	if t.StopLoss != nil && price <= *t.StopLoss {
		return domain.ExitReasonStopLoss, true
	}
	if t.TakeProfit != nil && price >= *t.TakeProfit {
		return domain.ExitReasonTakeProfit, true
	}
	return "", false
}

// ManualExit polls the market price locally alongside the holding deadline.
// Without thresholds only the deadline applies.
type ManualExit struct {
	Thresholds Thresholds
}

// Mode implements ExitStrategy.
func (ManualExit) Mode() domain.ExitMode { return domain.ExitModeManual }

func (ManualExit) apply(m *domain.TradeMetadata) {
	m.ExitMode = domain.ExitModeManual
	m.Bracket = nil
}

// chooseExitMode picks bracket supervision only when both price levels exist.
func chooseExitMode(stopLoss, takeProfit *float64) domain.ExitMode {
	if stopLoss != nil && takeProfit != nil {
		return domain.ExitModeBracket
	}
	return domain.ExitModeManual
}

// selectExitStrategy decides how the freshly bought position is supervised.
// A bracket that was asked for but could not be placed is an error; it is
// never downgraded to manual supervision.
func (s *TradingService) selectExitStrategy(ctx context.Context, trade *domain.Trade, quantity float64) (ExitStrategy, error) {
	if chooseExitMode(trade.StopLoss, trade.TakeProfit) == domain.ExitModeManual {
		return ManualExit{Thresholds: Thresholds{StopLoss: trade.StopLoss, TakeProfit: trade.TakeProfit}}, nil
	}

	qty := s.normalizer.Normalize(ctx, trade.Symbol, quantity)
	stop := s.normalizer.FormatPrice(ctx, trade.Symbol, *trade.StopLoss)
	req := ports.BracketOrderRequest{
		Symbol:          trade.Symbol,
		Quantity:        qty.Text,
		TakeProfitPrice: s.normalizer.FormatPrice(ctx, trade.Symbol, *trade.TakeProfit),
		StopPrice:       stop,
		StopLimitPrice:  stop,
	}
	order, err := s.exchange.CreateBracketOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create bracket order: %w", err)
	}
	if order == nil || order.OrderListID <= 0 {
		return nil, fmt.Errorf("create bracket order: %w: exchange returned no order list id", ports.ErrOrderPlacementFailed)
	}
	return BracketExit{Order: *order}, nil
}
