package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a trade is asked to move along an edge
// that is not part of its lifecycle graph.
var ErrInvalidTransition = errors.New("invalid trade status transition")

// ErrInvalidMetadata is returned when persisted trade metadata fails validation.
var ErrInvalidMetadata = errors.New("invalid trade metadata")

// BracketOrder identifies an exchange OCO order and its two child legs.
type BracketOrder struct {
	OrderListID       int64 `json:"orderListId"`
	TakeProfitOrderID int64 `json:"takeProfitOrderId"`
	StopLossOrderID   int64 `json:"stopLossOrderId"`
}

// TradeMetadata carries exchange identifiers and diagnostics for a trade.
type TradeMetadata struct {
	ExitMode    ExitMode      `json:"exitMode,omitempty"`
	Bracket     *BracketOrder `json:"bracket,omitempty"`
	BuyOrderID  int64         `json:"buyOrderId,omitempty"`
	SellOrderID int64         `json:"sellOrderId,omitempty"`

	// Fill facts of a buy that went through while the trade still ended FAILED.
	FillPrice    float64 `json:"fillPrice,omitempty"`
	FillQuantity float64 `json:"fillQuantity,omitempty"`

	Error string `json:"error,omitempty"`
}

// Validate checks the metadata invariants.
func (m TradeMetadata) Validate() error {
	switch m.ExitMode {
	case "", ExitModeManual:
	case ExitModeBracket:
		if m.Bracket == nil {
			return fmt.Errorf("%w: bracket exit mode without bracket order", ErrInvalidMetadata)
		}
	default:
		return fmt.Errorf("%w: unknown exit mode %q", ErrInvalidMetadata, m.ExitMode)
	}
	if m.Bracket != nil && m.Bracket.OrderListID <= 0 {
		return fmt.Errorf("%w: bracket order list id must be positive", ErrInvalidMetadata)
	}
	if m.FillPrice < 0 || m.FillQuantity < 0 {
		return fmt.Errorf("%w: negative fill diagnostics", ErrInvalidMetadata)
	}
	return nil
}

// Trade is one buy/sell round trip initiated from a strategy signal.
type Trade struct {
	ID                string
	StrategyID        string
	Symbol            string
	Side              OrderSide
	RequestedPrice    float64
	RequestedQuantity float64
	StopLoss          *float64
	TakeProfit        *float64
	HoldingDuration   time.Duration
	Status            TradeStatus

	// Entry facts, set together on PENDING -> EXECUTED.
	EntryPrice    float64
	EntryQuantity float64
	EntryTime     time.Time

	// Exit facts, set together on EXECUTED -> SOLD or EXECUTED -> SELL_FAILED.
	ExitPrice  float64
	ExitTime   time.Time
	ExitReason ExitReason
	Profit     float64

	Metadata  TradeMetadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTrade creates a PENDING buy trade from a strategy's parameters.
func NewTrade(id string, strategy *Strategy, holding time.Duration, now time.Time) *Trade {
	p := strategy.Parameters
	return &Trade{
		ID:                id,
		StrategyID:        strategy.ID,
		Symbol:            strategy.Symbol,
		Side:              Buy,
		RequestedPrice:    p.Price,
		RequestedQuantity: p.Quantity,
		StopLoss:          copyFloat(p.StopLoss),
		TakeProfit:        copyFloat(p.TakeProfit),
		HoldingDuration:   holding,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// HoldingDeadline is the instant the time-limit exit becomes due.
func (t *Trade) HoldingDeadline() time.Time {
	return t.EntryTime.Add(t.HoldingDuration)
}

// MarkExecuted records the buy fill.
func (t *Trade) MarkExecuted(price, quantity float64, at time.Time) error {
	if err := t.transition(StatusExecuted); err != nil {
		return err
	}
	t.EntryPrice = price
	t.EntryQuantity = quantity
	t.EntryTime = at
	t.UpdatedAt = at
	return nil
}

// MarkFailed records that the trade never reached a supervised position.
func (t *Trade) MarkFailed(cause string, at time.Time) error {
	if err := t.transition(StatusFailed); err != nil {
		return err
	}
	t.Metadata.Error = cause
	t.UpdatedAt = at
	return nil
}

// MarkSold records a completed exit.
func (t *Trade) MarkSold(price float64, reason ExitReason, profit float64, at time.Time) error {
	if reason == ExitReasonSellError || reason == "" {
		return fmt.Errorf("%w: sold with exit reason %q", ErrInvalidTransition, reason)
	}
	if err := t.transition(StatusSold); err != nil {
		return err
	}
	t.ExitPrice = price
	t.ExitTime = at
	t.ExitReason = reason
	t.Profit = profit
	t.UpdatedAt = at
	return nil
}

// MarkSellFailed records that the exit could not be executed.
func (t *Trade) MarkSellFailed(cause string, at time.Time) error {
	if err := t.transition(StatusSellFailed); err != nil {
		return err
	}
	t.ExitPrice = 0
	t.ExitTime = at
	t.ExitReason = ExitReasonSellError
	t.Profit = 0
	t.Metadata.Error = cause
	t.UpdatedAt = at
	return nil
}

func (t *Trade) transition(to TradeStatus) error {
	allowed := false
	switch t.Status {
	case StatusPending:
		allowed = to == StatusExecuted || to == StatusFailed
	case StatusExecuted:
		allowed = to == StatusSold || to == StatusSellFailed
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s (trade %s)", ErrInvalidTransition, t.Status, to, t.ID)
	}
	t.Status = to
	return nil
}

// Clone returns a deep copy so a supervising goroutine can own its trade.
func (t *Trade) Clone() *Trade {
	c := *t
	c.StopLoss = copyFloat(t.StopLoss)
	c.TakeProfit = copyFloat(t.TakeProfit)
	if t.Metadata.Bracket != nil {
		b := *t.Metadata.Bracket
		c.Metadata.Bracket = &b
	}
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
