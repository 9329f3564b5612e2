package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidParameters is returned when strategy parameters fail validation.
var ErrInvalidParameters = errors.New("invalid strategy parameters")

// StrategyAction is the signal a strategy emits.
type StrategyAction string

const (
	ActionBuy  StrategyAction = "BUY"
	ActionSell StrategyAction = "SELL"
	ActionHold StrategyAction = "HOLD"
)

// StrategyParameters is the trading instruction attached to a strategy record.
type StrategyParameters struct {
	Action     StrategyAction `json:"action"`
	Price      float64        `json:"price"`
	Quantity   float64        `json:"quantity"`
	StopLoss   *float64       `json:"stopLoss,omitempty"`
	TakeProfit *float64       `json:"takeProfit,omitempty"`
}

// Validate checks the parameters. Only BUY signals need price and quantity.
func (p StrategyParameters) Validate() error {
	switch p.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidParameters, p.Action)
	}
	if p.Action != ActionBuy {
		return nil
	}
	if p.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidParameters)
	}
	if p.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
	}
	if p.StopLoss != nil && *p.StopLoss <= 0 {
		return fmt.Errorf("%w: stop loss must be positive", ErrInvalidParameters)
	}
	if p.TakeProfit != nil && *p.TakeProfit <= 0 {
		return fmt.Errorf("%w: take profit must be positive", ErrInvalidParameters)
	}
	if p.StopLoss != nil && p.TakeProfit != nil && *p.StopLoss >= *p.TakeProfit {
		return fmt.Errorf("%w: stop loss %.8f must be below take profit %.8f", ErrInvalidParameters, *p.StopLoss, *p.TakeProfit)
	}
	return nil
}

// Strategy is a signal record produced by the strategy generator.
type Strategy struct {
	ID         string
	Symbol     string
	Timeframe  string
	Confidence float64
	Parameters StrategyParameters
	CreatedAt  time.Time
}

// Validate checks the record and its parameters.
func (s *Strategy) Validate() error {
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidParameters)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be within [0, 1]", ErrInvalidParameters)
	}
	return s.Parameters.Validate()
}
