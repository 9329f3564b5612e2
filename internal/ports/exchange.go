package ports

import (
	"context"
	"time"

	"scalpExecutor/internal/domain"
)

// OrderResponse represents the essential details returned after placing an order.
type OrderResponse struct {
	OrderID         int64     // Exchange's order ID
	Symbol          string    // Symbol for the order
	ClientOrderID   string    // User-defined order ID
	AvgPrice        float64   // Quantity-weighted average of the fills (0 if unknown)
	OrigQuantity    float64   // Original quantity requested
	ExecutedQty     float64   // Quantity filled
	CumulativeQuote float64   // Quote asset spent or received
	Status          string    // Order status (e.g., NEW, FILLED, CANCELED)
	Type            string    // Order type (e.g., MARKET)
	Side            string    // Order side (BUY, SELL)
	Timestamp       time.Time // Transaction time reported by the exchange
}

// InstrumentFilters holds the trading rules the exchange enforces for a symbol.
type InstrumentFilters struct {
	Symbol   string
	StepSize float64 // Quantity increment; 0 means no quantization
	MinQty   float64
	MaxQty   float64
	TickSize float64 // Price increment; 0 means no quantization
}

// BracketOrderRequest describes an OCO sell that protects a long position.
// All numeric values are already formatted to the symbol's precision.
type BracketOrderRequest struct {
	Symbol          string
	Quantity        string
	TakeProfitPrice string // Limit-maker leg above the market
	StopPrice       string // Trigger of the stop-loss-limit leg
	StopLimitPrice  string // Limit price of the stop-loss-limit leg
}

// BracketLeg names the child order of a bracket that executed.
type BracketLeg string

const (
	LegTakeProfit BracketLeg = "TAKE_PROFIT"
	LegStopLoss   BracketLeg = "STOP_LOSS"
)

// BracketFill describes the filled child of a completed bracket.
type BracketFill struct {
	Leg      BracketLeg // Empty when the exchange response did not identify the leg
	OrderID  int64
	Price    float64 // Average execution price (0 if unknown)
	Quantity float64
}

// BracketStatus is a point-in-time view of a bracket order.
type BracketStatus struct {
	Completed bool         // No child order is still working
	Fill      *BracketFill // Nil when no child fully filled
	Partial   *BracketFill // Executed part of a leg that did not fully fill
}

// ExchangeClient defines the interface for interacting with a cryptocurrency exchange.
// This abstraction allows decoupling the execution engine from specific exchange implementations.
type ExchangeClient interface {
	// SetServerTime synchronizes the client's time with the server's time.
	SetServerTime(ctx context.Context) error

	// Ping checks the connectivity to the exchange API.
	Ping(ctx context.Context) error

	// GetTickerPrice retrieves the last traded price for a given symbol.
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)

	// GetInstrumentFilters retrieves the lot size and price filters for a symbol.
	GetInstrumentFilters(ctx context.Context, symbol string) (*InstrumentFilters, error)

	// PlaceMarketOrder places a market order and returns its fill summary.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*OrderResponse, error)

	// CreateBracketOrder places an OCO sell with a take-profit and a stop-loss leg.
	CreateBracketOrder(ctx context.Context, req BracketOrderRequest) (*domain.BracketOrder, error)

	// GetBracketOrderStatus reports whether the bracket finished and which leg filled.
	GetBracketOrderStatus(ctx context.Context, symbol string, bracket domain.BracketOrder) (*BracketStatus, error)

	// CancelBracketOrder cancels both legs of a bracket.
	// Returns ErrOrderNotFound when the bracket is no longer open on the exchange.
	CancelBracketOrder(ctx context.Context, symbol string, bracket domain.BracketOrder) error
}
