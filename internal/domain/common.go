package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// TradeStatus represents the lifecycle state of a trade.
type TradeStatus string

const (
	StatusPending    TradeStatus = "PENDING"
	StatusExecuted   TradeStatus = "EXECUTED"
	StatusFailed     TradeStatus = "FAILED"
	StatusSold       TradeStatus = "SOLD"
	StatusSellFailed TradeStatus = "SELL_FAILED"
)

// Valid reports whether s is one of the known trade statuses.
func (s TradeStatus) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusFailed, StatusSold, StatusSellFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s TradeStatus) IsTerminal() bool {
	return s == StatusFailed || s == StatusSold || s == StatusSellFailed
}

// ExitReason indicates why a position was closed.
type ExitReason string

const (
	ExitReasonStopLoss   ExitReason = "STOP_LOSS"
	ExitReasonTakeProfit ExitReason = "TAKE_PROFIT"
	ExitReasonTimeLimit  ExitReason = "TIME_LIMIT" // Holding duration elapsed
	ExitReasonSellError  ExitReason = "SELL_ERROR" // Exit order could not be placed or reconciled
)

// ExitMode records which supervision style watches an open trade.
type ExitMode string

const (
	ExitModeBracket ExitMode = "BRACKET" // Exchange-side OCO order carries SL and TP
	ExitModeManual  ExitMode = "MANUAL"  // Local price polling plus the holding deadline
)
