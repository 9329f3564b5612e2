package domain

// Feedback is the outcome notice sent back to the signal originator.
type Feedback struct {
	StrategyID string      `json:"strategyId"`
	TradeID    string      `json:"tradeId"`
	Symbol     string      `json:"symbol"`
	Status     TradeStatus `json:"status"`
	BuyPrice   float64     `json:"buyPrice"`
	SellPrice  *float64    `json:"sellPrice,omitempty"`
	Quantity   float64     `json:"quantity"`
	Profit     *float64    `json:"profit,omitempty"`
	Reason     ExitReason  `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// FeedbackFor builds the feedback message for the trade's current state.
func FeedbackFor(t *Trade) Feedback {
	fb := Feedback{
		StrategyID: t.StrategyID,
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Status:     t.Status,
		BuyPrice:   t.EntryPrice,
		Quantity:   t.EntryQuantity,
	}
	if t.Status == StatusPending || t.Status == StatusFailed {
		fb.BuyPrice = t.RequestedPrice
		fb.Quantity = t.RequestedQuantity
	}

	switch t.Status {
	case StatusSold:
		sell, profit := t.ExitPrice, t.Profit
		fb.SellPrice = &sell
		fb.Profit = &profit
		fb.Reason = t.ExitReason
	case StatusSellFailed:
		profit := 0.0
		fb.Profit = &profit
		fb.Reason = t.ExitReason
		fb.Error = t.Metadata.Error
	case StatusFailed:
		fb.Error = t.Metadata.Error
	}
	return fb
}
