package app

import (
	"context"
	"sync"
	"time"

	"scalpExecutor/internal/ports"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// NormalizedQuantity is an order quantity adjusted to a symbol's lot-size rules.
type NormalizedQuantity struct {
	Value float64
	Text  string // Formatted with the step size precision, ready for the exchange
}

type cachedFilters struct {
	filters   *ports.InstrumentFilters
	fetchedAt time.Time
}

// QuantityNormalizer adjusts order quantities and prices to the exchange's
// instrument filters. Filters are cached per symbol for ttl.
type QuantityNormalizer struct {
	exchange ports.ExchangeClient
	logger   ports.Logger
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	cache  map[string]cachedFilters
	flight singleflight.Group // One exchange-info request per symbol at a time
}

// NewQuantityNormalizer creates a normalizer. A non-positive ttl disables caching.
func NewQuantityNormalizer(exchange ports.ExchangeClient, logger ports.Logger, ttl time.Duration) *QuantityNormalizer {
	return &QuantityNormalizer{
		exchange: exchange,
		logger:   logger,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[string]cachedFilters),
	}
}

// Normalize floors qty to the symbol's step size and clamps it up to the
// minimum quantity. When filters are unavailable qty passes through unchanged.
func (n *QuantityNormalizer) Normalize(ctx context.Context, symbol string, qty float64) NormalizedQuantity {
	raw := decimal.NewFromFloat(qty)
	filters, err := n.filters(ctx, symbol)
	if err != nil {
		n.logger.Warn(ctx, "Instrument filters unavailable, using raw quantity", map[string]interface{}{
			"symbol":   symbol,
			"quantity": qty,
			"error":    err.Error(),
		})
		return NormalizedQuantity{Value: qty, Text: raw.String()}
	}

	step := decimal.NewFromFloat(filters.StepSize)
	adjusted := normalizeQuantity(raw, step, decimal.NewFromFloat(filters.MinQty))
	value, _ := adjusted.Float64()
	text := adjusted.String()
	if step.IsPositive() {
		text = adjusted.StringFixed(precisionOf(step))
	}

	if !adjusted.Equal(raw) {
		n.logger.Debug(ctx, "Quantity adjusted to lot size", map[string]interface{}{
			"symbol":   symbol,
			"raw":      qty,
			"adjusted": text,
			"stepSize": filters.StepSize,
			"minQty":   filters.MinQty,
		})
	}
	return NormalizedQuantity{Value: value, Text: text}
}

// FormatPrice rounds price to the symbol's tick size and formats it for the exchange.
func (n *QuantityNormalizer) FormatPrice(ctx context.Context, symbol string, price float64) string {
	p := decimal.NewFromFloat(price)
	filters, err := n.filters(ctx, symbol)
	if err != nil || filters.TickSize <= 0 {
		return p.String()
	}
	tick := decimal.NewFromFloat(filters.TickSize)
	return p.Div(tick).Round(0).Mul(tick).StringFixed(precisionOf(tick))
}

func (n *QuantityNormalizer) filters(ctx context.Context, symbol string) (*ports.InstrumentFilters, error) {
	n.mu.Lock()
	entry, ok := n.cache[symbol]
	n.mu.Unlock()
	if ok && n.ttl > 0 && n.now().Sub(entry.fetchedAt) < n.ttl {
		return entry.filters, nil
	}

	v, err, _ := n.flight.Do(symbol, func() (interface{}, error) {
		filters, err := n.exchange.GetInstrumentFilters(ctx, symbol)
		if err != nil {
			return nil, err
		}
		n.mu.Lock()
		n.cache[symbol] = cachedFilters{filters: filters, fetchedAt: n.now()}
		n.mu.Unlock()
		return filters, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*ports.InstrumentFilters), nil
}

// normalizeQuantity returns floor(q/step)*step, raised to minQty if below it.
// A non-positive step leaves q unquantized.
func normalizeQuantity(q, step, minQty decimal.Decimal) decimal.Decimal {
	if step.IsPositive() {
		q = q.Div(step).Floor().Mul(step)
	}
	if q.LessThan(minQty) {
		q = minQty
	}
	return q
}

// precisionOf is the number of fractional digits a step or tick size carries.
func precisionOf(step decimal.Decimal) int32 {
	if exp := step.Exponent(); exp < 0 {
		return -exp
	}
	return 0
}
