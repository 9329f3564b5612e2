package ports

import (
	"context"

	"scalpExecutor/internal/domain"
)

// TradeFilter narrows a trade listing.
type TradeFilter struct {
	Statuses        []domain.TradeStatus // Include only these statuses (all when empty)
	ExcludeStatuses []domain.TradeStatus
	Symbol          string
	StrategyID      string
	Limit           int
	Offset          int
}

// TradeRepository defines the interface for storing and retrieving trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record.
	CreateTrade(ctx context.Context, trade *domain.Trade) error
	// UpdateTrade overwrites the mutable fields of an existing trade.
	UpdateTrade(ctx context.Context, trade *domain.Trade) error
	// FindTradeByID retrieves a trade by its ID.
	// Returns nil, nil if not found.
	FindTradeByID(ctx context.Context, id string) (*domain.Trade, error)
	// ListTrades returns one page of trades, newest first, and the total match count.
	ListTrades(ctx context.Context, filter TradeFilter) ([]*domain.Trade, int, error)
	// CountByStatus counts trades per status.
	CountByStatus(ctx context.Context) (map[domain.TradeStatus]int, error)
	// GetTotalProfit sums the profit of all SOLD trades.
	GetTotalProfit(ctx context.Context) (float64, error)
}

// StrategyRepository defines the interface for reading and recording strategy signals.
type StrategyRepository interface {
	// CreateStrategy saves a new strategy record.
	CreateStrategy(ctx context.Context, strategy *domain.Strategy) error
	// FindStrategyByID retrieves a strategy by its ID.
	// Returns nil, nil if not found.
	FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error)
	// CountStrategies counts stored strategies.
	CountStrategies(ctx context.Context) (int, error)
}

// HealthChecker is implemented by adapters that can verify their backing store.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
