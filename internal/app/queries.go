package app

import (
	"context"
	"fmt"
	"strings"

	"scalpExecutor/internal/analytics"
	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// Overview aggregates the dashboard figures.
type Overview struct {
	TotalStrategies int                           `json:"totalStrategies"`
	TotalProfit     float64                       `json:"totalProfit"`
	PendingTrades   int                           `json:"pendingTrades"`
	OpenTrades      int                           `json:"openTrades"`
	MonitoredTrades int                           `json:"monitoredTrades"`
	StatusCounts    map[domain.TradeStatus]int    `json:"statusCounts"`
	Performance     *analytics.PerformanceMetrics `json:"performance"`
}

// ListTrades returns one page of trades and the total number of matches.
func (s *TradingService) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, int, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, fmt.Errorf("ListTrades: %w: limit and offset cannot be negative", ports.ErrValidation)
	}
	for _, st := range append(append([]domain.TradeStatus{}, filter.Statuses...), filter.ExcludeStatuses...) {
		if !st.Valid() {
			return nil, 0, fmt.Errorf("ListTrades: %w: unknown status %q", ports.ErrValidation, st)
		}
	}
	return s.trades.ListTrades(ctx, filter)
}

// GetTrade returns a single trade.
func (s *TradingService) GetTrade(ctx context.Context, id string) (*domain.Trade, error) {
	trade, err := s.trades.FindTradeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTrade: %w", err)
	}
	if trade == nil {
		return nil, fmt.Errorf("GetTrade: trade %s: %w", id, ports.ErrNotFound)
	}
	return trade, nil
}

// Overview computes the dashboard aggregates and the performance of closed trades.
func (s *TradingService) Overview(ctx context.Context) (*Overview, error) {
	op := "Overview"
	strategies, err := s.strategies.CountStrategies(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	counts, err := s.trades.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	profit, err := s.trades.GetTotalProfit(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sold, _, err := s.trades.ListTrades(ctx, ports.TradeFilter{Statuses: []domain.TradeStatus{domain.StatusSold}})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Overview{
		TotalStrategies: strategies,
		TotalProfit:     profit,
		PendingTrades:   counts[domain.StatusPending],
		OpenTrades:      counts[domain.StatusExecuted],
		MonitoredTrades: s.registry.Len(),
		StatusCounts:    counts,
		Performance:     analytics.AnalyzePerformance(sold, s.cfg.ReferenceBalance),
	}, nil
}

// ActiveMonitors lists the trades currently under supervision.
func (s *TradingService) ActiveMonitors() []MonitorInfo {
	return s.registry.Active()
}

// CreateStrategy validates and stores a strategy record. A missing ID is generated.
func (s *TradingService) CreateStrategy(ctx context.Context, strat *domain.Strategy) (*domain.Strategy, error) {
	op := "CreateStrategy"
	if strat == nil {
		return nil, fmt.Errorf("%s: %w: strategy is required", op, ports.ErrValidation)
	}
	strat.Symbol = strings.ToUpper(strings.TrimSpace(strat.Symbol))
	strat.Parameters.Action = domain.StrategyAction(strings.ToUpper(string(strat.Parameters.Action)))
	if err := strat.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrValidation, err)
	}
	if strat.ID == "" {
		strat.ID = s.newID()
	}
	if strat.CreatedAt.IsZero() {
		strat.CreatedAt = s.now()
	}
	if err := s.strategies.CreateStrategy(ctx, strat); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Info(ctx, "Strategy stored", map[string]interface{}{
		"strategyID": strat.ID,
		"symbol":     strat.Symbol,
		"action":     strat.Parameters.Action,
	})
	return strat, nil
}

// CheckHealth verifies the backing store when it supports a health check.
func (s *TradingService) CheckHealth(ctx context.Context) error {
	if hc, ok := s.trades.(ports.HealthChecker); ok {
		if err := hc.Ping(ctx); err != nil {
			return fmt.Errorf("CheckHealth: %w", err)
		}
	}
	return nil
}

// CheckConnectivity verifies the store and the exchange API.
func (s *TradingService) CheckConnectivity(ctx context.Context) error {
	if err := s.CheckHealth(ctx); err != nil {
		return err
	}
	if err := s.exchange.Ping(ctx); err != nil {
		return fmt.Errorf("CheckConnectivity: %w", err)
	}
	return nil
}
