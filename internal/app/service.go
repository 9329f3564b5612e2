package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scalpExecutor/config"
	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"

	"github.com/google/uuid"
)

// ExecutionResult is the synchronous answer to an execute-strategy request.
type ExecutionResult struct {
	Trade   *domain.Trade
	Ignored bool   // The strategy action is not an entry signal; no trade was created
	Message string
}

// TradingService turns strategy signals into trades and supervises every open
// trade until it is closed.
type TradingService struct {
	cfg        *config.Config
	logger     ports.Logger
	exchange   ports.ExchangeClient
	trades     ports.TradeRepository
	strategies ports.StrategyRepository
	gate       ports.AdmissionGate
	reporter   ports.FeedbackReporter
	normalizer *QuantityNormalizer
	registry   *MonitorRegistry

	now   func() time.Time
	newID func() string

	mu      sync.Mutex // Orders monitor registration against Shutdown
	stopped bool
	wg      sync.WaitGroup
}

// NewTradingService creates a new application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	trades ports.TradeRepository,
	strategies ports.StrategyRepository,
	gate ports.AdmissionGate,
	reporter ports.FeedbackReporter,
) (*TradingService, error) {

	// Validate dependencies
	if cfg == nil || logger == nil || exchange == nil || trades == nil || strategies == nil || gate == nil || reporter == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}

	// Validate config values needed by service
	if cfg.DefaultHoldingDuration <= 0 {
		return nil, fmt.Errorf("configuration DefaultHoldingDuration must be positive")
	}
	if cfg.PriceCheckInterval <= 0 || cfg.BracketPollInterval <= 0 {
		return nil, fmt.Errorf("configuration polling intervals must be positive")
	}
	if cfg.OrderTimeout <= 0 {
		return nil, fmt.Errorf("configuration OrderTimeout must be positive")
	}
	if cfg.FeeRate < 0 || cfg.FeeRate >= 1 {
		return nil, fmt.Errorf("configuration FeeRate must be within [0, 1)")
	}

	return &TradingService{
		cfg:        cfg,
		logger:     logger,
		exchange:   exchange,
		trades:     trades,
		strategies: strategies,
		gate:       gate,
		reporter:   reporter,
		normalizer: NewQuantityNormalizer(exchange, logger, cfg.FilterCacheTTL),
		registry:   NewMonitorRegistry(),
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}, nil
}

// Start prepares the service for trading. It does not block.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	// Set server time (important for signed API calls)
	if err := s.exchange.SetServerTime(ctx); err != nil {
		s.logger.Error(ctx, err, "Failed to synchronize server time")
		return fmt.Errorf("failed to set server time: %w", err)
	}
	s.logger.Info(ctx, "Server time synchronized")

	// Supervision does not survive a restart. Surface what was left behind.
	orphans, _, err := s.trades.ListTrades(ctx, ports.TradeFilter{Statuses: []domain.TradeStatus{domain.StatusExecuted}})
	if err != nil {
		s.logger.Error(ctx, err, "Failed to look up executed trades")
		return fmt.Errorf("failed to query executed trades: %w", err)
	}
	for _, t := range orphans {
		if s.registry.Has(t.ID) {
			continue
		}
		s.logger.Warn(ctx, "Executed trade has no active monitor; position needs manual reconciliation", map[string]interface{}{
			"tradeID":   t.ID,
			"symbol":    t.Symbol,
			"entryTime": t.EntryTime,
			"quantity":  t.EntryQuantity,
			"exitMode":  t.Metadata.ExitMode,
		})
	}

	s.logger.Info(ctx, "Trading Service started", map[string]interface{}{"unsupervisedTrades": len(orphans)})
	return nil
}

// Shutdown cancels every monitor and waits for in-flight exits until ctx is done.
func (s *TradingService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	cancelled := s.registry.CancelAll()
	s.mu.Unlock()

	s.logger.Info(ctx, "Cancelled trade monitors", map[string]interface{}{"count": cancelled})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info(ctx, "Trading Service stopped.")
		return nil
	case <-ctx.Done():
		s.logger.Warn(ctx, "Timeout waiting for trade monitors to stop")
		return fmt.Errorf("shutdown: %w: %w", ports.ErrTimeout, ctx.Err())
	}
}

func (s *TradingService) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// ExecuteStrategy buys according to the stored strategy and starts supervising
// the position. A zero holding duration selects the configured default.
func (s *TradingService) ExecuteStrategy(ctx context.Context, strategyID string, holding time.Duration) (*ExecutionResult, error) {
	op := "ExecuteStrategy"
	strategyID = strings.TrimSpace(strategyID)
	if strategyID == "" {
		return nil, fmt.Errorf("%s: %w: strategy id is required", op, ports.ErrValidation)
	}
	if holding < 0 {
		return nil, fmt.Errorf("%s: %w: holding duration cannot be negative", op, ports.ErrValidation)
	}
	if holding == 0 {
		holding = s.cfg.DefaultHoldingDuration
	}
	if s.isStopped() {
		return nil, fmt.Errorf("%s: %w", op, ports.ErrServiceStopped)
	}

	strat, err := s.strategies.FindStrategyByID(ctx, strategyID)
	if err != nil {
		if errors.Is(err, ports.ErrDecodeFailed) {
			return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrValidation, err)
		}
		return nil, fmt.Errorf("%s: load strategy: %w", op, err)
	}
	if strat == nil {
		return nil, fmt.Errorf("%s: strategy %s: %w", op, strategyID, ports.ErrNotFound)
	}
	if err := strat.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrValidation, err)
	}

	fields := map[string]interface{}{"strategyID": strat.ID, "symbol": strat.Symbol, "action": strat.Parameters.Action}
	if strat.Parameters.Action != domain.ActionBuy {
		s.logger.Info(ctx, op+": Ignoring non-entry signal", fields)
		return &ExecutionResult{
			Ignored: true,
			Message: fmt.Sprintf("strategy action %s is not an entry signal", strat.Parameters.Action),
		}, nil
	}

	if err := s.gate.Admit(ctx, ports.AdmissionRequest{
		StrategyID: strat.ID,
		Symbol:     strat.Symbol,
		Price:      strat.Parameters.Price,
		Quantity:   strat.Parameters.Quantity,
	}); err != nil {
		s.logger.Warn(ctx, op+": Trade rejected by admission gate", fields)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trade := domain.NewTrade(s.newID(), strat, holding, s.now())
	if err := s.trades.CreateTrade(ctx, trade); err != nil {
		s.gate.Release(ctx, trade)
		return nil, fmt.Errorf("%s: persist trade: %w", op, err)
	}
	fields["tradeID"] = trade.ID
	s.logger.Info(ctx, op+": Trade created", fields)

	// The buy must not be abandoned halfway because the caller went away.
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OrderTimeout)
	defer cancel()
	return s.executeBuy(execCtx, trade)
}

// executeBuy places the entry order, selects the exit strategy and hands the
// trade to its monitor.
func (s *TradingService) executeBuy(ctx context.Context, trade *domain.Trade) (*ExecutionResult, error) {
	op := "executeBuy"
	fields := map[string]interface{}{"tradeID": trade.ID, "symbol": trade.Symbol}

	qty := s.normalizer.Normalize(ctx, trade.Symbol, trade.RequestedQuantity)
	fields["quantity"] = qty.Text

	s.logger.Info(ctx, op+": Placing entry market order...", fields)
	order, err := s.exchange.PlaceMarketOrder(ctx, trade.Symbol, domain.Buy, qty.Text)
	if err != nil {
		s.logger.Error(ctx, err, op+": Failed to place entry market order", fields)
		s.failTrade(ctx, trade, fmt.Sprintf("buy order failed: %v", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrOrderPlacementFailed, err)
	}

	// Use the actual fill if reported, otherwise fall back to the request
	fillPrice := order.AvgPrice
	if fillPrice <= 0 {
		s.logger.Warn(ctx, op+": Entry order AvgPrice is 0, using requested price as fallback", map[string]interface{}{"orderID": order.OrderID, "fallbackPrice": trade.RequestedPrice})
		fillPrice = trade.RequestedPrice
	}
	fillQty := order.ExecutedQty
	if fillQty <= 0 {
		fillQty = qty.Value
	}
	trade.Metadata.BuyOrderID = order.OrderID
	fields["orderID"] = order.OrderID
	fields["fillPrice"] = fillPrice
	fields["fillQty"] = fillQty
	s.logger.Info(ctx, op+": Entry order filled", fields)

	exit, err := s.selectExitStrategy(ctx, trade, fillQty)
	if err != nil {
		// The buy went through; keep the fill so the open position can be found.
		trade.Metadata.FillPrice = fillPrice
		trade.Metadata.FillQuantity = fillQty
		s.logger.Error(ctx, err, op+": Bracket order failed after entry; position is unprotected", fields)
		s.failTrade(ctx, trade, fmt.Sprintf("bracket order failed: %v", err))
		return nil, fmt.Errorf("%s: %w: %w", op, ports.ErrOrderPlacementFailed, err)
	}

	if err := trade.MarkExecuted(fillPrice, fillQty, s.now()); err != nil {
		s.logger.Error(ctx, err, op+": Unexpected trade state", fields)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	exit.apply(&trade.Metadata)

	if err := s.trades.UpdateTrade(ctx, trade); err != nil {
		// The exchange is the source of truth; keep supervising.
		s.logger.Error(ctx, err, op+": Failed to persist executed trade", fields)
	}
	s.report(ctx, trade)

	if err := s.supervise(ctx, trade.Clone(), exit); err != nil {
		s.logger.Error(ctx, err, op+": Failed to start trade monitor; position is unsupervised", fields)
	}

	return &ExecutionResult{Trade: trade.Clone()}, nil
}

// failTrade moves a PENDING trade to FAILED, persists it and reports it.
func (s *TradingService) failTrade(ctx context.Context, trade *domain.Trade, cause string) {
	if err := trade.MarkFailed(cause, s.now()); err != nil {
		s.logger.Error(ctx, err, "Unexpected trade state while failing trade", map[string]interface{}{"tradeID": trade.ID})
		return
	}
	s.settle(ctx, trade)
}

// supervise registers the trade and starts its monitor goroutine.
func (s *TradingService) supervise(ctx context.Context, trade *domain.Trade, exit ExitStrategy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ports.ErrServiceStopped
	}

	// Keep request-scoped values for logging but not the request's cancellation.
	monitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	info := MonitorInfo{
		TradeID:   trade.ID,
		Symbol:    trade.Symbol,
		Mode:      exit.Mode(),
		Deadline:  trade.HoldingDeadline(),
		StartedAt: s.now(),
	}
	if err := s.registry.Register(info, cancel); err != nil {
		cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		exit.supervise(monitorCtx, s, trade)
	}()

	s.logger.Info(ctx, "Trade monitor started", map[string]interface{}{
		"tradeID":  trade.ID,
		"mode":     info.Mode,
		"deadline": info.Deadline,
	})
	return nil
}

// untilDeadline is the time left before the trade's holding duration elapses.
func (s *TradingService) untilDeadline(trade *domain.Trade) time.Duration {
	return trade.HoldingDeadline().Sub(s.now())
}

// exitContext detaches an exit from the monitor's cancellation. Claiming a
// trade cancels its monitor, and the exit it commits to must still run.
func (s *TradingService) exitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OrderTimeout)
}

// report sends feedback for the trade's current state. Failures are logged only.
func (s *TradingService) report(ctx context.Context, trade *domain.Trade) {
	fb := domain.FeedbackFor(trade)
	if err := s.reporter.Report(context.WithoutCancel(ctx), fb); err != nil {
		s.logger.Warn(ctx, "Failed to deliver trade feedback", map[string]interface{}{
			"tradeID": trade.ID,
			"status":  trade.Status,
			"error":   err.Error(),
		})
	}
}
