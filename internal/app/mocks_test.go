package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"scalpExecutor/config"
	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

func (m *mockLogger) hasWarn(substr string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.warnMsgs {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

type mockExchange struct {
	mu sync.Mutex

	serverTimeErr error
	pingErr       error

	filters     *ports.InstrumentFilters
	filtersErr  error
	filterCalls int

	prices     []float64 // Returned in order; the last one repeats
	priceErr   error
	priceCalls int

	buyResp       *ports.OrderResponse
	buyErr        error
	buyQuantities []string

	sellResp       *ports.OrderResponse
	sellErr        error
	sellQuantities []string

	bracket     *domain.BracketOrder
	bracketErr  error
	bracketReqs []ports.BracketOrderRequest

	statuses    []*ports.BracketStatus // Returned in order; the last one repeats
	statusErr   error
	statusCalls int

	cancelErr   error
	cancelCalls int
}

func (m *mockExchange) SetServerTime(ctx context.Context) error {
	return m.serverTimeErr
}

func (m *mockExchange) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockExchange) GetTickerPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceCalls++
	if m.priceErr != nil {
		return 0, m.priceErr
	}
	if len(m.prices) == 0 {
		return 0, fmt.Errorf("no price configured")
	}
	p := m.prices[0]
	if len(m.prices) > 1 {
		m.prices = m.prices[1:]
	}
	return p, nil
}

func (m *mockExchange) GetInstrumentFilters(ctx context.Context, symbol string) (*ports.InstrumentFilters, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filterCalls++
	if m.filtersErr != nil {
		return nil, m.filtersErr
	}
	if m.filters == nil {
		return nil, ports.ErrSymbolNotFound
	}
	f := *m.filters
	return &f, nil
}

func (m *mockExchange) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity string) (*ports.OrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if side == domain.Buy {
		m.buyQuantities = append(m.buyQuantities, quantity)
		return m.buyResp, m.buyErr
	}
	m.sellQuantities = append(m.sellQuantities, quantity)
	return m.sellResp, m.sellErr
}

func (m *mockExchange) CreateBracketOrder(ctx context.Context, req ports.BracketOrderRequest) (*domain.BracketOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bracketReqs = append(m.bracketReqs, req)
	if m.bracketErr != nil {
		return nil, m.bracketErr
	}
	return m.bracket, nil
}

func (m *mockExchange) GetBracketOrderStatus(ctx context.Context, symbol string, bracket domain.BracketOrder) (*ports.BracketStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	if len(m.statuses) == 0 {
		return &ports.BracketStatus{}, nil
	}
	st := m.statuses[0]
	if len(m.statuses) > 1 {
		m.statuses = m.statuses[1:]
	}
	return st, nil
}

func (m *mockExchange) CancelBracketOrder(ctx context.Context, symbol string, bracket domain.BracketOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	return m.cancelErr
}

func (m *mockExchange) sells() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sellQuantities)
}

func (m *mockExchange) priceCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceCalls
}

type mockTradeRepo struct {
	mu          sync.Mutex
	trades      map[string]*domain.Trade
	transitions map[string][]domain.TradeStatus
	createErr   error
	updateErr   error
	pingErr     error
}

func newMockTradeRepo() *mockTradeRepo {
	return &mockTradeRepo{
		trades:      make(map[string]*domain.Trade),
		transitions: make(map[string][]domain.TradeStatus),
	}
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.trades[trade.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	m.trades[trade.ID] = trade.Clone()
	m.transitions[trade.ID] = []domain.TradeStatus{trade.Status}
	return nil
}

func (m *mockTradeRepo) UpdateTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	prev, ok := m.trades[trade.ID]
	if !ok {
		return ports.ErrNotFound
	}
	if prev.Status != trade.Status {
		m.transitions[trade.ID] = append(m.transitions[trade.ID], trade.Status)
	}
	m.trades[trade.ID] = trade.Clone()
	return nil
}

func (m *mockTradeRepo) FindTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (m *mockTradeRepo) ListTrades(ctx context.Context, filter ports.TradeFilter) ([]*domain.Trade, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Trade
	for _, t := range m.trades {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
			continue
		}
		if containsStatus(filter.ExcludeStatuses, t.Status) {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, len(out), nil
}

func (m *mockTradeRepo) CountByStatus(ctx context.Context) (map[domain.TradeStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.TradeStatus]int)
	for _, t := range m.trades {
		counts[t.Status]++
	}
	return counts, nil
}

func (m *mockTradeRepo) GetTotalProfit(ctx context.Context) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, t := range m.trades {
		if t.Status == domain.StatusSold {
			total += t.Profit
		}
	}
	return total, nil
}

func (m *mockTradeRepo) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockTradeRepo) get(id string) *domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trades[id]; ok {
		return t.Clone()
	}
	return nil
}

func (m *mockTradeRepo) history(id string) []domain.TradeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TradeStatus(nil), m.transitions[id]...)
}

func containsStatus(list []domain.TradeStatus, s domain.TradeStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type mockStrategyRepo struct {
	mu         sync.Mutex
	strategies map[string]*domain.Strategy
	findErr    error
}

func (m *mockStrategyRepo) CreateStrategy(ctx context.Context, strategy *domain.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.strategies == nil {
		m.strategies = make(map[string]*domain.Strategy)
	}
	if _, ok := m.strategies[strategy.ID]; ok {
		return ports.ErrDuplicateEntry
	}
	m.strategies[strategy.ID] = strategy
	return nil
}

func (m *mockStrategyRepo) FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.strategies[id], nil
}

func (m *mockStrategyRepo) CountStrategies(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.strategies), nil
}

type mockGate struct {
	mu       sync.Mutex
	admitErr error
	admitted int
	released []domain.TradeStatus
}

func (m *mockGate) Admit(ctx context.Context, req ports.AdmissionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.admitErr != nil {
		return m.admitErr
	}
	m.admitted++
	return nil
}

func (m *mockGate) Release(ctx context.Context, trade *domain.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, trade.Status)
}

func (m *mockGate) releases() []domain.TradeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TradeStatus(nil), m.released...)
}

type mockReporter struct {
	mu       sync.Mutex
	feedback []domain.Feedback
	err      error
}

func (m *mockReporter) Report(ctx context.Context, fb domain.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, fb)
	return m.err
}

func (m *mockReporter) statuses() []domain.TradeStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TradeStatus, 0, len(m.feedback))
	for _, fb := range m.feedback {
		out = append(out, fb.Status)
	}
	return out
}

func (m *mockReporter) last() domain.Feedback {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feedback[len(m.feedback)-1]
}

// --- Fixtures ---

const testTradeID = "trade-1"

type testEnv struct {
	svc        *TradingService
	logger     *mockLogger
	exchange   *mockExchange
	trades     *mockTradeRepo
	strategies *mockStrategyRepo
	gate       *mockGate
	reporter   *mockReporter
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultHoldingDuration: time.Minute,
		PriceCheckInterval:     5 * time.Millisecond,
		BracketPollInterval:    5 * time.Millisecond,
		OrderTimeout:           time.Second,
		FeeRate:                0.001,
		FilterCacheTTL:         time.Minute,
		ReferenceBalance:       1000,
	}
}

func btcFilters() *ports.InstrumentFilters {
	return &ports.InstrumentFilters{Symbol: "BTCUSDT", StepSize: 0.00001, MinQty: 0.00001, MaxQty: 9000, TickSize: 0.01}
}

func floatPtr(v float64) *float64 { return &v }

func buyStrategy(id string, sl, tp *float64) *domain.Strategy {
	return &domain.Strategy{
		ID:         id,
		Symbol:     "BTCUSDT",
		Timeframe:  "1m",
		Confidence: 0.9,
		Parameters: domain.StrategyParameters{
			Action:     domain.ActionBuy,
			Price:      50000,
			Quantity:   0.01,
			StopLoss:   sl,
			TakeProfit: tp,
		},
	}
}

func newTestEnv(t *testing.T, ex *mockExchange, cfg *config.Config, strategies ...*domain.Strategy) *testEnv {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	env := &testEnv{
		logger:     &mockLogger{},
		exchange:   ex,
		trades:     newMockTradeRepo(),
		strategies: &mockStrategyRepo{strategies: make(map[string]*domain.Strategy)},
		gate:       &mockGate{},
		reporter:   &mockReporter{},
	}
	for _, s := range strategies {
		env.strategies.strategies[s.ID] = s
	}
	svc, err := NewTradingService(cfg, env.logger, ex, env.trades, env.strategies, env.gate, env.reporter)
	require.NoError(t, err)
	svc.newID = func() string { return testTradeID }
	env.svc = svc
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return env
}

// waitForStatus waits until the stored trade reaches want, then lets the
// monitor goroutines finish their bookkeeping.
func (e *testEnv) waitForStatus(t *testing.T, id string, want domain.TradeStatus) *domain.Trade {
	t.Helper()
	require.Eventually(t, func() bool {
		tr := e.trades.get(id)
		return tr != nil && tr.Status == want
	}, 2*time.Second, 2*time.Millisecond, "trade %s never reached %s", id, want)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.svc.Shutdown(ctx))
	return e.trades.get(id)
}

// assertLifecycle checks that every observed transition is part of the trade graph.
func assertLifecycle(t *testing.T, history []domain.TradeStatus) {
	t.Helper()
	allowed := map[domain.TradeStatus][]domain.TradeStatus{
		domain.StatusPending:  {domain.StatusExecuted, domain.StatusFailed},
		domain.StatusExecuted: {domain.StatusSold, domain.StatusSellFailed},
	}
	require.NotEmpty(t, history)
	require.Equal(t, domain.StatusPending, history[0])
	for i := 1; i < len(history); i++ {
		require.Contains(t, allowed[history[i-1]], history[i], "illegal transition %s -> %s", history[i-1], history[i])
	}
}
