package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "scalp-executor-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := NewRepository(Config{
		DBPath: dbPath,
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func floatPtr(v float64) *float64 { return &v }

func newStrategy(id string) *domain.Strategy {
	return &domain.Strategy{
		ID:         id,
		Symbol:     "BTCUSDT",
		Timeframe:  "1m",
		Confidence: 0.8,
		Parameters: domain.StrategyParameters{
			Action:     domain.ActionBuy,
			Price:      50000,
			Quantity:   0.01,
			StopLoss:   floatPtr(49000),
			TakeProfit: floatPtr(51200),
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func newTrade(id string, created time.Time) *domain.Trade {
	return domain.NewTrade(id, newStrategy("strat-"+id), time.Minute, created)
}

func TestRepository_StrategyRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	strat := newStrategy("s-1")
	require.NoError(t, repo.CreateStrategy(ctx, strat))

	found, err := repo.FindStrategyByID(ctx, "s-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "BTCUSDT", found.Symbol)
	assert.Equal(t, "1m", found.Timeframe)
	assert.Equal(t, domain.ActionBuy, found.Parameters.Action)
	require.NotNil(t, found.Parameters.TakeProfit)
	assert.Equal(t, 51200.0, *found.Parameters.TakeProfit)

	missing, err := repo.FindStrategyByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.CreateStrategy(ctx, newStrategy("s-1"))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	count, err := repo.CountStrategies(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRepository_StrategyMalformedParameters(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO strategies (id, symbol, parameters, created_at) VALUES (?, ?, ?, ?)`,
		"bad", "BTCUSDT", "{not json", time.Now())
	require.NoError(t, err)

	_, err = repo.FindStrategyByID(ctx, "bad")
	assert.ErrorIs(t, err, ports.ErrDecodeFailed)
}

func TestRepository_TradeLifecycle(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	trade := newTrade("t-1", now)
	require.NoError(t, repo.CreateTrade(ctx, trade))

	found, err := repo.FindTradeByID(ctx, "t-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, domain.StatusPending, found.Status)
	assert.Equal(t, time.Minute, found.HoldingDuration)
	require.NotNil(t, found.StopLoss)
	assert.Equal(t, 49000.0, *found.StopLoss)
	assert.True(t, found.EntryTime.IsZero())

	require.NoError(t, trade.MarkExecuted(50010, 0.01, now))
	trade.Metadata.ExitMode = domain.ExitModeBracket
	trade.Metadata.Bracket = &domain.BracketOrder{OrderListID: 11, TakeProfitOrderID: 12, StopLossOrderID: 13}
	require.NoError(t, repo.UpdateTrade(ctx, trade))

	require.NoError(t, trade.MarkSold(51200, domain.ExitReasonTakeProfit, 10.99, now.Add(time.Minute)))
	require.NoError(t, repo.UpdateTrade(ctx, trade))

	found, err = repo.FindTradeByID(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSold, found.Status)
	assert.Equal(t, 50010.0, found.EntryPrice)
	assert.Equal(t, 51200.0, found.ExitPrice)
	assert.Equal(t, domain.ExitReasonTakeProfit, found.ExitReason)
	assert.Equal(t, 10.99, found.Profit)
	require.NotNil(t, found.Metadata.Bracket)
	assert.Equal(t, int64(12), found.Metadata.Bracket.TakeProfitOrderID)
	assert.WithinDuration(t, now, found.EntryTime, time.Millisecond)

	total, err := repo.GetTotalProfit(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10.99, total)
}

func TestRepository_UpdateMissingTrade(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.UpdateTrade(context.Background(), newTrade("ghost", time.Now()))
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestRepository_RejectsInvalidMetadata(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	trade := newTrade("t-bad", time.Now())
	trade.Metadata.ExitMode = domain.ExitModeBracket // no bracket order
	err := repo.CreateTrade(context.Background(), trade)
	assert.ErrorIs(t, err, domain.ErrInvalidMetadata)
}

func TestRepository_ListTrades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Now().UTC()

	statuses := []domain.TradeStatus{
		domain.StatusPending, domain.StatusFailed, domain.StatusExecuted,
		domain.StatusSold, domain.StatusSellFailed, domain.StatusSold,
	}
	for i, st := range statuses {
		trade := newTrade(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second))
		trade.Status = st
		require.NoError(t, repo.CreateTrade(ctx, trade))
	}

	tests := []struct {
		name      string
		filter    ports.TradeFilter
		wantTotal int
		wantIDs   []string
	}{
		{
			name:      "all newest first",
			filter:    ports.TradeFilter{},
			wantTotal: 6,
			wantIDs:   []string{"f", "e", "d", "c", "b", "a"},
		},
		{
			name:      "exclude failures",
			filter:    ports.TradeFilter{ExcludeStatuses: []domain.TradeStatus{domain.StatusFailed, domain.StatusSellFailed}},
			wantTotal: 4,
			wantIDs:   []string{"f", "d", "c", "a"},
		},
		{
			name:      "sold only paginated",
			filter:    ports.TradeFilter{Statuses: []domain.TradeStatus{domain.StatusSold}, Limit: 1, Offset: 1},
			wantTotal: 2,
			wantIDs:   []string{"d"},
		},
		{
			name:      "unknown symbol",
			filter:    ports.TradeFilter{Symbol: "DOGEUSDT"},
			wantTotal: 0,
			wantIDs:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trades, total, err := repo.ListTrades(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)
			ids := make([]string, 0, len(trades))
			for _, tr := range trades {
				ids = append(ids, tr.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.StatusSold])
	assert.Equal(t, 1, counts[domain.StatusExecuted])
}

func TestRepository_Ping(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	assert.NoError(t, repo.Ping(context.Background()))
}
