package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scalpExecutor/internal/domain"
	"scalpExecutor/internal/ports"

	"github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeRepository and ports.StrategyRepository interfaces using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/scalp_executor.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Monitors write from many goroutines; a single connection serializes them.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Debug(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS strategies (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL DEFAULT 0,
		parameters TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		strategy_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		requested_price REAL NOT NULL,
		requested_quantity REAL NOT NULL,
		stop_loss REAL NULL,
		take_profit REAL NULL,
		holding_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		entry_price REAL NULL,
		entry_quantity REAL NULL,
		entry_time TIMESTAMP NULL,
		exit_price REAL NULL,
		exit_time TIMESTAMP NULL,
		exit_reason TEXT NULL,
		profit REAL NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_status_created ON trades (status, created_at);
	CREATE INDEX IF NOT EXISTS idx_trades_strategy ON trades (strategy_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// Ping verifies the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w: %w", ports.ErrDBConnection, err)
	}
	return nil
}

// --- StrategyRepository Implementation ---

// CreateStrategy saves a new strategy record.
func (r *Repository) CreateStrategy(ctx context.Context, s *domain.Strategy) error {
	const query = `
	INSERT INTO strategies (id, symbol, timeframe, confidence, parameters, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`

	params, err := json.Marshal(s.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters for strategy %s: %w", s.ID, err)
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, query, s.ID, s.Symbol, s.Timeframe, s.Confidence, string(params), s.CreatedAt)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("failed to insert strategy %s", s.ID))
	}
	r.logger.Debug(ctx, "Strategy created", map[string]interface{}{"strategyID": s.ID, "symbol": s.Symbol})
	return nil
}

// FindStrategyByID retrieves a strategy by its ID.
func (r *Repository) FindStrategyByID(ctx context.Context, id string) (*domain.Strategy, error) {
	const query = `
	SELECT id, symbol, timeframe, confidence, parameters, created_at
	FROM strategies WHERE id = ?`

	s := &domain.Strategy{}
	var params string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Symbol, &s.Timeframe, &s.Confidence, &params, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Strategy not found by ID", map[string]interface{}{"strategyID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query strategy %s: %w: %w", id, ports.ErrQueryFailed, err)
	}
	if err := json.Unmarshal([]byte(params), &s.Parameters); err != nil {
		return nil, fmt.Errorf("strategy %s parameters: %w: %w", id, ports.ErrDecodeFailed, err)
	}
	return s, nil
}

// CountStrategies counts stored strategies.
func (r *Repository) CountStrategies(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM strategies`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count strategies: %w: %w", ports.ErrQueryFailed, err)
	}
	return count, nil
}

// --- TradeRepository Implementation ---

const tradeColumns = `id, strategy_id, symbol, side, requested_price, requested_quantity,
	stop_loss, take_profit, holding_ms, status, entry_price, entry_quantity, entry_time,
	exit_price, exit_time, exit_reason, profit, metadata, created_at, updated_at`

// CreateTrade saves a new trade record.
func (r *Repository) CreateTrade(ctx context.Context, t *domain.Trade) error {
	query := `INSERT INTO trades (` + tradeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for trade %s: %w", t.ID, err)
	}

	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.StrategyID, t.Symbol, t.Side, t.RequestedPrice, t.RequestedQuantity,
		nullFloat(t.StopLoss), nullFloat(t.TakeProfit), t.HoldingDuration.Milliseconds(), t.Status,
		nullIfZero(t.EntryPrice), nullIfZero(t.EntryQuantity), nullTime(t.EntryTime),
		nullIfZero(t.ExitPrice), nullTime(t.ExitTime), nullString(string(t.ExitReason)), nullProfit(t),
		meta, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("failed to insert trade %s", t.ID))
	}
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": t.ID, "symbol": t.Symbol, "status": t.Status})
	return nil
}

// UpdateTrade overwrites the mutable fields of an existing trade.
func (r *Repository) UpdateTrade(ctx context.Context, t *domain.Trade) error {
	const query = `
	UPDATE trades
	SET status = ?, entry_price = ?, entry_quantity = ?, entry_time = ?,
	    exit_price = ?, exit_time = ?, exit_reason = ?, profit = ?, metadata = ?, updated_at = ?
	WHERE id = ?`

	meta, err := encodeMetadata(t.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata for trade %s: %w", t.ID, err)
	}

	result, err := r.db.ExecContext(ctx, query,
		t.Status, nullIfZero(t.EntryPrice), nullIfZero(t.EntryQuantity), nullTime(t.EntryTime),
		nullIfZero(t.ExitPrice), nullTime(t.ExitTime), nullString(string(t.ExitReason)), nullProfit(t),
		meta, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", t.ID, ports.ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for update trade %s: %w", t.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", t.ID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": t.ID, "status": t.Status})
	return nil
}

// FindTradeByID retrieves a trade by its ID.
func (r *Repository) FindTradeByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = ?`

	trade, err := scanTrade(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found by ID", map[string]interface{}{"tradeID": id})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade %s: %w", id, err)
	}
	return trade, nil
}

// ListTrades returns one page of trades, newest first, and the total match count.
func (r *Repository) ListTrades(ctx context.Context, f ports.TradeFilter) ([]*domain.Trade, int, error) {
	where, args := buildTradeFilter(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w: %w", ports.ErrQueryFailed, err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `SELECT ` + tradeColumns + ` FROM trades` + where + ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query trades: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan trade during ListTrades: %w", err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating trade rows: %w", err)
	}
	return trades, total, nil
}

// CountByStatus counts trades per status.
func (r *Repository) CountByStatus(ctx context.Context) (map[domain.TradeStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM trades GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count trades by status: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	counts := make(map[domain.TradeStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.TradeStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}
	return counts, nil
}

// GetTotalProfit sums the profit of all SOLD trades.
func (r *Repository) GetTotalProfit(ctx context.Context) (float64, error) {
	const query = `SELECT COALESCE(SUM(profit), 0) FROM trades WHERE status = ?`
	var totalProfit float64
	err := r.db.QueryRowContext(ctx, query, domain.StatusSold).Scan(&totalProfit)
	if err != nil {
		return 0, fmt.Errorf("failed to calculate total profit: %w: %w", ports.ErrQueryFailed, err)
	}
	return totalProfit, nil
}

// --- Helpers ---

func buildTradeFilter(f ports.TradeFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, s := range f.Statuses {
			args = append(args, string(s))
		}
	}
	if len(f.ExcludeStatuses) > 0 {
		clauses = append(clauses, "status NOT IN ("+placeholders(len(f.ExcludeStatuses))+")")
		for _, s := range f.ExcludeStatuses {
			args = append(args, string(s))
		}
	}
	if f.Symbol != "" {
		clauses = append(clauses, "symbol = ?")
		args = append(args, f.Symbol)
	}
	if f.StrategyID != "" {
		clauses = append(clauses, "strategy_id = ?")
		args = append(args, f.StrategyID)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// wrapWriteError maps constraint violations to ports.ErrDuplicateEntry.
func wrapWriteError(err error, msg string) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%s: %w: %w", msg, ports.ErrDuplicateEntry, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ports.ErrQueryFailed, err)
}

func encodeMetadata(m domain.TradeMetadata) (string, error) {
	if err := m.Validate(); err != nil {
		return "", err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullIfZero(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v != 0}
}

// nullProfit stores profit only once the trade has an exit.
func nullProfit(t *domain.Trade) sql.NullFloat64 {
	valid := t.Status == domain.StatusSold || t.Status == domain.StatusSellFailed
	return sql.NullFloat64{Float64: t.Profit, Valid: valid}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side, status, meta string
	var stopLoss, takeProfit sql.NullFloat64
	var entryPrice, entryQty, exitPrice, profit sql.NullFloat64
	var entryTime, exitTime sql.NullTime
	var exitReason sql.NullString
	var holdingMs int64
	err := s.Scan(
		&t.ID, &t.StrategyID, &t.Symbol, &side, &t.RequestedPrice, &t.RequestedQuantity,
		&stopLoss, &takeProfit, &holdingMs, &status, &entryPrice, &entryQty, &entryTime,
		&exitPrice, &exitTime, &exitReason, &profit, &meta, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}

	t.Side = domain.OrderSide(side)
	t.Status = domain.TradeStatus(status)
	if !t.Status.Valid() {
		return nil, fmt.Errorf("trade %s has unknown status %q: %w", t.ID, status, ports.ErrDecodeFailed)
	}
	t.HoldingDuration = time.Duration(holdingMs) * time.Millisecond
	if stopLoss.Valid {
		v := stopLoss.Float64
		t.StopLoss = &v
	}
	if takeProfit.Valid {
		v := takeProfit.Float64
		t.TakeProfit = &v
	}
	t.EntryPrice = entryPrice.Float64
	t.EntryQuantity = entryQty.Float64
	if entryTime.Valid {
		t.EntryTime = entryTime.Time
	}
	t.ExitPrice = exitPrice.Float64
	if exitTime.Valid {
		t.ExitTime = exitTime.Time
	}
	t.ExitReason = domain.ExitReason(exitReason.String)
	t.Profit = profit.Float64

	if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
		return nil, fmt.Errorf("trade %s metadata: %w: %w", t.ID, ports.ErrDecodeFailed, err)
	}
	if err := t.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("trade %s metadata: %w: %w", t.ID, ports.ErrDecodeFailed, err)
	}
	return t, nil
}
