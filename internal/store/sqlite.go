// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"momentum-lens/internal/errors"
	"momentum-lens/internal/models"
)

const metaLastRotation = "last_rotation_date"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Bounded rotation journal
	CREATE TABLE IF NOT EXISTS trade_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		name TEXT,
		action TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		old_score REAL,
		new_score REAL,
		reason TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-code holding entry dates
	CREATE TABLE IF NOT EXISTS entry_dates (
		code TEXT PRIMARY KEY,
		entry_date DATETIME NOT NULL
	);

	-- Key/value metadata (last rotation date)
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Idempotency keys; the PRIMARY KEY makes check-and-insert atomic
	CREATE TABLE IF NOT EXISTS order_keys (
		key TEXT PRIMARY KEY,
		trade_date DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Limit orders
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		code TEXT NOT NULL,
		name TEXT,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		target_weight REAL,
		limit_price REAL NOT NULL,
		band_lower REAL NOT NULL,
		band_upper REAL NOT NULL,
		iopv REAL,
		window TEXT NOT NULL,
		placed_at DATETIME NOT NULL,
		expire_time DATETIME NOT NULL,
		status TEXT NOT NULL,
		filled_qty INTEGER DEFAULT 0,
		fill_price REAL DEFAULT 0,
		filled_at DATETIME,
		reason TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_orders_status_window ON orders(status, window);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);

	-- Candle cache
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume INTEGER NOT NULL,
		UNIQUE(code, timestamp)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// LoadRotationHistory reads the journal, entry dates, and last rotation
// date in one call.
func (s *SQLiteStore) LoadRotationHistory(ctx context.Context) (*RotationHistory, error) {
	history := &RotationHistory{
		EntryDates: make(map[string]time.Time),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT code, name, action, timestamp, old_score, new_score, reason
		 FROM trade_records ORDER BY id ASC`)
	if err != nil {
		return nil, errors.NewStoreError("load_history", "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec models.TradeRecord
		var name, reason sql.NullString
		if err := rows.Scan(&rec.Code, &name, &rec.Action, &rec.Timestamp, &rec.OldScore, &rec.NewScore, &reason); err != nil {
			return nil, errors.NewStoreError("load_history", "", err)
		}
		rec.Name = name.String
		rec.Reason = reason.String
		history.Trades = append(history.Trades, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("load_history", "", err)
	}

	entryRows, err := s.db.QueryContext(ctx, `SELECT code, entry_date FROM entry_dates`)
	if err != nil {
		return nil, errors.NewStoreError("load_entry_dates", "", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		var code string
		var date time.Time
		if err := entryRows.Scan(&code, &date); err != nil {
			return nil, errors.NewStoreError("load_entry_dates", "", err)
		}
		history.EntryDates[code] = date
	}
	if err := entryRows.Err(); err != nil {
		return nil, errors.NewStoreError("load_entry_dates", "", err)
	}

	var value string
	err = s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastRotation).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, errors.NewStoreError("load_meta", metaLastRotation, err)
	default:
		if t, perr := time.Parse(time.RFC3339, value); perr == nil {
			history.LastRotation = &t
		}
	}

	return history, nil
}

// AppendTradeRecord appends one record and trims the journal to the most
// recent keep entries.
func (s *SQLiteStore) AppendTradeRecord(ctx context.Context, rec models.TradeRecord, keep int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("append_trade", rec.Code, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trade_records (code, name, action, timestamp, old_score, new_score, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Code, rec.Name, string(rec.Action), rec.Timestamp, rec.OldScore, rec.NewScore, rec.Reason)
	if err != nil {
		return errors.NewStoreError("append_trade", rec.Code, err)
	}

	if keep > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM trade_records WHERE id NOT IN
			 (SELECT id FROM trade_records ORDER BY id DESC LIMIT ?)`, keep)
		if err != nil {
			return errors.NewStoreError("trim_trades", rec.Code, err)
		}
	}

	return tx.Commit()
}

// SetEntryDate records the holding entry date for a code.
func (s *SQLiteStore) SetEntryDate(ctx context.Context, code string, date time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entry_dates (code, entry_date) VALUES (?, ?)
		 ON CONFLICT(code) DO UPDATE SET entry_date = excluded.entry_date`,
		code, date)
	if err != nil {
		return errors.NewStoreError("set_entry_date", code, err)
	}
	return nil
}

// ClearEntryDate removes the holding entry date for a code.
func (s *SQLiteStore) ClearEntryDate(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entry_dates WHERE code = ?`, code)
	if err != nil {
		return errors.NewStoreError("clear_entry_date", code, err)
	}
	return nil
}

// SetLastRotation records the timestamp of the most recent rotation.
func (s *SQLiteStore) SetLastRotation(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastRotation, t.Format(time.RFC3339))
	if err != nil {
		return errors.NewStoreError("set_last_rotation", metaLastRotation, err)
	}
	return nil
}

// CheckAndInsertOrderKey atomically claims an idempotency key. It returns
// true when this call inserted the key and false when the key already
// existed. INSERT OR IGNORE against the primary key makes two concurrent
// callers race-safe.
func (s *SQLiteStore) CheckAndInsertOrderKey(ctx context.Context, key string, tradeDate time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO order_keys (key, trade_date) VALUES (?, ?)`,
		key, tradeDate)
	if err != nil {
		return false, errors.NewStoreError("check_and_insert_key", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStoreError("check_and_insert_key", key, err)
	}
	return n == 1, nil
}

// ReleaseOrderKey frees a claimed idempotency key. Only keys whose order
// row was never written may be released; otherwise the key guards nothing.
func (s *SQLiteStore) ReleaseOrderKey(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM order_keys WHERE key = ?`, key)
	if err != nil {
		return errors.NewStoreError("release_order_key", key, err)
	}
	return nil
}

// SaveOrder persists a limit order.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *models.LimitOrder) error {
	var filledAt sql.NullTime
	if order.FilledAt != nil {
		filledAt = sql.NullTime{Time: *order.FilledAt, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, idempotency_key, code, name, side, quantity, target_weight,
		 limit_price, band_lower, band_upper, iopv, window, placed_at, expire_time, status,
		 filled_qty, fill_price, filled_at, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.IdempotencyKey, order.Code, order.Name, string(order.Side),
		order.Quantity, order.TargetWeight, order.LimitPrice, order.BandLower, order.BandUpper,
		order.IOPVAtOrder, string(order.Window), order.PlacedAt, order.ExpireTime,
		string(order.Status), order.FilledQty, order.FillPrice, filledAt, order.Reason)
	if err != nil {
		return errors.NewStoreError("save_order", order.ID, err)
	}
	return nil
}

// UpdateOrderFill marks an order filled (or partially updated) with its
// execution details.
func (s *SQLiteStore) UpdateOrderFill(ctx context.Context, orderID string, status models.OrderStatus, fillPrice float64, filledQty int, filledAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, fill_price = ?, filled_qty = ?, filled_at = ? WHERE id = ?`,
		string(status), fillPrice, filledQty, filledAt, orderID)
	if err != nil {
		return errors.NewStoreError("update_order_fill", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrOrderNotFound
	}
	return nil
}

// UpdateOrderStatus changes an order's status only.
func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ?`, string(status), orderID)
	if err != nil {
		return errors.NewStoreError("update_order_status", orderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrOrderNotFound
	}
	return nil
}

// PendingOrders returns all PENDING orders for a window.
func (s *SQLiteStore) PendingOrders(ctx context.Context, window models.ExecutionWindow) ([]models.LimitOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		orderSelect+` WHERE status = ? AND window = ? ORDER BY placed_at ASC`,
		string(models.OrderPending), string(window))
	if err != nil {
		return nil, errors.NewStoreError("pending_orders", string(window), err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

// OrdersForDay returns all orders placed on the given day.
func (s *SQLiteStore) OrdersForDay(ctx context.Context, day time.Time) ([]models.LimitOrder, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	rows, err := s.db.QueryContext(ctx,
		orderSelect+` WHERE placed_at >= ? AND placed_at < ? ORDER BY placed_at ASC`,
		start, end)
	if err != nil {
		return nil, errors.NewStoreError("orders_for_day", start.Format("2006-01-02"), err)
	}
	defer rows.Close()
	return scanOrders(rows)
}

const orderSelect = `SELECT id, idempotency_key, code, name, side, quantity, target_weight,
	limit_price, band_lower, band_upper, iopv, window, placed_at, expire_time, status,
	filled_qty, fill_price, filled_at, reason FROM orders`

func scanOrders(rows *sql.Rows) ([]models.LimitOrder, error) {
	var orders []models.LimitOrder
	for rows.Next() {
		var o models.LimitOrder
		var name, reason sql.NullString
		var side, window, status string
		var filledAt sql.NullTime
		if err := rows.Scan(&o.ID, &o.IdempotencyKey, &o.Code, &name, &side, &o.Quantity,
			&o.TargetWeight, &o.LimitPrice, &o.BandLower, &o.BandUpper, &o.IOPVAtOrder,
			&window, &o.PlacedAt, &o.ExpireTime, &status, &o.FilledQty, &o.FillPrice,
			&filledAt, &reason); err != nil {
			return nil, errors.NewStoreError("scan_order", "", err)
		}
		o.Name = name.String
		o.Reason = reason.String
		o.Side = models.OrderSide(side)
		o.Window = models.ExecutionWindow(window)
		o.Status = models.OrderStatus(status)
		if filledAt.Valid {
			t := filledAt.Time
			o.FilledAt = &t
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("scan_order", "", err)
	}
	return orders, nil
}

// SaveCandles upserts daily candles for a code.
func (s *SQLiteStore) SaveCandles(ctx context.Context, code string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewStoreError("save_candles", code, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO candles (code, timestamp, open, high, low, close, volume)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(code, timestamp) DO UPDATE SET
		 open = excluded.open, high = excluded.high, low = excluded.low,
		 close = excluded.close, volume = excluded.volume`)
	if err != nil {
		return errors.NewStoreError("save_candles", code, err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, code, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return errors.NewStoreError("save_candles", code, err)
		}
	}

	return tx.Commit()
}

// GetCandles returns cached candles for a code in [from, to] order by date.
func (s *SQLiteStore) GetCandles(ctx context.Context, code string, from, to time.Time) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT timestamp, open, high, low, close, volume FROM candles
		 WHERE code = ? AND timestamp >= ? AND timestamp <= ?
		 ORDER BY timestamp ASC`, code, from, to)
	if err != nil {
		return nil, errors.NewStoreError("get_candles", code, err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, errors.NewStoreError("get_candles", code, err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("get_candles", code, err)
	}
	return candles, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
