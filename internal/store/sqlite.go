package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/law-makers/ordercrawl/pkg/models"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite" // SQLite driver
)

const (
	metaLastModified = "last_modified"

	// fixed width so that text comparison orders timestamps
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStore implements Store on a single SQLite file.
//
// Writes go straight to disk; there is no in-memory write-back buffer, so
// every completed order survives a crash.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the store at path
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	// One writer; the crawler is single-threaded anyway
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, path: path}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Debug().Str("path", path).Msg("Store opened")
	return s, nil
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- listed marks years present in the most recent year selector
	CREATE TABLE IF NOT EXISTS years (
		year INTEGER PRIMARY KEY,
		listed INTEGER NOT NULL DEFAULT 0,
		order_count INTEGER,
		checked INTEGER NOT NULL DEFAULT 0,
		resume_page INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pages (
		year INTEGER NOT NULL,
		page INTEGER NOT NULL,
		checked_at TEXT NOT NULL,
		PRIMARY KEY (year, page)
	);

	CREATE TABLE IF NOT EXISTS orders (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		order_number TEXT NOT NULL UNIQUE,
		year INTEGER NOT NULL,
		order_date TEXT NOT NULL,
		seller_name TEXT NOT NULL,
		seen_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_orders_year ON orders(year, order_date);

	CREATE TABLE IF NOT EXISTS items (
		order_number TEXT NOT NULL REFERENCES orders(order_number) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		price INTEGER NOT NULL,
		count INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		url TEXT,
		category TEXT,
		seller_name TEXT NOT NULL,
		order_date TEXT NOT NULL,
		thumbnail_ref TEXT,
		include_tax INTEGER,
		PRIMARY KEY (order_number, position)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ensureYear inserts a year row if missing
func ensureYear(ctx context.Context, ex execer, year int) error {
	_, err := ex.ExecContext(ctx, `INSERT OR IGNORE INTO years (year) VALUES (?)`, year)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) YearList(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT year FROM years WHERE listed = 1 ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

func (s *SQLiteStore) SetYearList(ctx context.Context, years []int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE years SET listed = 0`); err != nil {
		return err
	}
	for _, y := range years {
		if err := ensureYear(ctx, tx, y); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE years SET listed = 1 WHERE year = ?`, y); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) OrderCount(ctx context.Context, year int) (int, bool, error) {
	var n sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT order_count FROM years WHERE year = ?`, year).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query order count: %w", err)
	}
	return int(n.Int64), n.Valid, nil
}

func (s *SQLiteStore) SetOrderCount(ctx context.Context, year, count int) error {
	if err := ensureYear(ctx, s.db, year); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE years SET order_count = ? WHERE year = ?`, count, year)
	return err
}

func (s *SQLiteStore) TotalOrderCount(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(order_count), 0) FROM years WHERE listed = 1`).Scan(&total)
	return total, err
}

func (s *SQLiteStore) PageChecked(ctx context.Context, year, page int) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pages WHERE year = ? AND page = ?`, year, page).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) SetPageChecked(ctx context.Context, year, page int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pages (year, page, checked_at) VALUES (?, ?, ?)`,
		year, page, time.Now().Format(timeLayout))
	return err
}

func (s *SQLiteStore) YearChecked(ctx context.Context, year int) (bool, error) {
	var checked int
	err := s.db.QueryRowContext(ctx, `SELECT checked FROM years WHERE year = ?`, year).Scan(&checked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return checked == 1, err
}

func (s *SQLiteStore) SetYearChecked(ctx context.Context, year int) error {
	if err := ensureYear(ctx, s.db, year); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE years SET checked = 1 WHERE year = ?`, year)
	return err
}

func (s *SQLiteStore) OrderSeen(ctx context.Context, orderNumber string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE order_number = ?`, orderNumber).Scan(&n)
	return n > 0, err
}

func (s *SQLiteStore) MarkOrderSeen(ctx context.Context, order models.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO orders (order_number, year, order_date, seller_name, seen_at)
		VALUES (?, ?, ?, ?, ?)`,
		order.OrderNumber, order.Year(), order.Date.Format(timeLayout), order.SellerName,
		time.Now().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		log.Debug().Str("order", order.OrderNumber).Msg("Order already seen")
		return nil
	}

	for i, item := range order.Items {
		category, err := json.Marshal(item.Category())
		if err != nil {
			return fmt.Errorf("failed to serialize category: %w", err)
		}
		var tax sql.NullBool
		if v, ok := item.IncludeTax(); ok {
			tax = sql.NullBool{Bool: v, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO items (order_number, position, name, price, count, product_id, url,
				category, seller_name, order_date, thumbnail_ref, include_tax)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			order.OrderNumber, i, item.Name(), item.Price(), item.Count(), item.ProductID(),
			item.URL(), string(category), item.SellerName(), item.OrderDate().Format(timeLayout),
			item.ThumbnailRef(), tax)
		if err != nil {
			return fmt.Errorf("failed to insert item %d of %s: %w", i, order.OrderNumber, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LastItem(ctx context.Context, year int) (*LastOrder, error) {
	var no, date string
	err := s.db.QueryRowContext(ctx, `
		SELECT order_number, order_date FROM orders
		WHERE year = ? ORDER BY order_date DESC, seq ASC LIMIT 1`, year).Scan(&no, &date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last item: %w", err)
	}
	t, err := time.Parse(timeLayout, date)
	if err != nil {
		return nil, fmt.Errorf("invalid order date %q: %w", date, err)
	}
	return &LastOrder{OrderNumber: no, Date: t}, nil
}

func (s *SQLiteStore) ResumePage(ctx context.Context, year int) (int, error) {
	var page int
	err := s.db.QueryRowContext(ctx, `SELECT resume_page FROM years WHERE year = ?`, year).Scan(&page)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return page, err
}

func (s *SQLiteStore) SetResumePage(ctx context.Context, year, page int) error {
	if page < 0 {
		page = 0
	}
	if err := ensureYear(ctx, s.db, year); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `UPDATE years SET resume_page = ? WHERE year = ?`, page, year)
	return err
}

func (s *SQLiteStore) LastModified(ctx context.Context) (time.Time, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaLastModified).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(timeLayout, v)
}

func (s *SQLiteStore) Flush(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaLastModified, now.Format(timeLayout))
	return err
}

func (s *SQLiteStore) Items(ctx context.Context, filter ItemFilter) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, price, count, product_id, url, category, seller_name, order_date,
			i.order_number, thumbnail_ref, include_tax
		FROM items i
		ORDER BY order_date, i.order_number, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var (
			f        models.ItemFields
			url      sql.NullString
			category sql.NullString
			date     string
			thumb    sql.NullString
			tax      sql.NullBool
		)
		if err := rows.Scan(&f.Name, &f.Price, &f.Count, &f.ProductID, &url, &category,
			&f.SellerName, &date, &f.OrderNumber, &thumb, &tax); err != nil {
			return nil, err
		}
		f.URL = url.String
		f.ThumbnailRef = thumb.String
		if f.OrderDate, err = time.Parse(timeLayout, date); err != nil {
			return nil, fmt.Errorf("invalid item date %q: %w", date, err)
		}
		if category.Valid && category.String != "" {
			if err := json.Unmarshal([]byte(category.String), &f.Category); err != nil {
				return nil, fmt.Errorf("invalid category for %s: %w", f.OrderNumber, err)
			}
		}
		if tax.Valid {
			v := tax.Bool
			f.IncludeTax = &v
		}

		item, err := models.NewItem(f)
		if err != nil {
			return nil, fmt.Errorf("stored item of %s is invalid: %w", f.OrderNumber, err)
		}
		if filter.match(item) {
			items = append(items, item)
		}
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM years WHERE listed = 1),
			(SELECT COUNT(*) FROM years WHERE listed = 1 AND checked = 1),
			(SELECT COUNT(*) FROM pages),
			(SELECT COUNT(*) FROM orders),
			(SELECT COUNT(*) FROM items),
			(SELECT COALESCE(SUM(order_count), 0) FROM years WHERE listed = 1)`).
		Scan(&st.Years, &st.YearsChecked, &st.PagesChecked, &st.OrdersSeen, &st.Items, &st.TotalOrders)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	st.LastModified, err = s.LastModified(ctx)
	return st, err
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"items", "orders", "pages", "years", "meta"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	log.Info().Str("path", s.path).Msg("Store cleared")
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
