// Package portfolio stores the trade history in SQLite and formats it for
// display against the latest quote.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/yitech/chartfeed/model/trade"
)

var ErrNotFound = errors.New("portfolio: trade not found")

// timeLayout keeps a fixed-width fraction so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repo struct {
	db *sql.DB
}

// Open opens (creating when needed) the trade database at path.
func Open(path string) (*Repo, error) {
	if path == "" {
		return nil, errors.New("portfolio: db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("portfolio: mkdir db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("portfolio: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	r := &Repo{db: db}
	if err := r.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error {
	return r.db.Close()
}

func (r *Repo) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  company TEXT NOT NULL DEFAULT '',
  transaction_type TEXT NOT NULL,
  quantity TEXT NOT NULL,
  price TEXT NOT NULL,
  created_at TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_at ON trades(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("portfolio: migrate: %w", err)
		}
	}
	return nil
}

// Create validates and stores t, assigning its id and, when unset, its
// creation time.
func (r *Repo) Create(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if t.Symbol == "" {
		return trade.Trade{}, errors.New("portfolio: symbol is required")
	}
	tx, err := trade.ParseTransaction(string(t.Transaction))
	if err != nil {
		return trade.Trade{}, err
	}
	t.Transaction = tx
	if t.Quantity <= 0 {
		return trade.Trade{}, errors.New("portfolio: quantity must be > 0")
	}
	if t.Price < 0 {
		return trade.Trade{}, errors.New("portfolio: price must be >= 0")
	}
	t.ID = uuid.NewString()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.CreatedAt = t.CreatedAt.UTC()

	_, err = r.db.ExecContext(ctx, `
INSERT INTO trades (id,symbol,company,transaction_type,quantity,price,created_at)
VALUES (?,?,?,?,?,?,?)
`, t.ID, t.Symbol, t.Company, string(t.Transaction),
		decimal.NewFromFloat(t.Quantity).String(),
		decimal.NewFromFloat(t.Price).String(),
		t.CreatedAt.Format(timeLayout))
	if err != nil {
		return trade.Trade{}, fmt.Errorf("portfolio: insert trade: %w", err)
	}
	return t, nil
}

// List returns every trade, newest first.
func (r *Repo) List(ctx context.Context) ([]trade.Trade, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id,symbol,company,transaction_type,quantity,price,created_at
FROM trades ORDER BY created_at DESC, rowid DESC
`)
	if err != nil {
		return nil, fmt.Errorf("portfolio: list trades: %w", err)
	}
	defer rows.Close()

	out := []trade.Trade{}
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (trade.Trade, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,symbol,company,transaction_type,quantity,price,created_at
FROM trades WHERE id=?
`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trade.Trade{}, ErrNotFound
	}
	return t, err
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM trades WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("portfolio: delete trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("portfolio: delete trade: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (trade.Trade, error) {
	var (
		t                      trade.Trade
		tx, qty, price, create string
	)
	if err := s.Scan(&t.ID, &t.Symbol, &t.Company, &tx, &qty, &price, &create); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return t, err
		}
		return t, fmt.Errorf("portfolio: scan trade: %w", err)
	}
	t.Transaction = trade.Transaction(tx)
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return t, fmt.Errorf("portfolio: trade %s quantity: %w", t.ID, err)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return t, fmt.Errorf("portfolio: trade %s price: %w", t.ID, err)
	}
	t.Quantity = q.InexactFloat64()
	t.Price = p.InexactFloat64()
	ts, err := time.Parse(timeLayout, create)
	if err != nil {
		return t, fmt.Errorf("portfolio: trade %s created_at: %w", t.ID, err)
	}
	t.CreatedAt = ts
	return t, nil
}
