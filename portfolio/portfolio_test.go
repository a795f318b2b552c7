package portfolio

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/trade"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "db", "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRepoLifecycle(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	first, err := r.Create(ctx, trade.Trade{Symbol: "aapl", Company: "Apple Inc.", Transaction: "buy", Quantity: 10, Price: 185.25, CreatedAt: base})
	require.NoError(t, err)
	second, err := r.Create(ctx, trade.Trade{Symbol: "MSFT", Transaction: trade.Sell, Quantity: 1, Price: 370.1, CreatedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Equal(t, trade.Buy, first.Transaction)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, 185.25, list[1].Price)
	assert.True(t, base.Equal(list[1].CreatedAt))

	got, err := r.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", got.Company)

	require.NoError(t, r.Delete(ctx, first.ID))
	assert.ErrorIs(t, r.Delete(ctx, first.ID), ErrNotFound)
	_, err = r.Get(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	list, err = r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCorruptCreatedAtIsReported(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO trades (id, symbol, company, transaction_type, quantity, price, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"bad-row", "AAPL", "", "buy", "1", "100", "yesterday")
	require.NoError(t, err)

	_, err = r.List(ctx)
	assert.ErrorContains(t, err, "created_at")
	_, err = r.Get(ctx, "bad-row")
	assert.ErrorContains(t, err, "created_at")
}

func TestCreateValidates(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	_, err := r.Create(ctx, trade.Trade{Transaction: trade.Buy, Quantity: 1, Price: 1})
	assert.Error(t, err)
	_, err = r.Create(ctx, trade.Trade{Symbol: "AAPL", Transaction: "hold", Quantity: 1, Price: 1})
	assert.Error(t, err)
	_, err = r.Create(ctx, trade.Trade{Symbol: "AAPL", Transaction: trade.Buy, Quantity: 0, Price: 1})
	assert.Error(t, err)
	_, err = r.Create(ctx, trade.Trade{Symbol: "AAPL", Transaction: trade.Buy, Quantity: 1, Price: -1})
	assert.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestRowsFormatting(t *testing.T) {
	created := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	trades := []trade.Trade{
		{ID: "1", Symbol: "AAPL", Transaction: trade.Buy, Quantity: 1200, Price: 180.5, CreatedAt: created},
		{ID: "2", Symbol: "AAPL", Transaction: trade.Sell, Quantity: 3, Price: 180.5, CreatedAt: created},
		{ID: "3", Symbol: "MSFT", Transaction: trade.Buy, Quantity: 1, Price: 370, CreatedAt: created},
	}
	rows := Rows(trades, quote.Quote{Symbol: "AAPL", LatestPrice: 185.25}, ny)
	require.Len(t, rows, 3)

	buy := rows[0]
	assert.Equal(t, "1,200", buy.Quantity)
	assert.Equal(t, "180.50", buy.Price)
	assert.Equal(t, "216,600.00", buy.Total)
	assert.Equal(t, "1/2/24, 09:30", buy.Date)
	assert.Equal(t, "4.75", buy.Rate)
	assert.True(t, buy.Up)
	assert.Equal(t, ColorUp, buy.Color)

	sell := rows[1]
	assert.Equal(t, "-4.75", sell.Rate)
	assert.False(t, sell.Up)
	assert.Equal(t, ColorDefault, sell.Color)

	other := rows[2]
	assert.Empty(t, other.Rate)
	assert.Equal(t, ColorDefault, other.Color)
}

func TestRowsWithoutQuote(t *testing.T) {
	rows := Rows([]trade.Trade{{ID: "1", Symbol: "AAPL", Transaction: trade.Buy, Quantity: 1, Price: 10}}, quote.Quote{}, nil)
	assert.Empty(t, rows[0].Rate)
	assert.False(t, rows[0].Up)
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "0.00", currency(decimal.Zero, 2))
	assert.Equal(t, "999", currency(decimal.NewFromInt(999), 0))
	assert.Equal(t, "1,000", currency(decimal.NewFromInt(1000), 0))
	assert.Equal(t, "-12,345.68", currency(decimal.NewFromFloat(-12345.678), 2))
}
