package portfolio

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/trade"
)

// Row colors: a positive rate is shown red, everything else green.
const (
	ColorUp      = "rgb(239, 83, 80)"
	ColorDefault = "rgb(38, 166, 154)"
)

// dateLayout is the short en-US date and 24-hour time.
const dateLayout = "1/2/06, 15:04"

// Row is one trade formatted for the history table.
type Row struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Company     string `json:"company"`
	Transaction string `json:"transaction"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	Total       string `json:"total"`
	Date        string `json:"date"`
	// Rate is the unrealized result per share against the latest quote;
	// empty when either price is unknown.
	Rate  string `json:"rate"`
	Up    bool   `json:"up"`
	Color string `json:"color"`
}

// Rows formats trades for display. q prices the trades of its own symbol;
// pass a zero quote when none is known.
func Rows(trades []trade.Trade, q quote.Quote, loc *time.Location) []Row {
	if loc == nil {
		loc = time.UTC
	}
	latest := decimal.NewFromFloat(q.LatestPrice)
	out := make([]Row, 0, len(trades))
	for _, t := range trades {
		qty := decimal.NewFromFloat(t.Quantity)
		price := decimal.NewFromFloat(t.Price)
		r := Row{
			ID:          t.ID,
			Symbol:      t.Symbol,
			Company:     t.Company,
			Transaction: string(t.Transaction),
			Quantity:    currency(qty, 0),
			Price:       currency(price, 2),
			Total:       currency(price.Mul(qty), 2),
			Date:        t.CreatedAt.In(loc).Format(dateLayout),
			Color:       ColorDefault,
		}
		if !latest.IsZero() && !price.IsZero() && strings.EqualFold(q.Symbol, t.Symbol) {
			var rate decimal.Decimal
			if t.Transaction == trade.Buy {
				rate = latest.Sub(price)
			} else {
				rate = price.Sub(latest)
			}
			rate = rate.Round(2)
			r.Rate = currency(rate, 2)
			if rate.IsPositive() {
				r.Up = true
				r.Color = ColorUp
			}
		}
		out = append(out, r)
	}
	return out
}

// currency formats d with places decimals and thousands separators.
func currency(d decimal.Decimal, places int32) string {
	s := d.StringFixed(places)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	b.WriteString(frac)
	return b.String()
}
