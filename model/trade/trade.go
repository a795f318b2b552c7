package trade

import (
	"fmt"
	"strings"
	"time"
)

// Transaction is the side of a trade.
type Transaction string

const (
	Buy  Transaction = "BUY"
	Sell Transaction = "SELL"
)

// ParseTransaction accepts "buy"/"sell" in any case.
func ParseTransaction(s string) (Transaction, error) {
	switch Transaction(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("trade: unknown transaction %q", s)
	}
}

// Trade is a recorded portfolio transaction.
type Trade struct {
	ID          string      `json:"id"`
	Symbol      string      `json:"symbol"`
	Company     string      `json:"company"`
	Transaction Transaction `json:"transaction"`
	Quantity    float64     `json:"quantity"`
	Price       float64     `json:"price"`
	CreatedAt   time.Time   `json:"created_at"`
}
