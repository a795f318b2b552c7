package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/quote"
)

const wsBaseURL = "wss://stream.bybit.com/v5/public/"

// pingInterval is how often we send a heartbeat to keep the connection alive.
const pingInterval = 20 * time.Second

// token implements adapter.Token for a single Bybit kline subscription.
type token struct {
	cancel context.CancelFunc
}

func (t *token) Unsubscribe() { t.cancel() }

// subscribeKline opens a Bybit WebSocket kline stream for symbol/interval,
// invoking handler for every update. It reconnects automatically on error.
func subscribeKline(ctx context.Context, log *zap.Logger, wsURL, symbol, interval string, handler adapter.QuoteHandler) (adapter.Token, error) {
	if symbol == "" {
		return nil, fmt.Errorf("bybit: symbol required")
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if err := connectAndRead(ctx, log, wsURL, symbol, interval, handler); err != nil && ctx.Err() == nil {
				log.Warn("ws disconnected, reconnecting",
					zap.String("symbol", symbol), zap.Duration("backoff", backoff), zap.Error(err))
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
			} else {
				backoff = time.Second
			}
		}
	}()

	return &token{cancel: cancel}, nil
}

// connectAndRead maintains a single Bybit WebSocket session.
func connectAndRead(ctx context.Context, log *zap.Logger, wsURL, symbol, interval string, handler adapter.QuoteHandler) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Close connection on context cancellation.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	topic := fmt.Sprintf("kline.%s.%s", interval, symbol)
	subMsg := map[string]any{
		"op":   "subscribe",
		"args": []string{topic},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// Heartbeat: Bybit requires a ping every 20 s or it closes the connection.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		quotes, err := parseWsMessage(symbol, msg)
		if err != nil {
			log.Debug("ws parse error", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		for _, q := range quotes {
			handler(q)
		}
	}
}

// bybitWsMsg is the generic Bybit V5 WebSocket message envelope.
type bybitWsMsg struct {
	Op      string          `json:"op"`      // "pong", "subscribe"
	Success bool            `json:"success"` // subscription ack
	Topic   string          `json:"topic"`   // "kline.1.BTCUSDT"
	Type    string          `json:"type"`    // "snapshot" | "delta"
	Ts      int64           `json:"ts"`
	Data    json.RawMessage `json:"data"`
}

// bybitKlineEntry is one kline object inside the data array.
type bybitKlineEntry struct {
	Start     int64  `json:"start"` // open time (ms)
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Timestamp int64  `json:"timestamp"`
}

func parseWsMessage(symbol string, msg []byte) ([]quote.Quote, error) {
	var m bybitWsMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	// Ignore control messages (pong, subscribe ack).
	if m.Topic == "" {
		return nil, nil
	}

	var entries []bybitKlineEntry
	if err := json.Unmarshal(m.Data, &entries); err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}

	out := make([]quote.Quote, 0, len(entries))
	for _, e := range entries {
		var vals [5]float64
		for i, s := range []string{e.Close, e.Open, e.High, e.Low, e.Volume} {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("kline field %d: %w", i, err)
			}
			vals[i] = v
		}
		ts := e.Timestamp
		if ts == 0 {
			ts = m.Ts
		}
		out = append(out, quote.Quote{
			Symbol:        symbol,
			LatestPrice:   vals[0],
			Open:          vals[1],
			High:          vals[2],
			Low:           vals[3],
			Volume:        vals[4],
			LastTradeTime: ts,
		})
	}
	return out, nil
}
