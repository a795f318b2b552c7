package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/quote"
)

const wsBaseURL = "wss://stream.binance.com:9443/ws"

// token implements adapter.Token for a single Binance kline subscription.
type token struct {
	cancel context.CancelFunc
}

func (t *token) Unsubscribe() { t.cancel() }

// subscribeKline opens a Binance WebSocket kline stream for symbol/interval,
// invoking handler with a quote for every update. It reconnects
// automatically on error.
func subscribeKline(ctx context.Context, log *zap.Logger, wsURL, symbol, interval string, handler adapter.QuoteHandler) (adapter.Token, error) {
	if symbol == "" {
		return nil, fmt.Errorf("binance: symbol required")
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

// connectAndRead maintains a single WebSocket session until the context is
// cancelled or an error occurs.
func connectAndRead(ctx context.Context, log *zap.Logger, wsURL, symbol, interval string, handler adapter.QuoteHandler) error {
	streamName := strings.ToLower(symbol) + "@kline_" + interval
	u := wsURL + "/" + streamName

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// Close the connection when the context is cancelled.
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("read: %w", err)
		}

		q, err := parseWsKline(msg)
		if err != nil {
			log.Debug("ws parse error", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		handler(q)
	}
}

// wsKlineMsg is the Binance kline stream message envelope.
type wsKlineMsg struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
	} `json:"k"`
}

// parseWsKline turns the in-progress kline into a quote: the close is the
// latest traded price.
func parseWsKline(msg []byte) (quote.Quote, error) {
	var m wsKlineMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return quote.Quote{}, err
	}
	if m.EventType != "kline" {
		return quote.Quote{}, fmt.Errorf("unexpected event type: %s", m.EventType)
	}
	k := m.Kline
	var vals [5]float64
	for i, s := range []string{k.Close, k.Open, k.High, k.Low, k.Volume} {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return quote.Quote{}, fmt.Errorf("kline field %d: %w", i, err)
		}
		vals[i] = v
	}
	return quote.Quote{
		Symbol:        m.Symbol,
		LatestPrice:   vals[0],
		Open:          vals[1],
		High:          vals[2],
		Low:           vals[3],
		Volume:        vals[4],
		LastTradeTime: m.EventTime,
	}, nil
}
