package okx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/model/quote"
)

const wsEndpoint = "wss://ws.okx.com:8443/ws/v5/business"

// token implements adapter.Token for a single OKX candle subscription.
type token struct {
	cancel context.CancelFunc
}

func (t *token) Unsubscribe() { t.cancel() }

// subscribeKline opens an OKX WebSocket candle stream for instID/interval,
// invoking handler for every update. It reconnects automatically on error.
func subscribeKline(ctx context.Context, log *zap.Logger, wsURL, instID, interval string, handler adapter.QuoteHandler) (adapter.Token, error) {
	if instID == "" {
		return nil, fmt.Errorf("okx: instrument id required")
	}
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		backoff := time.Second
		for {
			if ctx.Err() != nil {
				return
			}
			if err := connectAndRead(ctx, log, wsURL, instID, interval, handler); err != nil && ctx.Err() == nil {
				log.Warn("ws disconnected, reconnecting",
					zap.String("instId", instID), zap.Duration("backoff", backoff), zap.Error(err))
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

// connectAndRead maintains a single OKX WebSocket session.
func connectAndRead(ctx context.Context, log *zap.Logger, wsURL, instID, interval string, handler adapter.QuoteHandler) error {
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

	// OKX channel name: "candle" + bar (e.g. "candle1m", "candle4H").
	subMsg := map[string]any{
		"op": "subscribe",
		"args": []map[string]string{
			{"channel": "candle" + interval, "instId": instID},
		},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		// OKX sends plain text "ping" frames (not WS protocol pings).
		if string(msg) == "ping" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
			continue
		}

		quotes, err := parseWsMessage(instID, msg)
		if err != nil {
			log.Debug("ws parse error", zap.String("instId", instID), zap.Error(err))
			continue
		}
		for _, q := range quotes {
			handler(q)
		}
	}
}

// okxWsMsg is the generic OKX WebSocket message envelope.
type okxWsMsg struct {
	Event string `json:"event"` // "subscribe", "error"
	Code  string `json:"code"`
	Msg   string `json:"msg"`
	Arg   struct {
		Channel string `json:"channel"`
		InstID  string `json:"instId"`
	} `json:"arg"`
	Data [][]string `json:"data"`
}

// parseWsMessage turns a candle push into quotes stamped with the receive
// time. Acks yield nothing; error events are returned as errors.
func parseWsMessage(instID string, msg []byte) ([]quote.Quote, error) {
	var m okxWsMsg
	if err := json.Unmarshal(msg, &m); err != nil {
		return nil, err
	}

	if m.Event != "" {
		if m.Event == "error" {
			return nil, fmt.Errorf("api error %s: %s", m.Code, m.Msg)
		}
		return nil, nil
	}

	recs, err := parseKlines(m.Data)
	if err != nil {
		return nil, err
	}

	received := timeNow().UnixMilli()
	out := make([]quote.Quote, 0, len(recs))
	for _, r := range recs {
		out = append(out, quote.Quote{
			Symbol:        instID,
			LatestPrice:   r.Close,
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Volume:        r.Volume,
			LastTradeTime: received,
		})
	}
	return out, nil
}
