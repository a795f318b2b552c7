// Package ws serves chart sessions over websocket: one session per
// connection, JSON commands in and widget events out.
package ws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/session"
	"github.com/yitech/chartfeed/widget"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 50 * time.Second
	readLimit  = 64 << 10
)

// Handler upgrades requests and runs a session on each connection.
// The optional "symbols" query parameter (comma separated) preselects the
// initial symbol list and "resolution" the chart's starting resolution.
type Handler struct {
	Manager *session.Manager
	Log     *zap.Logger

	upgrader websocket.Upgrader
}

func NewHandler(m *session.Manager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		Manager: m,
		Log:     log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("upgrade", zap.Error(err))
		return
	}
	c := &client{conn: conn}
	s := h.Manager.Open(c)
	log := h.Log.With(zap.String("session", s.ID()), zap.String("remote", r.RemoteAddr))
	log.Info("session opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer func() {
		cancel()
		h.Manager.Close(s)
		c.close()
		log.Info("session closed")
	}()

	go c.keepalive(ctx)

	if res := r.URL.Query().Get("resolution"); res != "" {
		s.Driver().SetResolution(bar.Resolution(res))
	}
	if err := s.Start(splitSymbols(r.URL.Query().Get("symbols"))); err != nil {
		log.Warn("start session", zap.Error(err))
		_ = c.Send(widget.Event{Type: widget.EventError, Error: err.Error()})
		return
	}

	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd session.Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("read", zap.Error(err))
			}
			return
		}
		if err := s.Handle(cmd); err != nil {
			log.Debug("command rejected", zap.String("type", cmd.Type), zap.Error(err))
			_ = c.Send(widget.Event{Type: widget.EventError, Error: err.Error()})
		}
	}
}

var errClosed = errors.New("ws: connection closed")

// client is the widget.Sink for one connection; gorilla allows a single
// concurrent writer.
type client struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func (c *client) Send(ev widget.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(ev)
}

func (c *client) keepalive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
