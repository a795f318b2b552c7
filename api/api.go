// Package api is the HTTP surface: health, metrics, feed metadata, one-off
// history, company profiles, the trade history and the chart websocket.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/adapter/fmp"
	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/portfolio"
	"github.com/yitech/chartfeed/session"
)

// Quoter fetches a one-off quote. Sources that can answer on demand
// implement it.
type Quoter interface {
	Quote(ctx context.Context, symbol string) (quote.Quote, error)
}

// Deps are the server's collaborators. Profiles, Trades and WS are
// optional; their routes answer 503 when unset.
type Deps struct {
	Source   adapter.Source
	Manager  *session.Manager
	Profiles *fmp.Client
	Trades   *portfolio.Repo
	WS       http.Handler
	Location *time.Location
	Exchange string
	Timeout  time.Duration
	Log      *zap.Logger
}

type Server struct {
	deps Deps
	log  *zap.Logger
}

func New(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Timeout <= 0 {
		d.Timeout = 15 * time.Second
	}
	return &Server{deps: d, log: d.Log.Named("api")}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/config", s.handleConfig)
	api.GET("/symbols", s.handleSymbols)
	api.GET("/search", s.handleSearch)
	api.GET("/history", s.handleHistory)
	api.GET("/time", s.handleTime)
	api.GET("/profile/:symbol", s.handleProfile)

	trades := api.Group("/trades")
	trades.GET("", s.handleTradesList)
	trades.POST("", s.handleTradesCreate)
	trades.DELETE("/:id", s.handleTradesDelete)

	if s.deps.WS != nil {
		r.GET("/ws", gin.WrapH(s.deps.WS))
	}
	return r
}

func writeError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
