package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/quote"
	"github.com/yitech/chartfeed/model/trade"
	"github.com/yitech/chartfeed/portfolio"
)

type createTradeRequest struct {
	Symbol      string  `json:"symbol"`
	Company     string  `json:"company"`
	Transaction string  `json:"transaction"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
}

// handleTradesList returns the display rows, newest first. With ?symbol=
// the rows of that symbol are priced against its latest quote when the
// source can quote on demand.
func (s *Server) handleTradesList(c *gin.Context) {
	if s.deps.Trades == nil {
		writeError(c, http.StatusServiceUnavailable, "portfolio is not configured")
		return
	}
	metrics.TradeOps.WithLabelValues("list").Inc()

	trades, err := s.deps.Trades.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	var q quote.Quote
	if sym := strings.TrimSpace(c.Query("symbol")); sym != "" {
		q = s.latestQuote(c.Request.Context(), sym)
	}
	c.JSON(http.StatusOK, portfolio.Rows(trades, q, s.deps.Location))
}

func (s *Server) handleTradesCreate(c *gin.Context) {
	if s.deps.Trades == nil {
		writeError(c, http.StatusServiceUnavailable, "portfolio is not configured")
		return
	}
	var req createTradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	t := trade.Trade{
		Symbol:      req.Symbol,
		Company:     strings.TrimSpace(req.Company),
		Transaction: trade.Transaction(req.Transaction),
		Quantity:    req.Quantity,
		Price:       req.Price,
	}
	if t.Company == "" {
		t.Company = s.companyName(c.Request.Context(), req.Symbol)
	}
	created, err := s.deps.Trades.Create(c.Request.Context(), t)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	metrics.TradeOps.WithLabelValues("create").Inc()
	s.log.Info("trade recorded",
		zap.String("id", created.ID),
		zap.String("symbol", created.Symbol),
		zap.String("transaction", string(created.Transaction)))
	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleTradesDelete(c *gin.Context) {
	if s.deps.Trades == nil {
		writeError(c, http.StatusServiceUnavailable, "portfolio is not configured")
		return
	}
	err := s.deps.Trades.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, portfolio.ErrNotFound):
		writeError(c, http.StatusNotFound, "trade not found")
	case err != nil:
		writeError(c, http.StatusInternalServerError, err.Error())
	default:
		metrics.TradeOps.WithLabelValues("delete").Inc()
		c.Status(http.StatusNoContent)
	}
}

// latestQuote is best effort; a zero quote leaves rates blank.
func (s *Server) latestQuote(ctx context.Context, sym string) quote.Quote {
	quoter, ok := s.deps.Source.(Quoter)
	if !ok {
		return quote.Quote{}
	}
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()
	q, err := quoter.Quote(ctx, sym)
	if err != nil {
		s.log.Debug("quote", zap.String("symbol", sym), zap.Error(err))
		return quote.Quote{}
	}
	return q
}

// companyName looks the name up in the directory, then the profile service.
func (s *Server) companyName(ctx context.Context, sym string) string {
	for _, e := range s.deps.Manager.Directory() {
		if strings.EqualFold(e.Symbol, sym) && e.Name != "" {
			return e.Name
		}
	}
	if s.deps.Profiles == nil || strings.TrimSpace(sym) == "" {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	defer cancel()
	p, err := s.deps.Profiles.Profile(ctx, strings.ToUpper(strings.TrimSpace(sym)))
	if err != nil {
		return ""
	}
	return p.Profile.CompanyName
}
