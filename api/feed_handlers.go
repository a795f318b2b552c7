package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/adapter/fmp"
	"github.com/yitech/chartfeed/driver"
	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/bar"
)

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, driver.Configuration(s.deps.Source.Resolutions(), s.deps.Exchange))
}

func (s *Server) handleSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Manager.Directory())
}

func (s *Server) handleSearch(c *gin.Context) {
	results := driver.Search(s.deps.Manager.Directory(),
		c.Query("query"), c.Query("exchange"), c.Query("type"), s.deps.Exchange)
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleTime(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"time": time.Now().Unix()})
}

// handleHistory serves the source's fixed range for ?symbol=&resolution=
// as bars.
func (s *Server) handleHistory(c *gin.Context) {
	sym := strings.TrimSpace(c.Query("symbol"))
	if sym == "" {
		writeError(c, http.StatusBadRequest, "symbol is required")
		return
	}
	res := bar.Resolution(c.DefaultQuery("resolution", string(bar.ResolutionD)))

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.deps.Timeout)
	defer cancel()

	source := s.deps.Source.Name()
	start := time.Now()
	recs, err := s.deps.Source.History(ctx, sym, res)
	if err != nil {
		metrics.ObserveHistory(source, metrics.ResultError, time.Since(start))
		if errors.Is(err, adapter.ErrUnsupportedResolution) {
			writeError(c, http.StatusBadRequest, fmt.Sprintf("unsupported resolution %q", res))
			return
		}
		s.log.Warn("history", zap.String("symbol", sym), zap.String("resolution", string(res)), zap.Error(err))
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}
	bars, err := driver.ToBars(recs, s.deps.Location)
	if err != nil {
		metrics.ObserveHistory(source, metrics.ResultError, time.Since(start))
		writeError(c, http.StatusBadGateway, err.Error())
		return
	}
	result := metrics.ResultOK
	if len(bars) == 0 {
		result = metrics.ResultNoData
	}
	metrics.ObserveHistory(source, result, time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"symbol":     sym,
		"resolution": res,
		"bars":       bars,
		"noData":     len(bars) == 0,
	})
}

func (s *Server) handleProfile(c *gin.Context) {
	if s.deps.Profiles == nil {
		writeError(c, http.StatusServiceUnavailable, "profiles are not configured")
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.deps.Timeout)
	defer cancel()

	p, err := s.deps.Profiles.Profile(ctx, strings.ToUpper(c.Param("symbol")))
	switch {
	case errors.Is(err, fmp.ErrNotFound):
		writeError(c, http.StatusNotFound, "profile not found")
	case err != nil:
		s.log.Warn("profile", zap.String("symbol", c.Param("symbol")), zap.Error(err))
		writeError(c, http.StatusBadGateway, err.Error())
	default:
		c.JSON(http.StatusOK, p)
	}
}
