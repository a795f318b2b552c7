package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yitech/chartfeed/adapter"
	"github.com/yitech/chartfeed/datafeed"
	"github.com/yitech/chartfeed/metrics"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

var dateLayouts = []string{"2006-01-02", "20060102"}

// ToBars maps upstream records to bars sorted by time. Records without an
// epoch timestamp are read as wall-clock times in loc: date plus minute for
// intraday rows, midnight of the date for daily ones.
func ToBars(recs []adapter.Record, loc *time.Location) ([]bar.Bar, error) {
	out := make([]bar.Bar, 0, len(recs))
	for i, r := range recs {
		t, err := recordTime(r, loc)
		if err != nil {
			return nil, fmt.Errorf("record[%d]: %w", i, err)
		}
		out = append(out, bar.Bar{
			Time:   t,
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	bar.SortStable(out)
	return out, nil
}

func recordTime(r adapter.Record, loc *time.Location) (int64, error) {
	if r.Timestamp != 0 {
		return r.Timestamp, nil
	}
	if r.Minute != "" {
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout+" 15:04", r.Date+" "+r.Minute, loc); err == nil {
				return t.UnixMilli(), nil
			}
		}
		return 0, fmt.Errorf("parse date %q minute %q", r.Date, r.Minute)
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, r.Date, loc); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("parse date %q", r.Date)
}

// historyProvider serves the initial window for the session numbered gen.
// A fetch that completes after the session has been replaced is dropped
// without touching driver state or calling back.
func (d *Driver) historyProvider(gen uint64) func(symbol.Info, bar.Resolution, bar.PeriodParams, datafeed.HistoryCallback, datafeed.ErrorCallback) {
	return func(info symbol.Info, resolution bar.Resolution, params bar.PeriodParams, onResult datafeed.HistoryCallback, onError datafeed.ErrorCallback) {
		if !params.FirstDataRequest {
			onResult([]bar.Bar{}, bar.HistoryMeta{NoData: true})
			return
		}

		// A fresh window replaces whatever the previous resolution loaded.
		d.mu.Lock()
		if d.gen == gen {
			d.lastBar = nil
			d.loadEnd = false
		}
		d.mu.Unlock()

		source := d.cfg.Source.Name()
		ctx := d.ctx
		if d.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.cfg.Timeout)
			defer cancel()
		}

		start := time.Now()
		recs, err := d.cfg.Source.History(ctx, info.Name, resolution)
		elapsed := time.Since(start)

		if !d.current(gen) {
			metrics.ObserveHistory(source, metrics.ResultStale, elapsed)
			d.log.Debug("stale history dropped", zap.String("symbol", info.Name), zap.Uint64("gen", gen))
			return
		}
		if err != nil {
			metrics.ObserveHistory(source, metrics.ResultError, elapsed)
			d.log.Warn("history fetch failed", zap.String("symbol", info.Name), zap.String("resolution", string(resolution)), zap.Error(err))
			onError(err.Error())
			return
		}

		bars, err := ToBars(recs, d.cfg.Location)
		if err != nil {
			metrics.ObserveHistory(source, metrics.ResultError, elapsed)
			onError(err.Error())
			return
		}
		if len(bars) == 0 {
			metrics.ObserveHistory(source, metrics.ResultNoData, elapsed)
			onResult([]bar.Bar{}, bar.HistoryMeta{NoData: true})
			return
		}

		last := bars[len(bars)-1]
		d.mu.Lock()
		if d.gen != gen || d.stopped {
			d.mu.Unlock()
			metrics.ObserveHistory(source, metrics.ResultStale, elapsed)
			return
		}
		d.lastBar = &last
		d.loadEnd = true
		if d.state == Initializing {
			d.state = Loaded
		}
		d.mu.Unlock()

		metrics.ObserveHistory(source, metrics.ResultOK, elapsed)
		d.log.Debug("history loaded", zap.String("symbol", info.Name), zap.Int("bars", len(bars)), zap.Duration("elapsed", elapsed))
		onResult(bars, bar.HistoryMeta{})
	}
}
