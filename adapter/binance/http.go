package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/yitech/chartfeed/adapter"
)

const (
	baseURL   = "https://api.binance.com"
	klinePath = "/api/v3/klines"
	maxLimit  = 1000
)

// fetchKlines requests historical klines from the Binance REST API,
// paginating automatically until the full [startMs, endMs] range is covered.
func fetchKlines(ctx context.Context, client *http.Client, base, symbol, interval string, startMs, endMs int64) ([]adapter.Record, error) {
	var out []adapter.Record

	for {
		batch, err := fetchBatch(ctx, client, base, symbol, interval, startMs, endMs)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)

		// Fewer than maxLimit means we've reached the end of the range.
		if len(batch) < maxLimit {
			break
		}

		// Advance start to just after the last kline's open time.
		startMs = batch[len(batch)-1].Timestamp + 1
		if startMs > endMs {
			break
		}
	}

	return out, nil
}

// fetchBatch fetches a single page (up to maxLimit klines) from the API.
func fetchBatch(ctx context.Context, client *http.Client, base, symbol, interval string, startMs, endMs int64) ([]adapter.Record, error) {
	u, err := url.Parse(base + klinePath)
	if err != nil {
		return nil, fmt.Errorf("binance: parse url: %w", err)
	}

	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("startTime", strconv.FormatInt(startMs, 10))
	q.Set("endTime", strconv.FormatInt(endMs, 10))
	q.Set("limit", strconv.Itoa(maxLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("binance: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: unexpected status %s", resp.Status)
	}

	// Each kline is a JSON array of mixed numbers and strings.
	var raw [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("binance: decode response: %w", err)
	}

	return parseKlines(raw)
}

// parseKlines converts the raw Binance wire format into records.
//
// Binance kline array layout:
//
//	[0]  Open time       (int64, Unix ms)
//	[1]  Open            (string)
//	[2]  High            (string)
//	[3]  Low             (string)
//	[4]  Close           (string)
//	[5]  Volume          (string, base asset)
//	[6]  Close time      (int64, Unix ms)
//	[7..11]              unused
func parseKlines(raw [][]json.RawMessage) ([]adapter.Record, error) {
	out := make([]adapter.Record, 0, len(raw))
	for i, r := range raw {
		if len(r) < 6 {
			return nil, fmt.Errorf("binance: kline[%d] has %d fields, want ≥6", i, len(r))
		}

		var openTime int64
		if err := json.Unmarshal(r[0], &openTime); err != nil {
			return nil, fmt.Errorf("binance: kline[%d] open_time: %w", i, err)
		}

		var ohlcv [5]float64
		for j := range ohlcv {
			v, err := strconv.ParseFloat(jsonString(r[j+1]), 64)
			if err != nil {
				return nil, fmt.Errorf("binance: kline[%d] field %d: %w", i, j+1, err)
			}
			ohlcv[j] = v
		}

		out = append(out, adapter.Record{
			Timestamp: openTime,
			Open:      ohlcv[0],
			High:      ohlcv[1],
			Low:       ohlcv[2],
			Close:     ohlcv[3],
			Volume:    ohlcv[4],
		})
	}
	return out, nil
}

// jsonString strips surrounding quotes from a JSON string token.
func jsonString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Fallback: return the raw token as-is.
		return string(raw)
	}
	return s
}
