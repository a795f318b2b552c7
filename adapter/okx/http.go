package okx

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
	baseURL   = "https://www.okx.com"
	klinePath = "/api/v5/market/history-candles"
	maxLimit  = 100
)

// fetchKlines requests historical klines from the OKX REST API,
// paginating automatically until the full [startMs, endMs] range is covered.
//
// OKX returns candles newest-first using cursor-based pagination via the
// `after` parameter; this function reverses the result to chronological order.
func fetchKlines(ctx context.Context, client *http.Client, base, instID, interval string, startMs, endMs int64) ([]adapter.Record, error) {
	var all []adapter.Record

	// after=T returns candles with ts < T, so seed with endMs+1 to include endMs.
	after := strconv.FormatInt(endMs+1, 10)

	for {
		batch, err := fetchBatch(ctx, client, base, instID, interval, after)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		// Collect candles that fall within [startMs, endMs]; stop when we go older.
		done := false
		for _, r := range batch {
			if r.Timestamp < startMs {
				done = true
				break
			}
			all = append(all, r)
		}

		if done || len(batch) < maxLimit {
			break
		}

		after = strconv.FormatInt(all[len(all)-1].Timestamp, 10)
	}

	// Reverse to chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}

// fetchBatch fetches a single page from the OKX history-candles endpoint.
func fetchBatch(ctx context.Context, client *http.Client, base, instID, interval, after string) ([]adapter.Record, error) {
	u, err := url.Parse(base + klinePath)
	if err != nil {
		return nil, fmt.Errorf("okx: parse url: %w", err)
	}

	q := u.Query()
	q.Set("instId", instID)
	q.Set("bar", interval)
	q.Set("after", after)
	q.Set("limit", strconv.Itoa(maxLimit))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("okx: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("okx: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("okx: unexpected status %s", resp.Status)
	}

	// OKX envelope
	var envelope struct {
		Code string     `json:"code"`
		Msg  string     `json:"msg"`
		Data [][]string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("okx: decode response: %w", err)
	}
	if envelope.Code != "0" {
		return nil, fmt.Errorf("okx: api error %s: %s", envelope.Code, envelope.Msg)
	}

	return parseKlines(envelope.Data)
}

// parseKlines converts OKX candle rows into records.
//
// OKX kline array layout (REST and WebSocket):
//
//	[0] ts        (open time, ms)
//	[1] o         (open)
//	[2] h         (high)
//	[3] l         (low)
//	[4] c         (close)
//	[5] vol       (base currency volume)
//	[6] volCcy    unused
//	[7] volCcyQuote unused
//	[8] confirm   ("1"=closed, "0"=current)
func parseKlines(rows [][]string) ([]adapter.Record, error) {
	out := make([]adapter.Record, 0, len(rows))

	for i, r := range rows {
		if len(r) < 6 {
			return nil, fmt.Errorf("okx: kline[%d] has %d fields, want ≥6", i, len(r))
		}

		openTime, err := strconv.ParseInt(r[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("okx: kline[%d] open_time: %w", i, err)
		}

		var ohlcv [5]float64
		for j := range ohlcv {
			if ohlcv[j], err = strconv.ParseFloat(r[j+1], 64); err != nil {
				return nil, fmt.Errorf("okx: kline[%d] field %d: %w", i, j+1, err)
			}
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
