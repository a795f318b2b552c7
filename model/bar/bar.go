package bar

import "sort"

// Bar is one OHLCV sample in the shape the charting widget consumes.
// Time is the bar's open instant in Unix milliseconds.
type Bar struct {
	Time   int64   `json:"time" parquet:"time"`
	Open   float64 `json:"open" parquet:"open"`
	High   float64 `json:"high" parquet:"high"`
	Low    float64 `json:"low" parquet:"low"`
	Close  float64 `json:"close" parquet:"close"`
	Volume float64 `json:"volume" parquet:"volume"`
}

// Resolution is the bar granularity requested by the widget
// ("10" = 10 minutes, "1D" = one day, ...).
type Resolution string

const (
	Resolution5  Resolution = "5"
	Resolution10 Resolution = "10"
	Resolution30 Resolution = "30"
	ResolutionD  Resolution = "1D"
)

// Intraday reports whether r is a minute-based resolution.
func (r Resolution) Intraday() bool {
	if r == "" {
		return false
	}
	last := r[len(r)-1]
	return last >= '0' && last <= '9'
}

// PeriodParams describes the window the widget wants for one getBars call.
// From and To are Unix seconds.
type PeriodParams struct {
	From             int64 `json:"from"`
	To               int64 `json:"to"`
	CountBack        int   `json:"countBack"`
	FirstDataRequest bool  `json:"firstDataRequest"`
}

// HistoryMeta accompanies a getBars result.
type HistoryMeta struct {
	NoData bool `json:"noData"`
}

// Mark is a bar annotation.
type Mark struct {
	ID         string `json:"id"`
	Time       int64  `json:"time"`
	Color      string `json:"color"`
	Text       string `json:"text"`
	Label      string `json:"label"`
	LabelColor string `json:"labelFontColor"`
	MinSize    int    `json:"minSize"`
}

// TimescaleMark is an annotation drawn on the time axis.
type TimescaleMark struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time"`
	Color   string   `json:"color"`
	Label   string   `json:"label"`
	Tooltip []string `json:"tooltip"`
}

// SortStable orders bars by ascending Time. Bars sharing a timestamp keep
// their relative input order.
func SortStable(bars []Bar) {
	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
}
