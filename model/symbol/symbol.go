package symbol

import "github.com/yitech/chartfeed/model/bar"

// Info is the descriptive record the charting widget needs to render a
// symbol. It is built once per chart session and never mutated afterwards.
type Info struct {
	Name                 string           `json:"name"`
	FullName             string           `json:"full_name"`
	Description          string           `json:"description"`
	Type                 string           `json:"type"`
	Session              string           `json:"session"`
	Exchange             string           `json:"exchange"`
	ListedExchange       string           `json:"listed_exchange"`
	Timezone             string           `json:"timezone"`
	Format               string           `json:"format"`
	PriceScale           int              `json:"pricescale"`
	MinMov               int              `json:"minmov"`
	VolumePrecision      int              `json:"volume_precision"`
	SupportedResolutions []bar.Resolution `json:"supported_resolutions"`
	HasIntraday          bool             `json:"has_intraday"`
	HasDaily             bool             `json:"has_daily"`
	HasWeeklyAndMonthly  bool             `json:"has_weekly_and_monthly"`
}

// Configuration is the capability descriptor handed to the widget by onReady.
type Configuration struct {
	SupportedResolutions   []bar.Resolution `json:"supported_resolutions"`
	SupportsMarks          bool             `json:"supports_marks"`
	SupportsTimescaleMarks bool             `json:"supports_timescale_marks"`
	SupportsTime           bool             `json:"supports_time"`
	Exchanges              []Exchange       `json:"exchanges,omitempty"`
	SymbolsTypes           []Type           `json:"symbols_types,omitempty"`
}

// Exchange is one entry of the widget's exchange filter.
type Exchange struct {
	Value string `json:"value"`
	Name  string `json:"name"`
	Desc  string `json:"desc"`
}

// Type is one entry of the widget's symbol-type filter.
type Type struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SearchResult is one row of a symbol search.
type SearchResult struct {
	Symbol      string `json:"symbol"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Exchange    string `json:"exchange"`
	Type        string `json:"type"`
}

// Entry is one record of the locally cached symbol directory.
type Entry struct {
	Symbol   string `json:"symbol" yaml:"symbol"`
	Name     string `json:"name" yaml:"name"`
	Exchange string `json:"exchange" yaml:"exchange"`
	Type     string `json:"type" yaml:"type"`
}
