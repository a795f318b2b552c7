package quote

// Quote is the latest market snapshot for one symbol. LastTradeTime is Unix
// milliseconds.
type Quote struct {
	Symbol        string  `json:"symbol"`
	LatestPrice   float64 `json:"latestPrice"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	LastTradeTime int64   `json:"lastTradeTime"`
}
