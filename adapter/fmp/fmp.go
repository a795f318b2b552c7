// Package fmp fetches company profiles from Financial Modeling Prep.
package fmp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultBaseURL = "https://financialmodelingprep.com/api/v3"

// ErrNotFound is returned when the API knows no profile for a symbol.
var ErrNotFound = errors.New("fmp: profile not found")

// Profile is the company profile panel shown next to the chart.
type Profile struct {
	Price             float64 `json:"price"`
	Beta              float64 `json:"beta"`
	VolAvg            float64 `json:"volAvg"`
	MktCap            float64 `json:"mktCap"`
	LastDiv           float64 `json:"lastDiv"`
	Range             string  `json:"range"`
	Changes           float64 `json:"changes"`
	ChangesPercentage string  `json:"changesPercentage"`
	CompanyName       string  `json:"companyName"`
	Exchange          string  `json:"exchange"`
	Industry          string  `json:"industry"`
	Website           string  `json:"website"`
	Description       string  `json:"description"`
	CEO               string  `json:"ceo"`
	Sector            string  `json:"sector"`
	Image             string  `json:"image"`
}

// CompanyProfile pairs a symbol with its profile.
type CompanyProfile struct {
	Symbol  string  `json:"symbol"`
	Profile Profile `json:"profile"`
}

type Client struct {
	client *resty.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetQueryParam("apikey", apiKey)
	}
	return &Client{client: c}
}

// Profile fetches the company profile for symbol.
func (c *Client) Profile(ctx context.Context, symbol string) (*CompanyProfile, error) {
	if symbol == "" {
		return nil, fmt.Errorf("fmp: symbol required")
	}
	var out CompanyProfile
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("symbol", symbol).
		SetResult(&out).
		ForceContentType("application/json").
		Get("/company/profile/{symbol}")
	if err != nil {
		return nil, fmt.Errorf("fmp: get profile: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fmp: unexpected status %s", resp.Status())
	}
	// Unknown symbols come back as an empty object.
	if out.Symbol == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	return &out, nil
}
