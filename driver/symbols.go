package driver

import (
	"math"
	"strings"

	"github.com/yitech/chartfeed/datafeed"
	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
)

const (
	symbolType    = "stock"
	symbolSession = "24x7"
)

// symbolInfo builds the fixed chart metadata for name.
func (d *Driver) symbolInfo(name string) symbol.Info {
	var description string
	for _, e := range d.cfg.Store.Directory() {
		if strings.EqualFold(e.Symbol, name) {
			description = e.Name
			break
		}
	}
	return symbol.Info{
		Name:                 name,
		FullName:             name,
		Description:          description,
		Type:                 symbolType,
		Session:              symbolSession,
		Exchange:             d.cfg.Exchange,
		ListedExchange:       d.cfg.Exchange,
		Timezone:             d.cfg.Location.String(),
		Format:               "price",
		PriceScale:           int(math.Pow10(4)),
		MinMov:               1,
		VolumePrecision:      4,
		SupportedResolutions: d.cfg.Source.Resolutions(),
		HasIntraday:          true,
		HasDaily:             true,
		HasWeeklyAndMonthly:  true,
	}
}

func (d *Driver) configuration() symbol.Configuration {
	return Configuration(d.cfg.Source.Resolutions(), d.cfg.Exchange)
}

// Configuration is the feed configuration reported to widgets: the
// source's resolutions, server time support and the single exchange, if
// any.
func Configuration(resolutions []bar.Resolution, exchange string) symbol.Configuration {
	conf := symbol.Configuration{
		SupportedResolutions: resolutions,
		SupportsTime:         true,
		SymbolsTypes:         []symbol.Type{{Name: "Stock", Value: symbolType}},
	}
	if exchange != "" {
		conf.Exchanges = []symbol.Exchange{{Value: exchange, Name: exchange, Desc: exchange}}
	}
	return conf
}

func (d *Driver) resolveSymbol(name string, onResolved datafeed.ResolveCallback, _ datafeed.ErrorCallback) {
	onResolved(d.symbolInfo(name))
}

// searchSymbols matches query case-insensitively against the symbol and
// name of every directory entry. Non-empty exchange and type filters must
// match exactly, ignoring case.
func (d *Driver) searchSymbols(query, exchange, typ string, onResult datafeed.SearchCallback) {
	onResult(Search(d.cfg.Store.Directory(), query, exchange, typ, d.cfg.Exchange))
}

// Search filters entries by query. An empty query or directory yields an
// empty, non-nil result.
func Search(entries []symbol.Entry, query, exchange, typ, defaultExchange string) []symbol.SearchResult {
	out := []symbol.SearchResult{}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return out
	}
	for _, e := range entries {
		if !strings.Contains(strings.ToLower(e.Symbol), q) && !strings.Contains(strings.ToLower(e.Name), q) {
			continue
		}
		ex := e.Exchange
		if ex == "" {
			ex = defaultExchange
		}
		t := e.Type
		if t == "" {
			t = symbolType
		}
		if exchange != "" && !strings.EqualFold(exchange, ex) {
			continue
		}
		if typ != "" && !strings.EqualFold(typ, t) {
			continue
		}
		out = append(out, symbol.SearchResult{
			Symbol:      e.Symbol,
			FullName:    e.Symbol,
			Description: e.Name,
			Exchange:    ex,
			Type:        t,
		})
	}
	return out
}
