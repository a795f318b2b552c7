package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/model/symbol"
	"github.com/yitech/chartfeed/widget"
)

func testModel() model {
	return newModel("AAPL", bar.ResolutionD, []bar.Resolution{"10", "30", "1D"}, 3, nil, make(chan bar.Resolution, 1))
}

func TestApplyHistoryAndBars(t *testing.T) {
	m := testModel()
	m.apply(widget.Event{Type: widget.EventSymbol, Info: &symbol.Info{Name: "AAPL", Description: "Apple Inc.", Timezone: "America/New_York"}})
	assert.Equal(t, "Apple Inc.", m.description)
	assert.Equal(t, "America/New_York", m.loc.String())

	m.apply(widget.Event{Type: widget.EventHistory, Resolution: "1D", Bars: []bar.Bar{
		{Time: 1}, {Time: 2}, {Time: 3}, {Time: 4},
	}})
	require.Len(t, m.bars, 3)
	assert.Equal(t, int64(2), m.bars[0].Time)
	assert.Equal(t, "live", m.status)

	m.apply(widget.Event{Type: widget.EventBar, Bar: &bar.Bar{Time: 4, Close: 9}})
	require.Len(t, m.bars, 3)
	assert.Equal(t, 9.0, m.bars[2].Close)

	m.apply(widget.Event{Type: widget.EventBar, Bar: &bar.Bar{Time: 5}})
	require.Len(t, m.bars, 3)
	assert.Equal(t, int64(5), m.bars[2].Time)
}

func TestCycleResolution(t *testing.T) {
	resCh := make(chan bar.Resolution, 1)
	m := newModel("AAPL", bar.ResolutionD, []bar.Resolution{"10", "30", "1D"}, 10, nil, resCh)
	m.cycleResolution()
	assert.Equal(t, bar.Resolution10, m.resolution)
	assert.Equal(t, bar.Resolution10, <-resCh)
}

func TestPriceMapping(t *testing.T) {
	assert.Equal(t, 0, priceToRow(110, 11, 110, 100))
	assert.Equal(t, 10, priceToRow(100, 11, 110, 100))
	assert.InDelta(t, 105.0, rowToPrice(5, 11, 110, 100), 1e-9)

	hi, lo := priceRange([]bar.Bar{{High: 3, Low: 1}, {High: 5, Low: 2}})
	assert.Equal(t, 5.0, hi)
	assert.Equal(t, 1.0, lo)
}

func TestParseResolutions(t *testing.T) {
	assert.Equal(t, []bar.Resolution{"10", "1D"}, parseResolutions("10, ,1D"))
}
