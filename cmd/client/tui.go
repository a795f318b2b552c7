package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yitech/chartfeed/model/bar"
	"github.com/yitech/chartfeed/widget"
)

// ── styles ────────────────────────────────────────────────────────────────────

var (
	bullStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#26a69a"))
	bearStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef5350"))
	wickStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	axisStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#aaaaaa"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef5350"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
)

// ── messages ──────────────────────────────────────────────────────────────────

type eventMsg struct{ ev widget.Event }

// ── model ─────────────────────────────────────────────────────────────────────

type model struct {
	symbol      string
	description string
	resolution  bar.Resolution
	resolutions []bar.Resolution
	loc         *time.Location
	nKline      int
	ch          <-chan widget.Event
	resCh       chan<- bar.Resolution

	bars   []bar.Bar
	status string
	err    string
	width  int
	height int
}

func newModel(symbol string, r bar.Resolution, resolutions []bar.Resolution, nKline int, ch <-chan widget.Event, resCh chan<- bar.Resolution) model {
	return model{
		symbol:      symbol,
		resolution:  r,
		resolutions: resolutions,
		loc:         time.UTC,
		nKline:      nKline,
		ch:          ch,
		resCh:       resCh,
		status:      "loading",
	}
}

// ── Init / Update / View ──────────────────────────────────────────────────────

func (m model) Init() tea.Cmd {
	return waitForEvent(m.ch)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.cycleResolution()
		}

	case eventMsg:
		m.apply(msg.ev)
		return m, waitForEvent(m.ch)
	}

	return m, nil
}

func (m model) View() string {
	if m.width == 0 {
		return "connecting…"
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteByte('\n')
	b.WriteString(m.renderChart())
	if m.err != "" {
		b.WriteString(errorStyle.Render(m.err))
		b.WriteByte('\n')
	}
	b.WriteString(footerStyle.Render("[tab] resolution  [q] quit"))
	return b.String()
}

// ── helpers ───────────────────────────────────────────────────────────────────

// waitForEvent blocks on the channel and returns a Cmd that fires eventMsg.
func waitForEvent(ch <-chan widget.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{<-ch}
	}
}

func (m *model) apply(ev widget.Event) {
	switch ev.Type {
	case widget.EventSymbol:
		if ev.Info != nil {
			m.symbol = ev.Info.Name
			m.description = ev.Info.Description
			if loc, err := time.LoadLocation(ev.Info.Timezone); err == nil {
				m.loc = loc
			}
		}
		m.bars = nil
		m.status = "loading"
	case widget.EventHistory:
		if ev.Resolution != "" {
			m.resolution = ev.Resolution
		}
		m.bars = ev.Bars
		if len(m.bars) > m.nKline {
			m.bars = m.bars[len(m.bars)-m.nKline:]
		}
		m.status = "live"
		m.err = ""
	case widget.EventNoData:
		m.status = "no data"
	case widget.EventBar:
		if ev.Bar != nil {
			m.addOrUpdate(*ev.Bar)
		}
	case widget.EventError:
		m.err = ev.Error
	}
}

func (m *model) cycleResolution() {
	if len(m.resolutions) == 0 {
		return
	}
	next := m.resolutions[0]
	for i, r := range m.resolutions {
		if r == m.resolution {
			next = m.resolutions[(i+1)%len(m.resolutions)]
			break
		}
	}
	m.resolution = next
	m.bars = nil
	m.status = "loading"
	select {
	case m.resCh <- next:
	default:
	}
}

// addOrUpdate merges into the last bar if the time matches, else appends.
func (m *model) addOrUpdate(b bar.Bar) {
	if n := len(m.bars); n > 0 && m.bars[n-1].Time == b.Time {
		m.bars[n-1] = b
		return
	}
	m.bars = append(m.bars, b)
	if len(m.bars) > m.nKline {
		m.bars = m.bars[len(m.bars)-m.nKline:]
	}
}

// ── header ────────────────────────────────────────────────────────────────────

func (m model) renderHeader() string {
	name := m.symbol
	if m.description != "" {
		name += " · " + m.description
	}
	if len(m.bars) == 0 {
		return headerStyle.Render(fmt.Sprintf("%s  %s  %s…", name, m.resolution, m.status))
	}
	c := m.bars[len(m.bars)-1]
	return headerStyle.Render(fmt.Sprintf(
		"%s  %s  [%s]  O:%.2f  H:%.2f  L:%.2f  C:%.2f  V:%.0f  %d/%d",
		name, m.resolution, m.status,
		c.Open, c.High, c.Low, c.Close, c.Volume,
		len(m.bars), m.nKline,
	))
}

// ── chart ─────────────────────────────────────────────────────────────────────

const yAxisWidth = 11 // "  12345.67 │"

func (m model) renderChart() string {
	// 1 header, 1 x-axis, 1 time labels, 1 footer, 1 error line
	chartH := m.height - 5
	if chartH < 3 {
		chartH = 3
	}

	bars := m.bars
	maxCols := (m.width - yAxisWidth) / 2 // each bar occupies 2 chars
	if maxCols < 1 {
		maxCols = 1
	}
	if len(bars) > maxCols {
		bars = bars[len(bars)-maxCols:]
	}

	hi, lo := priceRange(bars)
	if hi == lo {
		hi = lo + 1
	}

	cols := len(bars) * 2
	grid := make([][]string, chartH)
	for r := range grid {
		grid[r] = make([]string, cols)
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}
	for i, c := range bars {
		renderBar(grid, c, i*2, chartH, hi, lo)
	}

	var b strings.Builder
	for row := 0; row < chartH; row++ {
		label := fmt.Sprintf("%9.2f │", rowToPrice(row, chartH, hi, lo))
		b.WriteString(axisStyle.Render(label))
		b.WriteString(strings.Join(grid[row], ""))
		b.WriteByte('\n')
	}

	b.WriteString(axisStyle.Render(strings.Repeat("─", yAxisWidth+cols)))
	b.WriteByte('\n')

	b.WriteString(strings.Repeat(" ", yAxisWidth))
	b.WriteString(axisStyle.Render(m.timeLabels(bars, cols)))
	b.WriteByte('\n')

	return b.String()
}

// timeLabels places one time label every labelEvery bars.
func (m model) timeLabels(bars []bar.Bar, cols int) string {
	const labelEvery = 10
	layout := "15:04"
	if !m.resolution.Intraday() {
		layout = "01/02"
	}
	line := []rune(strings.Repeat(" ", cols))
	for i := 0; i < len(bars); i += labelEvery {
		label := []rune(time.UnixMilli(bars[i].Time).In(m.loc).Format(layout))
		x := i * 2
		if x+len(label) > cols {
			break
		}
		copy(line[x:], label)
	}
	return string(line)
}

// renderBar paints one bar into the grid at column x (0-indexed, 2 wide).
func renderBar(grid [][]string, c bar.Bar, x, chartH int, hi, lo float64) {
	style := bullStyle
	if c.Close < c.Open {
		style = bearStyle
	}

	fH := float64(chartH)
	bodyTop := priceToRow(math.Max(c.Open, c.Close), fH, hi, lo)
	bodyBot := priceToRow(math.Min(c.Open, c.Close), fH, hi, lo)
	wickTop := priceToRow(c.High, fH, hi, lo)
	wickBot := priceToRow(c.Low, fH, hi, lo)

	for row := 0; row < chartH; row++ {
		inBody := row >= bodyTop && row <= bodyBot
		inWick := row >= wickTop && row <= wickBot

		left, right := " ", " "
		switch {
		case inBody:
			left = style.Render("█")
			right = style.Render("█")
		case inWick:
			left = wickStyle.Render("│")
		}

		if x < len(grid[row]) {
			grid[row][x] = left
		}
		if x+1 < len(grid[row]) {
			grid[row][x+1] = right
		}
	}
}

// priceToRow converts a price to a grid row (0 = top = high).
func priceToRow(price, chartH float64, hi, lo float64) int {
	if hi == lo {
		return int(chartH) / 2
	}
	r := int(math.Round((hi - price) / (hi - lo) * (chartH - 1)))
	if r < 0 {
		r = 0
	}
	if r >= int(chartH) {
		r = int(chartH) - 1
	}
	return r
}

// rowToPrice is the inverse of priceToRow.
func rowToPrice(row, chartH int, hi, lo float64) float64 {
	if chartH <= 1 {
		return hi
	}
	return hi - float64(row)/float64(chartH-1)*(hi-lo)
}

// priceRange returns the overall high and low across the visible bars.
func priceRange(bars []bar.Bar) (hi, lo float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	hi, lo = -math.MaxFloat64, math.MaxFloat64
	for _, c := range bars {
		hi = math.Max(hi, c.High)
		lo = math.Min(lo, c.Low)
	}
	return hi, lo
}
