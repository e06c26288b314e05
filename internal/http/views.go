package http

import (
	"fmt"
	"html/template"
	"math"

	"github.com/shopspring/decimal"

	"expenselog/internal/core"
	"expenselog/internal/rollup"
	"expenselog/internal/services"
)

// Chart canvas, in SVG user units.
const (
	chartWidth  = 520.0
	chartHeight = 240.0
	padLeft     = 56.0
	padRight    = 16.0
	padTop      = 16.0
	padBottom   = 40.0
	plotWidth   = chartWidth - padLeft - padRight
	plotHeight  = chartHeight - padTop - padBottom

	pieRadius = 100.0
	pieCenter = 110.0

	// minAxis keeps small totals from filling the whole chart.
	minAxis    = 100
	axisTicks  = 4
	maxXLabels = 8
)

var palette = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

var templateFuncs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

type formView struct {
	Date       string
	Lines      []int
	RowCount   int
	More       int
	Less       int
	Categories []string
	Warning    string
}

type pageView struct {
	Title string
	Form  formView
}

func (s *Server) newFormView(rows int, categories []string, warning string) formView {
	rows = clampRows(rows)
	lines := make([]int, rows)
	for i := range lines {
		lines[i] = i
	}
	return formView{
		Date:       s.today().String(),
		Lines:      lines,
		RowCount:   rows,
		More:       clampRows(rows + 1),
		Less:       clampRows(rows - 1),
		Categories: categories,
		Warning:    warning,
	}
}

type recordsView struct {
	Title      string
	Rows       []core.Row
	Blank      []int
	MoreBlank  int
	Categories []string
	Skipped    int
	LoadFailed bool
	Warning    string
}

type tick struct {
	Y     string
	Label string
}

type bar struct {
	Label  string
	Amount string
	X      string
	Y      string
	Width  string
	Height string
	TextX  string
	Color  string
}

type point struct {
	Label  string
	Amount string
	X      string
	Y      string
	Show   bool
}

type slice struct {
	Label   string
	Amount  string
	Percent string
	Path    string
	Color   string
	Full    bool
}

type summaryView struct {
	Heading      string
	Period       string
	CurrentTotal string
	PeriodTotal  string
	Records      int
	Skipped      int
	Empty        bool
	Warning      string

	Width, Height  float64
	AxisX, AxisY   string
	AxisRight      string
	TickX          string
	Ticks          []tick
	Bars           []bar
	TrendTicks     []tick
	Points         []point
	Polyline       string
	Slices         []slice
	PieSize        float64
	PieCX, PieCY   float64
	PieR           float64
	LabelBaselineY string
}

func newSummaryView(sum rollup.Summary, period services.Period) summaryView {
	v := summaryView{
		Heading:        "Records of " + sum.Today.MonthKey(),
		Period:         string(period),
		CurrentTotal:   core.FormatAmount(sum.CurrentTotal),
		PeriodTotal:    core.FormatAmount(sum.Categories.Sum()),
		Records:        sum.Records,
		Skipped:        sum.Skipped,
		Empty:          sum.Empty(),
		Width:          chartWidth,
		Height:         chartHeight,
		AxisX:          f1(padLeft),
		AxisY:          f1(padTop + plotHeight),
		AxisRight:      f1(padLeft + plotWidth),
		TickX:          f1(padLeft - 6),
		PieSize:        2 * pieCenter,
		PieCX:          pieCenter,
		PieCY:          pieCenter,
		PieR:           pieRadius,
		LabelBaselineY: f1(chartHeight - padBottom/2),
	}
	if v.Empty {
		return v
	}

	top := sum.Categories.Max().Amount.InexactFloat64()
	yMax := math.Max(top, minAxis)
	v.Ticks = axis(yMax)
	v.Bars = bars(sum.Categories, yMax)
	v.Slices = slices(sum.Categories)

	keys := sum.Months.Keys()
	monthMax := 0.0
	for _, k := range keys {
		monthMax = math.Max(monthMax, sum.Months[k].InexactFloat64())
	}
	trendMax := math.Max(monthMax, minAxis)
	v.TrendTicks = axis(trendMax)
	v.Points, v.Polyline = trend(sum.Months, keys, trendMax)
	return v
}

func axis(yMax float64) []tick {
	ticks := make([]tick, 0, axisTicks+1)
	for i := 0; i <= axisTicks; i++ {
		val := yMax * float64(i) / axisTicks
		ticks = append(ticks, tick{
			Y:     f1(scaleY(val, yMax)),
			Label: fmt.Sprintf("%.0f", val),
		})
	}
	return ticks
}

func scaleY(v, yMax float64) float64 {
	if yMax <= 0 {
		return padTop + plotHeight
	}
	return padTop + plotHeight - v/yMax*plotHeight
}

func bars(cats rollup.Categories, yMax float64) []bar {
	if len(cats) == 0 {
		return nil
	}
	slot := plotWidth / float64(len(cats))
	width := slot * 0.6
	out := make([]bar, 0, len(cats))
	for i, c := range cats {
		v := c.Amount.InexactFloat64()
		x := padLeft + float64(i)*slot + (slot-width)/2
		y := scaleY(v, yMax)
		out = append(out, bar{
			Label:  c.Category,
			Amount: core.FormatAmount(c.Amount),
			X:      f1(x),
			Y:      f1(y),
			Width:  f1(width),
			Height: f1(padTop + plotHeight - y),
			TextX:  f1(x + width/2),
			Color:  palette[i%len(palette)],
		})
	}
	return out
}

func trend(months rollup.Months, keys []string, yMax float64) ([]point, string) {
	if len(keys) == 0 {
		return nil, ""
	}
	step := 0.0
	if len(keys) > 1 {
		step = plotWidth / float64(len(keys)-1)
	}
	every := (len(keys) + maxXLabels - 1) / maxXLabels

	points := make([]point, 0, len(keys))
	line := ""
	for i, k := range keys {
		x := padLeft + float64(i)*step
		if len(keys) == 1 {
			x = padLeft + plotWidth/2
		}
		y := scaleY(months[k].InexactFloat64(), yMax)
		points = append(points, point{
			Label:  k,
			Amount: core.FormatAmount(months[k]),
			X:      f1(x),
			Y:      f1(y),
			Show:   i%every == 0 || i == len(keys)-1,
		})
		if line != "" {
			line += " "
		}
		line += f1(x) + "," + f1(y)
	}
	return points, line
}

// slices lays category shares clockwise from twelve o'clock.
func slices(cats rollup.Categories) []slice {
	total := cats.Sum()
	if !total.IsPositive() {
		return nil
	}
	hundred := decimal.NewFromInt(100)
	out := make([]slice, 0, len(cats))
	angle := -math.Pi / 2
	for i, c := range cats {
		share := c.Amount.Div(total)
		sweep := share.InexactFloat64() * 2 * math.Pi
		sl := slice{
			Label:   c.Category,
			Amount:  core.FormatAmount(c.Amount),
			Percent: share.Mul(hundred).StringFixed(1) + "%",
			Color:   palette[i%len(palette)],
		}
		if sweep >= 2*math.Pi-1e-9 {
			sl.Full = true
		} else {
			x0, y0 := polar(angle)
			x1, y1 := polar(angle + sweep)
			large := 0
			if sweep > math.Pi {
				large = 1
			}
			sl.Path = fmt.Sprintf("M %s %s L %s %s A %s %s 0 %d 1 %s %s Z",
				f1(pieCenter), f1(pieCenter), x0, y0,
				f1(pieRadius), f1(pieRadius), large, x1, y1)
		}
		angle += sweep
		out = append(out, sl)
	}
	return out
}

func polar(angle float64) (string, string) {
	return f1(pieCenter + pieRadius*math.Cos(angle)), f1(pieCenter + pieRadius*math.Sin(angle))
}

func f1(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// summaryJSON is the /api/summary payload. Amounts are decimal strings.
type summaryJSON struct {
	Today        string         `json:"today"`
	Period       string         `json:"period"`
	CurrentMonth string         `json:"current_month"`
	CurrentTotal string         `json:"current_total"`
	Categories   []categoryJSON `json:"categories"`
	Months       []monthJSON    `json:"months"`
	Records      int            `json:"records"`
	Skipped      int            `json:"skipped"`
}

type categoryJSON struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

type monthJSON struct {
	Month  string `json:"month"`
	Amount string `json:"amount"`
}

func newSummaryJSON(sum rollup.Summary, period services.Period) summaryJSON {
	out := summaryJSON{
		Today:        sum.Today.String(),
		Period:       string(period),
		CurrentMonth: sum.Today.MonthKey(),
		CurrentTotal: core.FormatAmount(sum.CurrentTotal),
		Categories:   []categoryJSON{},
		Months:       []monthJSON{},
		Records:      sum.Records,
		Skipped:      sum.Skipped,
	}
	for _, c := range sum.Categories {
		out.Categories = append(out.Categories, categoryJSON{Category: c.Category, Amount: core.FormatAmount(c.Amount)})
	}
	for _, k := range sum.Months.Keys() {
		out.Months = append(out.Months, monthJSON{Month: k, Amount: core.FormatAmount(sum.Months[k])})
	}
	return out
}
