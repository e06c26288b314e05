package http

import (
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"expenselog/internal/core"
	"expenselog/internal/rollup"
	"expenselog/internal/services"
)

func TestSummaryViewAxisFloor(t *testing.T) {
	today := core.NewDate(2024, 3, 20)
	rows := []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "25", Category: "food"},
		{Date: "2024-03-02", Description: "bus", Amount: "50", Category: "transport"},
	}
	v := newSummaryView(rollup.Summarize(rows, today, rollup.CurrentMonth(today)), services.PeriodMonth)

	if v.Heading != "Records of 2024-03" || v.CurrentTotal != "75.00" {
		t.Fatalf("heading=%q total=%q", v.Heading, v.CurrentTotal)
	}
	if len(v.Bars) != 2 {
		t.Fatalf("bars = %d", len(v.Bars))
	}
	// Totals under 100 are drawn against a 100 axis, so 50 fills half the plot.
	h, _ := strconv.ParseFloat(v.Bars[1].Height, 64)
	if h != plotHeight/2 {
		t.Errorf("bar height = %v, want %v", h, plotHeight/2)
	}
	if v.Ticks[len(v.Ticks)-1].Label != "100" {
		t.Errorf("top tick = %q", v.Ticks[len(v.Ticks)-1].Label)
	}
}

func TestSummaryViewAxisFollowsMax(t *testing.T) {
	today := core.NewDate(2024, 3, 20)
	rows := []core.Row{{Date: "2024-03-01", Description: "rent", Amount: "800", Category: "home"}}
	v := newSummaryView(rollup.Summarize(rows, today, rollup.All()), services.PeriodAll)

	if v.Ticks[len(v.Ticks)-1].Label != "800" {
		t.Errorf("top tick = %q", v.Ticks[len(v.Ticks)-1].Label)
	}
	h, _ := strconv.ParseFloat(v.Bars[0].Height, 64)
	if h != plotHeight {
		t.Errorf("largest bar should fill the plot, got %v", h)
	}
	// One month: the single trend point sits in the middle.
	if len(v.Points) != 1 || v.Points[0].X != f1(padLeft+plotWidth/2) {
		t.Errorf("points = %+v", v.Points)
	}
	if len(v.Slices) != 1 || !v.Slices[0].Full || v.Slices[0].Percent != "100.0%" {
		t.Errorf("slices = %+v", v.Slices)
	}
}

func TestSlicesShares(t *testing.T) {
	cats := rollup.Categories{
		{Category: "food", Amount: decimal.RequireFromString("30")},
		{Category: "rent", Amount: decimal.RequireFromString("60")},
		{Category: "fun", Amount: decimal.RequireFromString("10")},
	}
	got := slices(cats)
	want := []string{"30.0%", "60.0%", "10.0%"}
	for i, s := range got {
		if s.Percent != want[i] {
			t.Errorf("slice %d percent = %q, want %q", i, s.Percent, want[i])
		}
		if s.Full || !strings.HasPrefix(s.Path, "M 110.0 110.0 L ") {
			t.Errorf("slice %d path = %q", i, s.Path)
		}
	}
	// The first slice starts at twelve o'clock.
	if !strings.Contains(got[0].Path, "L 110.0 10.0 ") {
		t.Errorf("first slice should start at the top: %q", got[0].Path)
	}
	// Only the 60% slice takes the long arc.
	if !strings.Contains(got[1].Path, " 0 1 1 ") || strings.Contains(got[0].Path, " 0 1 1 ") {
		t.Errorf("large-arc flags wrong: %q / %q", got[0].Path, got[1].Path)
	}
}

func TestTrendLabelsThinOut(t *testing.T) {
	months := rollup.Months{}
	var keys []string
	for m := 1; m <= 12; m++ {
		k := core.MonthKey(2023, m)
		months[k] = decimal.NewFromInt(int64(m * 10))
		keys = append(keys, k)
	}
	points, line := trend(months, keys, 120)
	shown := 0
	for _, p := range points {
		if p.Show {
			shown++
		}
	}
	if shown > maxXLabels+1 || !points[len(points)-1].Show {
		t.Errorf("shown labels = %d", shown)
	}
	if strings.Count(line, ",") != 12 {
		t.Errorf("polyline = %q", line)
	}
}

func TestEmptySummaryView(t *testing.T) {
	v := newSummaryView(rollup.Summary{Today: core.NewDate(2024, 1, 5)}, services.PeriodMonth)
	if !v.Empty || v.Bars != nil || v.Slices != nil || v.Polyline != "" {
		t.Fatalf("empty summary should draw nothing: %+v", v)
	}
}
