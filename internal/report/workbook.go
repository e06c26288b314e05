// Package report renders a summary as an XLSX workbook with native charts,
// and reads expense rows back from workbooks.
package report

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"expenselog/internal/core"
	"expenselog/internal/rollup"
)

const (
	SheetExpenses   = "Expenses"
	SheetCategories = "Categories"
	SheetMonths     = "Months"
	SheetCharts     = "Charts"

	// minAxis keeps small totals from filling the whole bar chart.
	minAxis = 100.0
)

// Build lays out the raw rows, both rollups and a chart sheet.
func Build(rows []core.Row, sum rollup.Summary) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetExpenses); err != nil {
		f.Close()
		return nil, err
	}
	for _, name := range []string{SheetCategories, SheetMonths, SheetCharts} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", name, err)
		}
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		f.Close()
		return nil, err
	}

	steps := []func() error{
		func() error { return writeExpenses(f, rows) },
		func() error { return writeCategories(f, sum.Categories, money) },
		func() error { return writeMonths(f, sum.Months, money) },
		func() error { return writeCharts(f, sum) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(3)
	return f, nil
}

// WriteWorkbook builds the workbook and writes it to w.
func WriteWorkbook(w io.Writer, rows []core.Row, sum rollup.Summary) error {
	f, err := Build(rows, sum)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeExpenses(f *excelize.File, rows []core.Row) error {
	header := []interface{}{"date", "item", "amount", "category"}
	if err := f.SetSheetRow(SheetExpenses, "A1", &header); err != nil {
		return err
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{r.Date, r.Description, r.Amount, r.Category}
		if err := f.SetSheetRow(SheetExpenses, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return f.SetColWidth(SheetExpenses, "B", "B", 32)
}

func writeCategories(f *excelize.File, cats rollup.Categories, style int) error {
	header := []interface{}{"category", "amount"}
	if err := f.SetSheetRow(SheetCategories, "A1", &header); err != nil {
		return err
	}
	for i, c := range cats {
		row := []interface{}{c.Category, c.Amount.InexactFloat64()}
		if err := f.SetSheetRow(SheetCategories, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	if len(cats) > 0 {
		return f.SetCellStyle(SheetCategories, "B2", fmt.Sprintf("B%d", len(cats)+1), style)
	}
	return nil
}

func writeMonths(f *excelize.File, months rollup.Months, style int) error {
	header := []interface{}{"month", "amount"}
	if err := f.SetSheetRow(SheetMonths, "A1", &header); err != nil {
		return err
	}
	keys := months.Keys()
	for i, k := range keys {
		row := []interface{}{k, months[k].InexactFloat64()}
		if err := f.SetSheetRow(SheetMonths, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	if len(keys) > 0 {
		return f.SetCellStyle(SheetMonths, "B2", fmt.Sprintf("B%d", len(keys)+1), style)
	}
	return nil
}

func writeCharts(f *excelize.File, sum rollup.Summary) error {
	heading := "Records of " + sum.Today.MonthKey()
	if err := f.SetCellValue(SheetCharts, "A1", heading); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetCharts, "A2", "Current month total"); err != nil {
		return err
	}
	if err := f.SetCellValue(SheetCharts, "B2", sum.CurrentTotal.InexactFloat64()); err != nil {
		return err
	}
	if sum.Skipped > 0 {
		if err := f.SetCellValue(SheetCharts, "A3", fmt.Sprintf("%d malformed rows skipped", sum.Skipped)); err != nil {
			return err
		}
	}
	if sum.Empty() {
		return f.SetCellValue(SheetCharts, "A5", "No records to chart")
	}

	if n := len(sum.Categories); n > 0 {
		cats := fmt.Sprintf("%s!$A$2:$A$%d", SheetCategories, n+1)
		vals := fmt.Sprintf("%s!$B$2:$B$%d", SheetCategories, n+1)
		yMax := math.Max(sum.Categories.Max().Amount.InexactFloat64(), minAxis)
		yMin := 0.0

		bar := &excelize.Chart{
			Type:      excelize.Col,
			Series:    []excelize.ChartSeries{{Name: SheetCategories + "!$B$1", Categories: cats, Values: vals}},
			Title:     []excelize.RichTextRun{{Text: "Spending by category"}},
			Legend:    excelize.ChartLegend{Position: "none"},
			YAxis:     excelize.ChartAxis{Minimum: &yMin, Maximum: &yMax},
			Dimension: excelize.ChartDimension{Width: 480, Height: 290},
		}
		if err := f.AddChart(SheetCharts, "A5", bar); err != nil {
			return fmt.Errorf("category chart: %w", err)
		}

		pie := &excelize.Chart{
			Type:      excelize.Pie,
			Series:    []excelize.ChartSeries{{Name: SheetCategories + "!$B$1", Categories: cats, Values: vals}},
			Title:     []excelize.RichTextRun{{Text: "Share by category"}},
			Legend:    excelize.ChartLegend{Position: "right"},
			PlotArea:  excelize.ChartPlotArea{ShowPercent: true},
			Dimension: excelize.ChartDimension{Width: 480, Height: 290},
		}
		if err := f.AddChart(SheetCharts, "J5", pie); err != nil {
			return fmt.Errorf("pie chart: %w", err)
		}
	}

	if n := len(sum.Months); n > 0 {
		line := &excelize.Chart{
			Type: excelize.Line,
			Series: []excelize.ChartSeries{{
				Name:       SheetMonths + "!$B$1",
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetMonths, n+1),
				Values:     fmt.Sprintf("%s!$B$2:$B$%d", SheetMonths, n+1),
			}},
			Title:     []excelize.RichTextRun{{Text: "Monthly trend"}},
			Legend:    excelize.ChartLegend{Position: "none"},
			Dimension: excelize.ChartDimension{Width: 960, Height: 290},
		}
		if err := f.AddChart(SheetCharts, "A21", line); err != nil {
			return fmt.Errorf("month chart: %w", err)
		}
	}
	return nil
}

// ReadRows reads expense rows from the Expenses sheet of a workbook, or from
// its first sheet when there is none. A recognised header row is skipped.
func ReadRows(r io.Reader) ([]core.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]
	for _, s := range sheets {
		if s == SheetExpenses {
			sheet = s
			break
		}
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	var out []core.Row
	for i, rec := range cells {
		if i == 0 && looksLikeHeader(rec) {
			continue
		}
		row := core.Row{
			Date:        cell(rec, 0),
			Description: cell(rec, 1),
			Amount:      cell(rec, 2),
			Category:    cell(rec, 3),
		}
		if row.IsBlank() {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func looksLikeHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	return first == "date" || first == "日期"
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}
