package report

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"expenselog/internal/core"
	"expenselog/internal/rollup"
)

var scenario = []core.Row{
	{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"},
	{Date: "2024-03-15", Description: "bus", Amount: "2.00", Category: "transport"},
	{Date: "2024-04-01", Description: "movie", Amount: "12.00", Category: "entertainment"},
}

func TestWriteWorkbook(t *testing.T) {
	sum := rollup.Summarize(scenario, core.NewDate(2024, 3, 20), rollup.All())

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, scenario, sum); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	want := []string{SheetExpenses, SheetCategories, SheetMonths, SheetCharts}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}

	cats, _ := f.GetRows(SheetCategories)
	if len(cats) != 4 || cats[1][0] != "food" || cats[3][0] != "entertainment" {
		t.Fatalf("categories sheet = %v", cats)
	}
	months, _ := f.GetRows(SheetMonths)
	if len(months) != 3 || months[1][0] != "2024-03" || months[2][0] != "2024-04" {
		t.Fatalf("months sheet = %v", months)
	}
	heading, _ := f.GetCellValue(SheetCharts, "A1")
	if heading != "Records of 2024-03" {
		t.Fatalf("heading = %q", heading)
	}
}

func TestWriteWorkbookEmpty(t *testing.T) {
	sum := rollup.Summarize(nil, core.NewDate(2024, 3, 20), rollup.All())
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, nil, sum); err != nil {
		t.Fatalf("empty summary must still produce a workbook: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("no bytes written")
	}
}

func TestReadRowsRoundTrip(t *testing.T) {
	junk := core.Row{Date: "someday", Description: "x", Amount: "abc", Category: ""}
	rows := append(append([]core.Row(nil), scenario...), junk)
	sum := rollup.Summarize(rows, core.NewDate(2024, 3, 20), rollup.All())

	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, rows, sum); err != nil {
		t.Fatal(err)
	}
	got, err := ReadRows(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(rows) {
		t.Fatalf("got %d rows, want %d", len(got), len(rows))
	}
	for i := range rows {
		if got[i] != rows[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], rows[i])
		}
	}
}
