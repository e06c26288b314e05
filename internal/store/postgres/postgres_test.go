package postgres

import (
	"errors"
	"testing"

	"github.com/lib/pq"

	"expenselog/internal/core"
	"expenselog/internal/store"
)

func TestToRowsTypesSnapshot(t *testing.T) {
	rows, err := toRows([]core.Row{
		{Date: "2024-03-01", Description: " coffee ", Amount: "5,5", Category: " food "},
		{Date: "2024-03-15T08:00:00Z", Description: "bus", Amount: "2", Category: ""},
	})
	if err != nil {
		t.Fatalf("toRows: %v", err)
	}
	if rows[0].item != "coffee" || rows[0].category != "food" || rows[0].amount.StringFixed(2) != "5.50" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if rows[1].category != "" || rows[1].date.Day() != 15 {
		t.Fatalf("unexpected second row: %+v", rows[1])
	}
	if rows[0].id == rows[1].id {
		t.Fatalf("row ids must be unique")
	}
}

func TestToRowsRejectsMalformed(t *testing.T) {
	_, err := toRows([]core.Row{
		{Date: "2024-03-01", Description: "ok", Amount: "1", Category: "food"},
		{Date: "2024-03-01", Description: "bad", Amount: "abc", Category: "food"},
	})
	if !errors.Is(err, store.ErrMalformedRow) {
		t.Fatalf("expected ErrMalformedRow, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pq.Error{Code: "23505"}) {
		t.Fatalf("23505 should be a unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatalf("23503 is not a unique violation")
	}
	if isUniqueViolation(nil) {
		t.Fatalf("nil is not a unique violation")
	}
}
