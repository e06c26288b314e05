package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"expenselog/internal/core"
	"expenselog/internal/services"
)

func TestParseRowCount(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
		def   int
		want  int
	}{
		{"default", url.Values{}, 3, 3},
		{"explicit", url.Values{"rows": {"5"}}, 3, 5},
		{"garbage falls back", url.Values{"rows": {"lots"}}, 3, 3},
		{"zero clamps to one", url.Values{"rows": {"0"}}, 3, 1},
		{"negative clamps to one", url.Values{"rows": {"-4"}}, 3, 1},
		{"huge clamps to max", url.Values{"rows": {"9999"}}, 3, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRowCount(tt.query, "rows", tt.def); got != tt.want {
				t.Errorf("ParseRowCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseEntryDate(t *testing.T) {
	today := core.NewDate(2024, 3, 20)

	got, err := ParseEntryDate(url.Values{}, today)
	if err != nil || got != today {
		t.Fatalf("empty date should default to today, got %v err=%v", got, err)
	}
	got, err = ParseEntryDate(url.Values{"date": {"2024-02-29"}}, today)
	if err != nil || got != core.NewDate(2024, 2, 29) {
		t.Fatalf("explicit date: got %v err=%v", got, err)
	}
	if _, err := ParseEntryDate(url.Values{"date": {"29/02/2024"}}, today); err == nil {
		t.Fatal("expected error for unsupported layout")
	}
}

func TestParseLines(t *testing.T) {
	form := url.Values{
		"description": {" coffee ", "bus", ""},
		"amount":      {"5.50", "2,00"},
		"category":    {"food", "transport", "other"},
	}
	got := ParseLines(form)
	want := []services.Line{
		{Description: "coffee", Amount: "5.50", Category: "food"},
		{Description: "bus", Amount: "2,00", Category: "transport"},
		{Description: "", Amount: "", Category: "other"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseTableRows(t *testing.T) {
	form := url.Values{
		"date":        {"2024-03-01", ""},
		"description": {"coffee\x00", ""},
		"amount":      {"5.50", ""},
		"category":    {"food", ""},
	}
	rows := ParseTableRows(form)
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0] != (core.Row{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"}) {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if !rows[1].IsBlank() {
		t.Errorf("row 1 should be blank: %+v", rows[1])
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"name": " rent ", "limit": 42.5, "active": true}`
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if got := parser.Get("name"); got != "rent" {
		t.Errorf("Get('name') = %q", got)
	}
	if got := parser.Get("limit"); got != "42.5" {
		t.Errorf("Get('limit') = %q", got)
	}
	if got := parser.Get("active"); got != "true" {
		t.Errorf("Get('active') = %q", got)
	}
	if got := parser.Get("missing"); got != "" {
		t.Errorf("Get('missing') = %q", got)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader("name=pet+care"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.Get("name"); got != "pet care" {
		t.Errorf("Get('name') = %q", got)
	}
}

func TestRequestBodyParser_BadJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(""))
	parser := NewRequestBodyParser(req)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("name"); val != "" {
		t.Errorf("Get('name') = %q, want empty string", val)
	}
}

func TestParseFormOrFail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("description=x&amount=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if resp := ParseFormOrFail(httptest.NewRecorder(), req); resp != nil {
		t.Fatal("expected nil for a valid form")
	}
	if req.Form.Get("description") != "x" {
		t.Errorf("form not parsed: %v", req.Form)
	}

	req = httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("%zz"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := ParseFormOrFail(httptest.NewRecorder(), req)
	if resp == nil {
		t.Fatal("expected an error response for a malformed body")
	}
	w := httptest.NewRecorder()
	resp.Write(w)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d", w.Code)
	}
}
