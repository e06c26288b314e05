package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"expenselog/internal/core"
	"expenselog/internal/services"
)

// maxBodyBytes caps form and JSON bodies. A full table save is the largest.
const maxBodyBytes = 1 << 20

// ParseRowCount reads an integer row count from key, falling back to def
// and clamping to the form bounds.
func ParseRowCount(query url.Values, key string, def int) int {
	n := def
	if v := strings.TrimSpace(query.Get(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			n = parsed
		}
	}
	return clampRows(n)
}

// ParseEntryDate reads the form date, defaulting to today when empty.
func ParseEntryDate(form url.Values, today core.Date) (core.Date, error) {
	v := strings.TrimSpace(form.Get("date"))
	if v == "" {
		return today, nil
	}
	return core.ParseDate(v)
}

// ParseLines zips the repeated description, amount and category fields of
// the entry form into lines. Missing trailing fields read as empty.
func ParseLines(form url.Values) []services.Line {
	desc, amt, cat := form["description"], form["amount"], form["category"]
	n := max(len(desc), len(amt), len(cat))
	lines := make([]services.Line, 0, n)
	for i := 0; i < n; i++ {
		lines = append(lines, services.Line{
			Description: sanitizeInput(at(desc, i)),
			Amount:      strings.TrimSpace(at(amt, i)),
			Category:    sanitizeInput(at(cat, i)),
		})
	}
	return lines
}

// ParseTableRows zips the edited table columns back into rows, in table
// order. Values are kept as typed so the service can point at bad rows.
func ParseTableRows(form url.Values) []core.Row {
	date, desc, amt, cat := form["date"], form["description"], form["amount"], form["category"]
	n := max(len(date), len(desc), len(amt), len(cat))
	rows := make([]core.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, core.Row{
			Date:        strings.TrimSpace(at(date, i)),
			Description: sanitizeInput(at(desc, i)),
			Amount:      strings.TrimSpace(at(amt, i)),
			Category:    sanitizeInput(at(cat, i)),
		})
	}
	return rows
}

func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.jsonData = nil
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(w http.ResponseWriter, r *http.Request) *HTMXResponseBuilder {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
