package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used by every store.
const DateLayout = "2006-01-02"

type (
	Date struct {
		time.Time
	}

	// Record is a validated expense line item.
	Record struct {
		Date        Date
		Description string
		Amount      decimal.Decimal
		Category    string
	}

	// Row is the persisted, loosely typed shape of a record: the four table
	// columns exactly as a store holds them.
	Row struct {
		Date        string
		Description string
		Amount      string
		Category    string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyCategory    = errors.New("empty category")
	ErrNoValidRecords   = errors.New("no valid records")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: zero date", ErrInvalidDate)
	}
	return nil
}

// Month returns the month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

// MonthKey returns the zero-padded "YYYY-MM" key, which sorts
// chronologically as a plain string.
func (d Date) MonthKey() string {
	return MonthKey(d.Year(), d.Month())
}

// SameMonth reports whether both dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey formats year and month as "YYYY-MM".
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

func (r Record) Validate() error {
	if err := r.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(r.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(r.Description) > 200 {
		return errors.New("description too long (max 200 characters)")
	}
	// Stored amounts carry two places, so anything under a cent is rejected.
	if !r.Amount.Round(2).IsPositive() || r.Amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrEmptyCategory
	}
	return nil
}

// Row converts the record to its persisted shape, rounding the amount to
// cents.
func (r Record) Row() Row {
	return Row{
		Date:        r.Date.String(),
		Description: r.Description,
		Amount:      FormatAmount(r.Amount),
		Category:    r.Category,
	}
}

// IsBlank reports whether every column is empty. Blank rows in an edited
// table mean "delete this row".
func (r Row) IsBlank() bool {
	return strings.TrimSpace(r.Date) == "" &&
		strings.TrimSpace(r.Description) == "" &&
		strings.TrimSpace(r.Amount) == "" &&
		strings.TrimSpace(r.Category) == ""
}

// ParseRow converts a stored row into a record. The amount keeps its stored
// precision. An empty category is reported as Uncategorized rather than
// rejected, since it does not make the amount meaningless.
func ParseRow(row Row) (Record, error) {
	date, err := ParseDate(row.Date)
	if err != nil {
		return Record{}, err
	}
	amount, err := ParseExactAmount(row.Amount)
	if err != nil {
		return Record{}, err
	}
	desc := strings.TrimSpace(row.Description)
	if desc == "" {
		return Record{}, ErrEmptyDescription
	}
	category := NormalizeCategory(row.Category)
	if category == "" {
		category = Uncategorized
	}
	return Record{Date: date, Description: desc, Amount: amount, Category: category}, nil
}
