// Package rollup computes the per-category, per-month and current-period
// totals every chart is drawn from.
//
// All functions are pure: they read the rows handed to them, never mutate
// them, and recompute from scratch on every call. Rows that cannot be
// converted into a valid record (unparseable date or amount, empty
// description, non-positive amount) are skipped and counted, never fatal.
// Sums use exact decimal arithmetic.
package rollup

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"expenselog/internal/core"
)

// Filter restricts a rollup to records whose date it accepts.
type Filter func(core.Date) bool

// All accepts every record (lifetime totals).
func All() Filter {
	return func(core.Date) bool { return true }
}

// Month accepts records in the given calendar month.
func Month(year int, month time.Month) Filter {
	return func(d core.Date) bool {
		return d.Year() == year && d.Time.Month() == month
	}
}

// CurrentMonth accepts records in the same calendar month as today.
func CurrentMonth(today core.Date) Filter {
	return Month(today.Year(), today.Time.Month())
}

// Between accepts records dated from..to inclusive.
func Between(from, to core.Date) Filter {
	return func(d core.Date) bool {
		return !d.Before(from.Time) && !d.After(to.Time)
	}
}

// CategoryTotal is the sum for one category.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// Categories holds category totals in first-seen order.
type Categories []CategoryTotal

// Get returns the total for a category and whether it is present.
func (c Categories) Get(category string) (decimal.Decimal, bool) {
	for _, ct := range c {
		if ct.Category == category {
			return ct.Amount, true
		}
	}
	return decimal.Zero, false
}

// Sum returns the total across all categories.
func (c Categories) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, ct := range c {
		total = total.Add(ct.Amount)
	}
	return total
}

// Max returns the largest category total, or the zero value when empty.
func (c Categories) Max() CategoryTotal {
	var best CategoryTotal
	for i, ct := range c {
		if i == 0 || ct.Amount.GreaterThan(best.Amount) {
			best = ct
		}
	}
	return best
}

// Months maps "YYYY-MM" keys to totals.
type Months map[string]decimal.Decimal

// Keys returns the month keys in chronological order.
func (m Months) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CategoryTotals groups records accepted by filter by category. The second
// return value counts rows skipped as malformed.
func CategoryTotals(rows []core.Row, filter Filter) (Categories, int) {
	records, skipped := parse(rows)
	return categoryTotals(records, filter), skipped
}

func categoryTotals(records []core.Record, filter Filter) Categories {
	if filter == nil {
		filter = All()
	}
	out := Categories{}
	index := map[string]int{}
	for _, r := range records {
		if !filter(r.Date) {
			continue
		}
		i, ok := index[r.Category]
		if !ok {
			index[r.Category] = len(out)
			out = append(out, CategoryTotal{Category: r.Category, Amount: r.Amount})
			continue
		}
		out[i].Amount = out[i].Amount.Add(r.Amount)
	}
	return out
}

// MonthTotals sums every record by its year-month over the whole history.
func MonthTotals(rows []core.Row) (Months, int) {
	records, skipped := parse(rows)
	return monthTotals(records), skipped
}

func monthTotals(records []core.Record) Months {
	out := Months{}
	for _, r := range records {
		key := r.Date.MonthKey()
		if cur, ok := out[key]; ok {
			out[key] = cur.Add(r.Amount)
		} else {
			out[key] = r.Amount
		}
	}
	return out
}

// CurrentPeriodTotal sums the records in today's calendar month. It returns
// zero when nothing matches.
func CurrentPeriodTotal(rows []core.Row, today core.Date) (decimal.Decimal, int) {
	records, skipped := parse(rows)
	return currentTotal(records, today), skipped
}

func currentTotal(records []core.Record, today core.Date) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Date.SameMonth(today) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// Summary bundles the three rollups for one snapshot.
type Summary struct {
	Today        core.Date
	Categories   Categories
	Months       Months
	CurrentTotal decimal.Decimal
	// Records is the number of rows that parsed; Skipped the number that did not.
	Records int
	Skipped int
}

// Summarize computes all rollups over the same snapshot. filter applies to
// the category rollup only; months always span the whole history.
func Summarize(rows []core.Row, today core.Date, filter Filter) Summary {
	records, skipped := parse(rows)
	return Summary{
		Today:        today,
		Categories:   categoryTotals(records, filter),
		Months:       monthTotals(records),
		CurrentTotal: currentTotal(records, today),
		Records:      len(records),
		Skipped:      skipped,
	}
}

// Empty reports whether there is nothing to chart.
func (s Summary) Empty() bool {
	return len(s.Categories) == 0 && len(s.Months) == 0
}

func parse(rows []core.Row) ([]core.Record, int) {
	out := make([]core.Record, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, err := core.ParseRow(row)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped
}
