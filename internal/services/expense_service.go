// Package services holds the use cases behind the form, the table editor,
// the CLI and the charts. Every write is load, modify, replace-all.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"expenselog/internal/cache"
	"expenselog/internal/core"
	"expenselog/internal/rollup"
	"expenselog/internal/store"
)

const (
	rowsKey         = "rows"
	defaultCacheTTL = 5 * time.Minute
	maxSummaries    = 32
)

// Period selects the range of the category rollup.
type Period string

const (
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// ParsePeriod maps a query value to a Period, defaulting to the current month.
func ParsePeriod(s string) Period {
	if Period(strings.ToLower(strings.TrimSpace(s))) == PeriodAll {
		return PeriodAll
	}
	return PeriodMonth
}

func (p Period) filter(today core.Date) rollup.Filter {
	if p == PeriodAll {
		return rollup.All()
	}
	return rollup.CurrentMonth(today)
}

// Line is one candidate entry from the multi-line form. The date is shared
// by the whole submission.
type Line struct {
	Description string
	Amount      string
	Category    string
}

func (l Line) blank() bool {
	return strings.TrimSpace(l.Description) == "" &&
		strings.TrimSpace(l.Amount) == ""
}

// Result describes a write. Warning is set when the local save succeeded
// but mirroring it did not.
type Result struct {
	Saved   int
	Dropped int
	Total   int
	Warning *store.SyncError
}

// RowError reports the first invalid row of a table save.
type RowError struct {
	Index int
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Index+1, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ExpenseService orchestrates record and category operations over a backend.
type ExpenseService struct {
	store store.Backend

	// writes serializes load-modify-replace cycles within this process.
	writes sync.Mutex

	// gen counts invalidations. A read only fills the caches when no write
	// finished while it was loading.
	cacheMu   sync.Mutex
	gen       uint64
	rows      *cache.LRUCache[[]core.Row]
	summaries *cache.LRUCache[rollup.Summary]
}

type Option func(*options)

type options struct {
	ttl     time.Duration
	manager *cache.Manager
}

// WithCacheTTL bounds how long a snapshot read from the store is reused.
// Writes through the service always invalidate it.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithCacheManager registers the service caches for periodic cleanup.
func WithCacheManager(m *cache.Manager) Option {
	return func(o *options) { o.manager = m }
}

func NewExpenseService(backend store.Backend, opts ...Option) *ExpenseService {
	o := options{ttl: defaultCacheTTL}
	for _, opt := range opts {
		opt(&o)
	}
	s := &ExpenseService{
		store:     backend,
		rows:      cache.NewLRUCache[[]core.Row](1, o.ttl),
		summaries: cache.NewLRUCache[rollup.Summary](maxSummaries, o.ttl),
	}
	if o.manager != nil {
		o.manager.Register(s.rows)
		o.manager.Register(s.summaries)
	}
	return s
}

// Rows returns the full table in stored order.
func (s *ExpenseService) Rows(ctx context.Context) ([]core.Row, error) {
	rows, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return append([]core.Row(nil), rows...), nil
}

func (s *ExpenseService) load(ctx context.Context) ([]core.Row, error) {
	if rows, ok := s.rows.Get(rowsKey); ok {
		return rows, nil
	}
	gen := s.generation()
	rows, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	s.fill(gen, func() { s.rows.Set(rowsKey, rows) })
	return rows, nil
}

func (s *ExpenseService) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.gen
}

// fill runs set unless the caches were invalidated since gen was taken.
func (s *ExpenseService) fill(gen uint64, set func()) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.gen == gen {
		set()
	}
}

// Summary aggregates the current table. Months always span all history;
// period only restricts the category rollup.
func (s *ExpenseService) Summary(ctx context.Context, today core.Date, period Period) (rollup.Summary, error) {
	key := string(period) + "@" + today.String()
	if sum, ok := s.summaries.Get(key); ok {
		return sum, nil
	}
	gen := s.generation()
	rows, err := s.load(ctx)
	if err != nil {
		return rollup.Summary{}, err
	}
	sum := rollup.Summarize(rows, today, period.filter(today))
	if sum.Skipped > 0 {
		slog.WarnContext(ctx, "Skipped malformed rows while aggregating",
			"skipped", sum.Skipped, "records", sum.Records)
	}
	s.fill(gen, func() { s.summaries.Set(key, sum) })
	return sum, nil
}

// Submit appends the valid lines of a form submission dated date. Blank and
// invalid lines are dropped; if none remain it returns ErrNoValidRecords.
func (s *ExpenseService) Submit(ctx context.Context, date core.Date, lines []Line) (Result, error) {
	if err := date.Validate(); err != nil {
		return Result{}, err
	}
	var res Result
	var add []core.Row
	for i, l := range lines {
		if l.blank() {
			continue
		}
		rec, err := core.ParseRow(core.Row{
			Date:        date.String(),
			Description: l.Description,
			Amount:      l.Amount,
			Category:    l.Category,
		})
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			slog.DebugContext(ctx, "Dropping invalid form line", "line", i+1, "error", err)
			res.Dropped++
			continue
		}
		add = append(add, rec.Row())
	}
	if len(add) == 0 {
		return res, core.ErrNoValidRecords
	}
	return s.append(ctx, add, res)
}

// Import appends already-shaped rows, as read from a CSV export. Rows that
// do not parse or validate are dropped and counted.
func (s *ExpenseService) Import(ctx context.Context, rows []core.Row) (Result, error) {
	var res Result
	var add []core.Row
	for _, row := range rows {
		if row.IsBlank() {
			continue
		}
		rec, err := core.ParseRow(row)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			slog.DebugContext(ctx, "Dropping invalid import row", "error", err)
			res.Dropped++
			continue
		}
		add = append(add, rec.Row())
	}
	if len(add) == 0 {
		return res, core.ErrNoValidRecords
	}
	return s.append(ctx, add, res)
}

func (s *ExpenseService) append(ctx context.Context, add []core.Row, res Result) (Result, error) {
	s.writes.Lock()
	defer s.writes.Unlock()

	current, err := s.store.LoadAll(ctx)
	if err != nil {
		return res, fmt.Errorf("load records: %w", err)
	}
	next := make([]core.Row, 0, len(current)+len(add))
	next = append(next, current...)
	next = append(next, add...)

	res.Saved = len(add)
	res.Total = len(next)
	if err := s.replace(ctx, next, &res); err != nil {
		return res, err
	}
	slog.InfoContext(ctx, "Records appended",
		"saved", res.Saved, "dropped", res.Dropped, "total", res.Total)
	return res, nil
}

// SaveTable overwrites the table with an edited copy. Blank rows are
// deletions; any other invalid row rejects the whole save with a *RowError.
func (s *ExpenseService) SaveTable(ctx context.Context, rows []core.Row) (Result, error) {
	var res Result
	next := make([]core.Row, 0, len(rows))
	for i, row := range rows {
		if row.IsBlank() {
			res.Dropped++
			continue
		}
		rec, err := core.ParseRow(row)
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			return Result{}, &RowError{Index: i, Err: err}
		}
		next = append(next, rec.Row())
	}

	s.writes.Lock()
	defer s.writes.Unlock()

	res.Saved = len(next)
	res.Total = len(next)
	if err := s.replace(ctx, next, &res); err != nil {
		return res, err
	}
	slog.InfoContext(ctx, "Table saved", "rows", res.Total, "deleted", res.Dropped)
	return res, nil
}

func (s *ExpenseService) replace(ctx context.Context, rows []core.Row, res *Result) error {
	err := s.store.ReplaceAll(ctx, rows)
	s.invalidate()
	var se *store.SyncError
	if errors.As(err, &se) {
		res.Warning = se
		return nil
	}
	if err != nil {
		return fmt.Errorf("replace records: %w", err)
	}
	return nil
}

func (s *ExpenseService) invalidate() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.gen++
	s.rows.Clear()
	s.summaries.Clear()
}

// Categories lists the selectable categories.
func (s *ExpenseService) Categories(ctx context.Context) ([]string, error) {
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	cats = core.DedupeCategories(cats)
	if len(cats) == 0 {
		return core.DefaultCategories(), nil
	}
	return cats, nil
}

func (s *ExpenseService) AddCategory(ctx context.Context, name string) error {
	name = core.NormalizeCategory(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	if len(name) > 50 {
		return errors.New("category too long (max 50 characters)")
	}
	if err := s.store.AddCategory(ctx, name); err != nil {
		return fmt.Errorf("add category %q: %w", name, err)
	}
	slog.InfoContext(ctx, "Category added", "category", name)
	return nil
}

// Ready checks that the backend answers.
func (s *ExpenseService) Ready(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	_, err := s.store.ListCategories(ctx)
	return err
}

// CacheStats reports the snapshot cache counters.
func (s *ExpenseService) CacheStats() cache.Stats {
	return s.rows.Stats()
}

// Close closes the backend when it holds connections.
func (s *ExpenseService) Close() error {
	if c, ok := s.store.(store.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
