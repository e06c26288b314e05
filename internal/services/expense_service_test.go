package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"expenselog/internal/core"
	"expenselog/internal/store"
	"expenselog/internal/store/memory"
)

// countingStore counts LoadAll calls and can fail writes.
type countingStore struct {
	*memory.Store
	loads    int
	writeErr error
}

func (c *countingStore) LoadAll(ctx context.Context) ([]core.Row, error) {
	c.loads++
	return c.Store.LoadAll(ctx)
}

func (c *countingStore) ReplaceAll(ctx context.Context, rows []core.Row) error {
	if c.writeErr != nil && !store.IsSyncError(c.writeErr) {
		return c.writeErr
	}
	if err := c.Store.ReplaceAll(ctx, rows); err != nil {
		return err
	}
	return c.writeErr
}

// gatedStore blocks the first LoadAll after it has read its snapshot, until
// release is closed.
type gatedStore struct {
	*memory.Store
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) LoadAll(ctx context.Context) ([]core.Row, error) {
	rows, err := g.Store.LoadAll(ctx)
	g.mu.Lock()
	armed := g.armed
	g.armed = false
	g.mu.Unlock()
	if armed {
		close(g.entered)
		<-g.release
	}
	return rows, err
}

func newService(t *testing.T) (*ExpenseService, *countingStore) {
	t.Helper()
	st := &countingStore{Store: memory.New(nil)}
	return NewExpenseService(st), st
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	date := core.NewDate(2024, 3, 1)

	res, err := svc.Submit(ctx, date, []Line{
		{Description: "coffee", Amount: "5.50", Category: "food"},
		{},
		{Description: "", Amount: "3", Category: "food"},
		{Description: "gift", Amount: "0", Category: "other"},
		{Description: "bus", Amount: "2,00", Category: "transport"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Saved != 2 || res.Dropped != 2 || res.Total != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}

	rows, _ := st.Store.LoadAll(ctx)
	want := []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"},
		{Date: "2024-03-01", Description: "bus", Amount: "2.00", Category: "transport"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, rows[i], want[i])
		}
	}
}

func TestSubmitNothingValid(t *testing.T) {
	svc, st := newService(t)
	_, err := svc.Submit(context.Background(), core.NewDate(2024, 3, 1), []Line{
		{Description: "x", Amount: "-1", Category: "food"},
		{},
	})
	if !errors.Is(err, core.ErrNoValidRecords) {
		t.Fatalf("expected ErrNoValidRecords, got %v", err)
	}
	if rows, _ := st.Store.LoadAll(context.Background()); len(rows) != 0 {
		t.Fatal("nothing should be written")
	}
}

func TestSubmitKeepsMalformedExistingRows(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	junk := core.Row{Date: "yesterday", Description: "??", Amount: "abc", Category: ""}
	st.Store.ReplaceAll(ctx, []core.Row{junk})

	if _, err := svc.Submit(ctx, core.NewDate(2024, 3, 1), []Line{{Description: "tea", Amount: "1", Category: "food"}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	rows, _ := st.Store.LoadAll(ctx)
	if len(rows) != 2 || rows[0] != junk {
		t.Fatalf("existing row must survive the append: %+v", rows)
	}
}

func TestSaveTable(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	st.Store.ReplaceAll(ctx, []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"},
		{Date: "2024-03-15", Description: "bus", Amount: "2.00", Category: "transport"},
	})

	res, err := svc.SaveTable(ctx, []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "6", Category: "food"},
		{},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Total != 1 || res.Dropped != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	rows, _ := st.Store.LoadAll(ctx)
	if len(rows) != 1 || rows[0].Amount != "6.00" {
		t.Fatalf("table not overwritten: %+v", rows)
	}

	_, err = svc.SaveTable(ctx, []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "6", Category: "food"},
		{Date: "2024-03-02", Description: "refund", Amount: "-3", Category: "food"},
	})
	var rowErr *RowError
	if !errors.As(err, &rowErr) || rowErr.Index != 1 || !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected RowError at index 1, got %v", err)
	}
	if rows, _ := st.Store.LoadAll(ctx); len(rows) != 1 {
		t.Fatal("rejected save must not write")
	}
}

func TestSummaryCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	today := core.NewDate(2024, 3, 20)

	if _, err := svc.Submit(ctx, core.NewDate(2024, 3, 1), []Line{{Description: "coffee", Amount: "5.50", Category: "food"}}); err != nil {
		t.Fatal(err)
	}
	first, err := svc.Summary(ctx, today, PeriodMonth)
	if err != nil {
		t.Fatal(err)
	}
	loads := st.loads
	if _, err := svc.Summary(ctx, today, PeriodMonth); err != nil {
		t.Fatal(err)
	}
	if st.loads != loads {
		t.Fatal("second summary should be served from cache")
	}

	if _, err := svc.Submit(ctx, core.NewDate(2024, 3, 15), []Line{{Description: "bus", Amount: "2", Category: "transport"}}); err != nil {
		t.Fatal(err)
	}
	second, _ := svc.Summary(ctx, today, PeriodMonth)
	if !first.CurrentTotal.Equal(decimal.RequireFromString("5.50")) || !second.CurrentTotal.Equal(decimal.RequireFromString("7.50")) {
		t.Fatalf("stale summary: first=%s second=%s", first.CurrentTotal, second.CurrentTotal)
	}
}

func TestReadDuringWriteDoesNotCacheStaleRows(t *testing.T) {
	ctx := context.Background()
	st := &gatedStore{
		Store:   memory.New(nil),
		armed:   true,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := NewExpenseService(st)
	today := core.NewDate(2024, 3, 20)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Summary(ctx, today, PeriodAll)
	}()
	<-st.entered

	if _, err := svc.Submit(ctx, today, []Line{{Description: "coffee", Amount: "5.50", Category: "food"}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	close(st.release)
	<-done

	rows, err := svc.Rows(ctx)
	if err != nil || len(rows) != 1 {
		t.Fatalf("rows after write = %d (err=%v), want 1", len(rows), err)
	}
	sum, err := svc.Summary(ctx, today, PeriodAll)
	if err != nil || sum.Records != 1 {
		t.Fatalf("summary after write has %d records (err=%v), want 1", sum.Records, err)
	}
}

func TestSummaryPeriod(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	st.Store.ReplaceAll(ctx, []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"},
		{Date: "2024-04-01", Description: "movie", Amount: "12.00", Category: "entertainment"},
	})
	today := core.NewDate(2024, 3, 20)

	month, _ := svc.Summary(ctx, today, PeriodMonth)
	all, _ := svc.Summary(ctx, today, PeriodAll)
	if len(month.Categories) != 1 || len(all.Categories) != 2 {
		t.Fatalf("month=%v all=%v", month.Categories, all.Categories)
	}
	if len(month.Months) != 2 {
		t.Fatal("months must span all history regardless of period")
	}
}

func TestSyncWarning(t *testing.T) {
	ctx := context.Background()
	svc, st := newService(t)
	st.writeErr = &store.SyncError{Remote: "sheets", Err: errors.New("403")}

	res, err := svc.Submit(ctx, core.NewDate(2024, 3, 1), []Line{{Description: "coffee", Amount: "1", Category: "food"}})
	if err != nil {
		t.Fatalf("sync failure must not fail the submit: %v", err)
	}
	if res.Warning == nil || res.Warning.Remote != "sheets" {
		t.Fatalf("expected warning, got %+v", res)
	}

	st.writeErr = errors.New("disk full")
	if _, err := svc.Submit(ctx, core.NewDate(2024, 3, 1), []Line{{Description: "tea", Amount: "1", Category: "food"}}); err == nil {
		t.Fatal("expected error")
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	res, err := svc.Import(ctx, []core.Row{
		{Date: "2024/03/01", Description: "coffee", Amount: "5.5", Category: "food"},
		{Date: "bad", Description: "x", Amount: "1", Category: "food"},
		{Date: "2024-03-02", Description: strings.Repeat("x", 201), Amount: "1", Category: "food"},
		{Date: "2024-03-03", Description: "crumb", Amount: "0.004", Category: "food"},
		{Date: "2024-03-04", Description: "tea", Amount: "1.005", Category: "food"},
		{},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Saved != 2 || res.Dropped != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	rows, _ := svc.Rows(ctx)
	if rows[0].Date != "2024-03-01" {
		t.Fatalf("import should normalize dates, got %q", rows[0].Date)
	}
	if rows[1].Amount != "1.01" {
		t.Fatalf("imported amounts are stored in cents, got %q", rows[1].Amount)
	}
	// Everything imported must survive a table save.
	if _, err := svc.SaveTable(ctx, rows); err != nil {
		t.Fatalf("save imported rows: %v", err)
	}

	if _, err := svc.Import(ctx, nil); !errors.Is(err, core.ErrNoValidRecords) {
		t.Fatalf("expected ErrNoValidRecords, got %v", err)
	}
}

func TestCategories(t *testing.T) {
	ctx := context.Background()
	svc := NewExpenseService(memory.New(core.DefaultCategories()))

	cats, err := svc.Categories(ctx)
	if err != nil || len(cats) != len(core.DefaultCategories()) {
		t.Fatalf("cats=%v err=%v", cats, err)
	}
	if err := svc.AddCategory(ctx, "  home   office "); err != nil {
		t.Fatal(err)
	}
	cats, _ = svc.Categories(ctx)
	if cats[len(cats)-1] != "home office" {
		t.Fatalf("category not normalized: %v", cats)
	}
	if err := svc.AddCategory(ctx, "FOOD"); !errors.Is(err, store.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := svc.AddCategory(ctx, "  "); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected empty category error, got %v", err)
	}
}

func TestParsePeriod(t *testing.T) {
	tests := map[string]Period{"": PeriodMonth, "month": PeriodMonth, "ALL": PeriodAll, "year": PeriodMonth}
	for in, want := range tests {
		if got := ParsePeriod(in); got != want {
			t.Errorf("ParsePeriod(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClose(t *testing.T) {
	if err := NewExpenseService(memory.New(nil)).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
