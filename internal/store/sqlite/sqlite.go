// Package sqlite keeps the expense table in a local SQLite database. Columns
// are stored as text so that rows the aggregator rejects still survive a
// round trip.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"expenselog/internal/core"
	"expenselog/internal/store"

	_ "modernc.org/sqlite"
)

type Store struct {
	db      *sql.DB
	queries *Queries
}

var _ store.Backend = (*Store)(nil)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, queries: NewQueries(db)}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) LoadAll(ctx context.Context) ([]core.Row, error) {
	items, err := s.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Row, len(items))
	for i, e := range items {
		out[i] = core.Row{Date: e.Date, Description: e.Item, Amount: e.Amount, Category: e.Category}
	}
	return out, nil
}

// ReplaceAll swaps the table contents in a single transaction.
func (s *Store) ReplaceAll(ctx context.Context, rows []core.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if err := q.DeleteAllExpenses(ctx); err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}
	for i, r := range rows {
		if err := q.InsertExpense(ctx, InsertExpenseParams{
			Position: int64(i + 1),
			Date:     r.Date,
			Item:     r.Description,
			Amount:   r.Amount,
			Category: r.Category,
		}); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Expenses replaced in SQLite", "rows", len(rows))
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	cats, err := s.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if len(cats) == 0 {
		return core.DefaultCategories(), nil
	}
	return cats, nil
}

func (s *Store) AddCategory(ctx context.Context, name string) error {
	name = core.NormalizeCategory(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	n, err := s.queries.CountCategoryByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if n > 0 {
		return store.ErrDuplicateCategory
	}
	if err := s.queries.CreateCategory(ctx, name); err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "category", name)
	return nil
}
