// Package postgres keeps the expense table in PostgreSQL with typed columns.
// Unlike the file backends it cannot hold rows whose date or amount does not
// parse; ReplaceAll rejects the whole snapshot instead.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	mpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"expenselog/internal/core"
	"expenselog/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ store.Backend = (*Store)(nil)

// New connects to dsn and runs the migrations.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "Connected to PostgreSQL")
	return &Store{db: db}, nil
}

// RunMigrations applies the embedded schema through its own connection.
func RunMigrations(dsn string) error {
	migrateDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := mpostgres.WithInstance(migrateDB, &mpostgres.Config{})
	if err != nil {
		return fmt.Errorf("create postgres driver: %w", err)
	}
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) LoadAll(ctx context.Context) ([]core.Row, error) {
	const query = `SELECT date, item, amount, category FROM expenses ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Row
	for rows.Next() {
		var (
			date     time.Time
			item     string
			amount   decimal.Decimal
			category string
		)
		if err := rows.Scan(&date, &item, &amount, &category); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, core.Row{
			Date:        core.DateOf(date).String(),
			Description: item,
			Amount:      core.FormatAmount(amount),
			Category:    category,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// row is the typed form of a core.Row ready for insertion.
type row struct {
	id       uuid.UUID
	date     time.Time
	item     string
	amount   decimal.Decimal
	category string
}

// toRows converts a snapshot, failing on the first row that cannot be typed.
func toRows(in []core.Row) ([]row, error) {
	out := make([]row, 0, len(in))
	for i, r := range in {
		rec, err := core.ParseRow(r)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", store.ErrMalformedRow, i+1, err)
		}
		out = append(out, row{
			id:       uuid.New(),
			date:     rec.Date.Time,
			item:     rec.Description,
			amount:   rec.Amount.Round(2),
			category: core.NormalizeCategory(r.Category),
		})
	}
	return out, nil
}

// ReplaceAll swaps the table contents in one transaction using COPY.
func (s *Store) ReplaceAll(ctx context.Context, rows []core.Row) (err error) {
	typed, err := toRows(rows)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("delete expenses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("expenses", "id", "position", "date", "item", "amount", "category"))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}
	for i, r := range typed {
		if _, err = stmt.ExecContext(ctx, r.id.String(), i+1, r.date, r.item, r.amount.StringFixed(2), r.category); err != nil {
			stmt.Close()
			return fmt.Errorf("copy row %d: %w", i+1, err)
		}
	}
	if _, err = stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}
	if err = stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Expenses replaced in PostgreSQL", "rows", len(typed))
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return core.DefaultCategories(), nil
	}
	return out, nil
}

func (s *Store) AddCategory(ctx context.Context, name string) error {
	name = core.NormalizeCategory(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES ($1)`, name)
	if isUniqueViolation(err) {
		return store.ErrDuplicateCategory
	}
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
