package sqlite

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Expense struct {
	Position int64
	Date     string
	Item     string
	Amount   string
	Category string
}

const listExpenses = `-- name: ListExpenses :many
SELECT position, date, item, amount, category FROM expenses ORDER BY position
`

func (q *Queries) ListExpenses(ctx context.Context) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpenses)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var i Expense
		if err := rows.Scan(&i.Position, &i.Date, &i.Item, &i.Amount, &i.Category); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteAllExpenses = `-- name: DeleteAllExpenses :exec
DELETE FROM expenses
`

func (q *Queries) DeleteAllExpenses(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllExpenses)
	return err
}

const insertExpense = `-- name: InsertExpense :exec
INSERT INTO expenses (position, date, item, amount, category) VALUES (?, ?, ?, ?, ?)
`

type InsertExpenseParams struct {
	Position int64
	Date     string
	Item     string
	Amount   string
	Category string
}

func (q *Queries) InsertExpense(ctx context.Context, arg InsertExpenseParams) error {
	_, err := q.db.ExecContext(ctx, insertExpense,
		arg.Position,
		arg.Date,
		arg.Item,
		arg.Amount,
		arg.Category,
	)
	return err
}

const listCategories = `-- name: ListCategories :many
SELECT name FROM categories ORDER BY id
`

func (q *Queries) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countCategoryByName = `-- name: CountCategoryByName :one
SELECT COUNT(*) FROM categories WHERE name = ?
`

func (q *Queries) CountCategoryByName(ctx context.Context, name string) (int64, error) {
	row := q.db.QueryRowContext(ctx, countCategoryByName, name)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createCategory = `-- name: CreateCategory :exec
INSERT INTO categories (name) VALUES (?)
`

func (q *Queries) CreateCategory(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, createCategory, name)
	return err
}
