// Package google stores the expense table in a Google Sheets spreadsheet.
//
// The records sheet holds a header row followed by one row per expense in
// columns A:D (date, item, amount, category). Replace-all clears the data
// range and writes the snapshot back in one update.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"expenselog/internal/core"
	"expenselog/internal/store"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Config struct {
	SpreadsheetID   string
	RecordsSheet    string
	CategoriesSheet string
}

type Client struct {
	svc             *gsheet.Service
	spreadsheetID   string
	recordsSheet    string
	categoriesSheet string
}

// Ensure interface conformance
var _ store.Backend = (*Client)(nil)

// New creates a Sheets client. Without options it authenticates with a
// user token or service account taken from the environment.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if cfg.RecordsSheet == "" {
		cfg.RecordsSheet = "Expenses"
	}
	if cfg.CategoriesSheet == "" {
		cfg.CategoriesSheet = "Categories"
	}

	var (
		svc *gsheet.Service
		err error
	)
	if len(opts) == 0 {
		svc, err = newSheetsService(ctx)
	} else {
		svc, err = gsheet.NewService(ctx, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:             svc,
		spreadsheetID:   cfg.SpreadsheetID,
		recordsSheet:    cfg.RecordsSheet,
		categoriesSheet: cfg.CategoriesSheet,
	}, nil
}

// newSheetsService authenticates with credentials taken from the environment.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	creds, err := credentialsFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx, creds, goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// LoadAll reads every data row below the header. Cells come back as the
// sheet formats them; conversion happens downstream.
func (c *Client) LoadAll(ctx context.Context) ([]core.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A2:D", c.recordsSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	out := make([]core.Row, 0, len(resp.Values))
	for _, values := range resp.Values {
		cols := toStrings(values)
		row := core.Row{
			Date:        safeGet(cols, 0),
			Description: safeGet(cols, 1),
			Amount:      safeGet(cols, 2),
			Category:    safeGet(cols, 3),
		}
		if row.IsBlank() {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// ReplaceAll writes the header plus rows over the top of the sheet, then
// clears whatever is left below them. A failed write leaves the previous
// table in place. Values are sent RAW so the sheet keeps exactly what was
// stored.
func (c *Client) ReplaceAll(ctx context.Context, rows []core.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	values := make([][]any, 0, len(rows)+1)
	values = append(values, []any{"date", "item", "amount", "category"})
	for _, r := range rows {
		values = append(values, []any{r.Date, r.Description, r.Amount, r.Category})
	}
	rng := fmt.Sprintf("%s!A1:D%d", c.recordsSheet, len(values))
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return fmt.Errorf("update %s: %w", rng, err)
	}

	tail := fmt.Sprintf("%s!A%d:D", c.recordsSheet, len(values)+1)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, tail, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", tail, err)
	}
	slog.InfoContext(ctx, "Sheet replaced", "sheet", c.recordsSheet, "rows", len(rows))
	return nil
}

// ListCategories reads column A of the categories sheet, falling back to the
// default set when it is empty.
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	cats, err := c.readCol(ctx, c.categoriesSheet, "A2:A")
	if err != nil {
		return nil, fmt.Errorf("failed to read categories: %w", err)
	}
	if len(cats) == 0 {
		return core.DefaultCategories(), nil
	}
	return cats, nil
}

func (c *Client) AddCategory(ctx context.Context, name string) error {
	name = core.NormalizeCategory(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	existing, err := c.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if strings.EqualFold(e, name) {
			return store.ErrDuplicateCategory
		}
	}
	rng := fmt.Sprintf("%s!A:A", c.categoriesSheet)
	vr := &gsheet.ValueRange{Values: [][]any{{name}}}
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append category: %w", err)
	}
	return nil
}

func (c *Client) readCol(ctx context.Context, sheetName, col string) ([]string, error) {
	rng := fmt.Sprintf("%s!%s", sheetName, col)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []string
	for _, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		out = append(out, fmt.Sprint(row[0]))
	}
	return core.DedupeCategories(out), nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
