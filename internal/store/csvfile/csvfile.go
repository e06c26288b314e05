// Package csvfile keeps the expense table in a local comma-separated file and
// the category list in a plain text file next to it.
package csvfile

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"expenselog/internal/core"
	"expenselog/internal/store"
)

// Header is written as the first line of every file this package creates.
var Header = []string{"date", "item", "amount", "category"}

// Headers accepted on read, lower-cased. Older exports used "description" or
// the Chinese column names.
var knownHeaders = [][]string{
	Header,
	{"date", "description", "amount", "category"},
	{"日期", "项目", "金额", "分类"},
}

const utf8BOM = "\ufeff"

type Store struct {
	mu      sync.Mutex
	path    string
	catPath string
}

// New returns a store backed by path. Categories live in categories.txt in
// the same directory. The data file is created with a header when missing.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("csv path is required")
	}
	s := &Store{
		path:    path,
		catPath: filepath.Join(filepath.Dir(path), "categories.txt"),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.write(nil); err != nil {
			return nil, err
		}
		slog.Info("Created expense file", "path", path)
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return s, nil
}

// Path returns the data file location.
func (s *Store) Path() string { return s.path }

func (s *Store) LoadAll(_ context.Context) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()
	rows, err := ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return rows, nil
}

// ReplaceAll rewrites the file through a temporary file and a rename, so a
// crash never leaves a half-written table behind.
func (s *Store) ReplaceAll(ctx context.Context, rows []core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(rows); err != nil {
		return err
	}
	slog.DebugContext(ctx, "Expense file replaced", "path", s.path, "rows", len(rows))
	return nil
}

func (s *Store) write(rows []core.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := WriteRows(tmp, rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cats, err := s.readCategories()
	if err != nil {
		return nil, err
	}
	if len(cats) == 0 {
		return core.DefaultCategories(), nil
	}
	return cats, nil
}

// AddCategory appends name to the category file. The defaults are written
// out first when the file does not exist yet.
func (s *Store) AddCategory(ctx context.Context, name string) error {
	name = core.NormalizeCategory(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cats, err := s.readCategories()
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		cats = core.DefaultCategories()
	}
	for _, c := range cats {
		if strings.EqualFold(c, name) {
			return store.ErrDuplicateCategory
		}
	}
	cats = append(cats, name)
	content := strings.Join(cats, "\n") + "\n"
	if err := os.WriteFile(s.catPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write categories: %w", err)
	}
	slog.InfoContext(ctx, "Category added", "category", name, "path", s.catPath)
	return nil
}

func (s *Store) readCategories() ([]string, error) {
	f, err := os.Open(s.catPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open categories: %w", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read categories: %w", err)
	}
	return core.DedupeCategories(lines), nil
}

// ReadRows parses a table with or without a header line. Short rows are
// padded and extra columns ignored; cell values are kept verbatim so that a
// later rewrite does not lose rows the aggregator cannot parse.
func ReadRows(r io.Reader) ([]core.Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var out []core.Row
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if first {
			first = false
			if len(rec) > 0 {
				rec[0] = strings.TrimPrefix(rec[0], utf8BOM)
			}
			if isHeader(rec) {
				continue
			}
		}
		row := toRow(rec)
		if row.IsBlank() {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

// WriteRows writes the header followed by rows.
func WriteRows(w io.Writer, rows []core.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.Date, r.Description, r.Amount, r.Category}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isHeader(rec []string) bool {
	if len(rec) < 4 {
		return false
	}
	for _, h := range knownHeaders {
		match := true
		for i := range h {
			if strings.ToLower(strings.TrimSpace(rec[i])) != h[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func toRow(rec []string) core.Row {
	cell := func(i int) string {
		if i < len(rec) {
			return strings.TrimSpace(rec[i])
		}
		return ""
	}
	return core.Row{Date: cell(0), Description: cell(1), Amount: cell(2), Category: cell(3)}
}
