package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"expenselog/internal/core"
	"expenselog/internal/store"
)

type Store struct {
	mu   sync.Mutex
	cats []string
	rows []core.Row
}

func New(cats []string) *Store {
	return &Store{cats: core.DedupeCategories(cats)}
}

// NewFromFiles seeds categories from seed_categories.txt in base, falling
// back to the default set when the file is missing or empty.
func NewFromFiles(base string) *Store {
	cats := readLines(filepath.Join(base, "seed_categories.txt"))
	if len(cats) == 0 {
		cats = core.DefaultCategories()
	}
	return New(cats)
}

// LoadAll returns a copy of the stored rows.
func (s *Store) LoadAll(_ context.Context) ([]core.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Row(nil), s.rows...), nil
}

// ReplaceAll swaps the stored rows for a copy of rows.
func (s *Store) ReplaceAll(_ context.Context, rows []core.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append([]core.Row(nil), rows...)
	return nil
}

func (s *Store) ListCategories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cats...), nil
}

func (s *Store) AddCategory(_ context.Context, name string) error {
	name = core.NormalizeCategory(name)
	if name == "" {
		return core.ErrEmptyCategory
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if strings.EqualFold(c, name) {
			return store.ErrDuplicateCategory
		}
	}
	s.cats = append(s.cats, name)
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return core.DedupeCategories(out)
}
