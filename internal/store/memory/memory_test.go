package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"expenselog/internal/core"
	"expenselog/internal/store"
)

func TestMemoryStoreReplaceAndLoad(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"A", "B", "a"})
	cats, err := s.ListCategories(ctx)
	if err != nil || len(cats) != 2 {
		t.Fatalf("unexpected list: cats=%v err=%v", cats, err)
	}

	rows := []core.Row{
		{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "A"},
		{Date: "garbage", Description: "kept as is", Amount: "x", Category: "B"},
	}
	if err := s.ReplaceAll(ctx, rows); err != nil {
		t.Fatalf("replace: %v", err)
	}
	rows[0].Description = "mutated"

	got, err := s.LoadAll(ctx)
	if err != nil || len(got) != 2 || got[0].Description != "coffee" {
		t.Fatalf("unexpected load: %+v err=%v", got, err)
	}
	got[1].Amount = "mutated"
	again, _ := s.LoadAll(ctx)
	if again[1].Amount != "x" {
		t.Fatalf("load must return a copy")
	}
}

func TestMemoryStoreAppendHelper(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, s, core.Row{Date: "2024-01-01", Description: "x", Amount: "1", Category: "c"}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, _ := s.LoadAll(ctx)
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
}

func TestAddCategory(t *testing.T) {
	ctx := context.Background()
	s := New([]string{"food"})
	if err := s.AddCategory(ctx, "  eating   out "); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddCategory(ctx, "FOOD"); !errors.Is(err, store.ErrDuplicateCategory) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := s.AddCategory(ctx, " "); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected empty category error, got %v", err)
	}
	cats, _ := s.ListCategories(ctx)
	if len(cats) != 2 || cats[1] != "eating out" {
		t.Fatalf("unexpected cats: %v", cats)
	}
}

func TestNewFromFilesSeedsAndDedupe(t *testing.T) {
	dir := t.TempDir()
	// No files -> defaults
	s := NewFromFiles(dir)
	cats, _ := s.ListCategories(context.Background())
	if len(cats) != len(core.DefaultCategories()) {
		t.Fatalf("expected defaults when files missing, got %v", cats)
	}

	if err := os.WriteFile(filepath.Join(dir, "seed_categories.txt"), []byte("# header\nA\nB\nA\n\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s = NewFromFiles(dir)
	cats, _ = s.ListCategories(context.Background())
	if len(cats) != 2 || cats[0] != "A" || cats[1] != "B" {
		t.Fatalf("unexpected cats: %v", cats)
	}
}
