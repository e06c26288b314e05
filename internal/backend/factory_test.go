package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"expenselog/internal/config"
	"expenselog/internal/core"
	"expenselog/internal/store"
)

var row = core.Row{Date: "2024-03-01", Description: "coffee", Amount: "5.50", Category: "food"}

func TestFromAppConfig(t *testing.T) {
	app := config.Default()
	app.DataBackend = config.BackendSQLite
	app.MirrorTo = config.BackendCSV
	app.SQLiteDBPath = "/tmp/x.db"

	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SQLiteBackend || cfg.MirrorTo != CSVBackend || cfg.SQLiteDBPath != "/tmp/x.db" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"unknown type", Config{Type: "oracle"}, "invalid backend type"},
		{"csv without path", Config{Type: CSVBackend}, "CSV path"},
		{"mirror to memory", Config{Type: CSVBackend, CSVPath: "x.csv", MirrorTo: MemoryBackend}, "invalid mirror target"},
		{"mirror to self", Config{Type: CSVBackend, CSVPath: "x.csv", MirrorTo: CSVBackend}, "must differ"},
		{"mirror target checked", Config{Type: CSVBackend, CSVPath: "x.csv", MirrorTo: SheetsBackend}, "Spreadsheet ID"},
		{"broker without mirror", Config{Type: MemoryBackend, Broker: config.BrokerKafka}, "requires a mirror"},
		{"unknown broker", Config{Type: MemoryBackend, Broker: "nats"}, "invalid broker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	f := NewFactory(nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: t.TempDir()})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Mirror != nil || res.Remote != nil || res.Broker != nil {
		t.Fatalf("memory backend should not mirror: %+v", res)
	}
	cats, err := res.Backend.ListCategories(context.Background())
	if err != nil || len(cats) == 0 {
		t.Fatalf("expected default categories, got %v (%v)", cats, err)
	}
}

func TestCreateMirroredBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := NewFactory(nil)
	res, err := f.CreateBackend(ctx, Config{
		Type:         CSVBackend,
		CSVPath:      filepath.Join(dir, "expenses.csv"),
		MirrorTo:     SQLiteBackend,
		SQLiteDBPath: filepath.Join(dir, "mirror.db"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if res.Mirror == nil || res.Remote == nil {
		t.Fatalf("expected a mirror, got %+v", res)
	}
	if err := store.Append(ctx, res.Backend, row); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := res.Remote.LoadAll(ctx)
	if err != nil {
		t.Fatalf("remote load: %v", err)
	}
	if len(got) != 1 || got[0].Description != "coffee" {
		t.Fatalf("mirror not written: %+v", got)
	}
}

func TestOpenStoreUnsupported(t *testing.T) {
	f := NewFactory(nil)
	if _, _, err := f.OpenStore(context.Background(), Config{}, "oracle"); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}
