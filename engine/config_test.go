package engine_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/spillq/engine"
	"github.com/tailored-agentic-units/spillq/storage"
)

func TestDefaultConfig(t *testing.T) {
	cfg := engine.DefaultConfig()

	if cfg.Storage.MemoryBudget != 16*storage.MiB {
		t.Errorf("got MemoryBudget %d, want %d", cfg.Storage.MemoryBudget, 16*storage.MiB)
	}
	if cfg.Priority.FanIn == 0 {
		t.Error("expected a default FanIn")
	}
	if cfg.FIFO.BlockBytes == 0 {
		t.Error("expected a default FIFO BlockBytes")
	}
	if cfg.Observer != "" {
		t.Errorf("got Observer %q, want empty", cfg.Observer)
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := engine.DefaultConfig()

	source := &engine.Config{
		Observer: "slog",
	}
	source.Storage.MemoryBudget = 32 * storage.MiB
	source.Priority.FanIn = 3
	source.FIFO.BlockBytes = 1024

	cfg.Merge(source)

	if cfg.Observer != "slog" {
		t.Errorf("got Observer %q, want %q", cfg.Observer, "slog")
	}
	if cfg.Storage.MemoryBudget != 32*storage.MiB {
		t.Errorf("got MemoryBudget %d, want %d", cfg.Storage.MemoryBudget, 32*storage.MiB)
	}
	if cfg.Priority.FanIn != 3 {
		t.Errorf("got FanIn %d, want 3", cfg.Priority.FanIn)
	}
	if cfg.FIFO.BlockBytes != 1024 {
		t.Errorf("got BlockBytes %d, want 1024", cfg.FIFO.BlockBytes)
	}
}

func TestConfig_Merge_ZeroValuesPreserveDefaults(t *testing.T) {
	cfg := engine.DefaultConfig()
	original := engine.DefaultConfig()

	cfg.Merge(&engine.Config{})

	if cfg != original {
		t.Errorf("got %+v, want %+v (preserved defaults)", cfg, original)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.json")

	content := `{
		"observer": "stderr",
		"storage": {
			"memory_budget": 67108864,
			"temp_dir": "/var/tmp"
		},
		"priority": {
			"fan_in": 16
		}
	}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Observer != "stderr" {
		t.Errorf("got Observer %q, want %q", cfg.Observer, "stderr")
	}
	if cfg.Storage.MemoryBudget != 64*storage.MiB {
		t.Errorf("got MemoryBudget %d, want %d", cfg.Storage.MemoryBudget, 64*storage.MiB)
	}
	if cfg.Storage.TempDir != "/var/tmp" {
		t.Errorf("got TempDir %q, want %q", cfg.Storage.TempDir, "/var/tmp")
	}
	if cfg.Storage.TempSubdir != "spillq" {
		t.Errorf("got TempSubdir %q, want default %q", cfg.Storage.TempSubdir, "spillq")
	}
	if cfg.Priority.FanIn != 16 {
		t.Errorf("got FanIn %d, want 16", cfg.Priority.FanIn)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := engine.LoadConfig("/nonexistent/path/config.json")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "bad.json")

	if err := os.WriteFile(configPath, []byte("{invalid}"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := engine.LoadConfig(configPath)
	if err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}
