package config

import (
	"os"
	"testing"
	"time"
)

func TestWatcherReloads(t *testing.T) {
	path := writeFile(t, "rdbg.toml", "[logging]\nlevel = \"info\"\n")

	reloaded := make(chan Config, 4)
	w, err := NewWatcher(path, func(cfg Config, err error) {
		if err == nil {
			reloaded <- cfg
		}
	}, WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Logging.Level != "debug" {
			t.Errorf("Level = %q, want debug", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload")
	}
}

func TestWatcherReportsInvalidFile(t *testing.T) {
	path := writeFile(t, "rdbg.yaml", "logging:\n  level: info\n")

	failed := make(chan error, 4)
	w, err := NewWatcher(path, func(_ Config, err error) {
		if err != nil {
			failed <- err
		}
	}, WithDebounce(10*time.Millisecond), WithEnvPrefix("RDBG_TEST_"))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("logging:\n  level: shouting\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-failed:
	case <-time.After(3 * time.Second):
		t.Fatal("invalid file was not reported")
	}
	if w.Reloads() == 0 {
		t.Error("Reloads should count failed reloads")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "rdbg.toml", "")

	calls := make(chan struct{}, 4)
	w, err := NewWatcher(path, func(Config, error) { calls <- struct{}{} }, WithDebounce(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	other := path + ".bak"
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case <-calls:
		t.Error("reload triggered by unrelated file")
	case <-time.After(100 * time.Millisecond):
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
