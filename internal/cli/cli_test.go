package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rcliao/ripple-memory/internal/model"
)

func withFlags(t *testing.T, cfgPath, dir string) {
	t.Helper()
	oldCfg, oldDir, oldVerbose := configPath, dataDir, verbose
	configPath, dataDir, verbose = cfgPath, dir, false
	t.Cleanup(func() { configPath, dataDir, verbose = oldCfg, oldDir, oldVerbose })
	for _, k := range []string{"RIPPLE_DATA_DIR", "RIPPLE_EMBED_PROVIDER", "RIPPLE_EMBED_DIM", "RIPPLE_CONFIG"} {
		t.Setenv(k, "")
	}
}

func TestReadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	data := `[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	turns, err := readHistory(path)
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(turns) != 2 || turns[1].Role != model.RoleAgent {
		t.Errorf("unexpected turns %+v", turns)
	}

	if turns, err := readHistory(""); err != nil || turns != nil {
		t.Errorf("expected no history, got %v %v", turns, err)
	}
}

func TestReadHistoryRejectsUnknownRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	os.WriteFile(path, []byte(`[{"role":"narrator","content":"once"}]`), 0o644)
	if _, err := readHistory(path); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestLoadConfigDataDirFlag(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, filepath.Join(dir, "missing.yaml"), dir)

	// an explicitly named config file must exist
	if _, err := loadConfig(); err == nil {
		t.Fatal("expected error for missing explicit config")
	}

	cfgPath := filepath.Join(dir, "ripple.yaml")
	os.WriteFile(cfgPath, []byte("data_dir: /elsewhere\nstore:\n  search_k: 3\n"), 0o644)
	configPath = cfgPath

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DataDir != dir {
		t.Errorf("expected --data-dir to win, got %s", cfg.DataDir)
	}
	if cfg.Store.SearchK != 3 {
		t.Errorf("expected search_k 3, got %d", cfg.Store.SearchK)
	}
}

func TestOpenEnvCreatesStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "ripple.yaml")
	os.WriteFile(cfgPath, []byte("embedding:\n  provider: hash\n  dimension: 32\n"), 0o644)
	withFlags(t, cfgPath, dir)

	e, err := openEnv(context.Background(), false)
	if err != nil {
		t.Fatalf("open env: %v", err)
	}
	if e.store.Dimension() != 32 {
		t.Errorf("expected dimension 32, got %d", e.store.Dimension())
	}
	if _, err := e.store.Add(context.Background(), "she likes rain", nil); err != nil {
		t.Fatal(err)
	}
	e.Close()

	e, err = openEnv(context.Background(), false)
	if err != nil {
		t.Fatalf("reopen env: %v", err)
	}
	defer e.Close()
	if e.store.Count() != 1 {
		t.Errorf("expected 1 memory after reopen, got %d", e.store.Count())
	}
	if _, err := os.Stat(filepath.Join(dir, "vector_index.rvi")); err != nil {
		t.Errorf("index not under data dir: %v", err)
	}
}
