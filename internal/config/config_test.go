package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"RIPPLE_DATA_DIR", "RIPPLE_EMBED_PROVIDER", "RIPPLE_EMBED_MODEL", "RIPPLE_EMBED_URL",
		"RIPPLE_EMBED_DIM", "OPENAI_API_KEY", "OLLAMA_HOST", "RIPPLE_LISTEN", "RIPPLE_LOG_LEVEL",
		"RIPPLE_S3_BUCKET",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 3*time.Hour, time.Duration(cfg.Backup.Interval))
	assert.Equal(t, 5*24*time.Hour, time.Duration(cfg.Backup.Retention))
	assert.Equal(t, 10, cfg.Session.StartingQuota)
	assert.Equal(t, 5, cfg.Store.SearchK)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "ripple.yaml")
	data := `
data_dir: /var/lib/ripple
backup:
  interval: 90m
  retention: 7d
session:
  starting_quota: 3
embedding:
  provider: ollama
  model: nomic-embed-text
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ripple", cfg.DataDir)
	assert.Equal(t, 90*time.Minute, time.Duration(cfg.Backup.Interval))
	assert.Equal(t, 7*24*time.Hour, time.Duration(cfg.Backup.Retention))
	assert.Equal(t, 3, cfg.Session.StartingQuota)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	// untouched fields keep defaults
	assert.Equal(t, "backups", cfg.Backup.Dir)
	assert.Equal(t, filepath.Join("/var/lib/ripple", "vector_index.rvi"), cfg.IndexPath())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := Load(missing, true)
	assert.Error(t, err)

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, "hash", cfg.Embedding.Provider)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIPPLE_DATA_DIR", "/tmp/rp")
	t.Setenv("RIPPLE_EMBED_PROVIDER", "ollama")
	t.Setenv("OLLAMA_HOST", "http://gpu:11434")
	t.Setenv("RIPPLE_EMBED_DIM", "384")

	cfg, err := Load("", false)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/rp", cfg.DataDir)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "http://gpu:11434", cfg.Embedding.URL)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Backup.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Backup.Retention = -1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Store.SearchK = 0
	assert.Error(t, cfg.Validate())
}

func TestAbsolutePathsAreKept(t *testing.T) {
	cfg := Default()
	cfg.Backup.Dir = "/srv/backups"
	assert.Equal(t, "/srv/backups", cfg.BackupDir())
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"5d", 5 * 24 * time.Hour, false},
		{"3h", 3 * time.Hour, false},
		{"90s", 90 * time.Second, false},
		{"1w", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDurationMarshalsAsString(t *testing.T) {
	out, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{Duration(3 * time.Hour)})
	require.NoError(t, err)
	assert.Contains(t, string(out), "d: 3h0m0s")
}
