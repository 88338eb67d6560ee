// Package config loads ripple's YAML configuration and applies environment
// overrides on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	DataDir   string    `yaml:"data_dir"`
	Store     Store     `yaml:"store"`
	Embedding Embedding `yaml:"embedding"`
	Backup    Backup    `yaml:"backup"`
	Session   Session   `yaml:"session"`
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
}

// Store configures the memory store artifacts. Relative paths are resolved
// against DataDir.
type Store struct {
	IndexPath    string `yaml:"index_path"`
	MetadataPath string `yaml:"metadata_path"`
	SearchK      int    `yaml:"search_k"`
	RecallBudget int    `yaml:"recall_budget"`
}

// Embedding selects and configures the embedding provider.
type Embedding struct {
	Provider  string   `yaml:"provider"` // ollama | openai | hash
	Model     string   `yaml:"model"`
	URL       string   `yaml:"url"`
	APIKey    string   `yaml:"api_key"`
	Dimension int      `yaml:"dimension"` // 0 = provider default or probe
	CacheSize int64    `yaml:"cache_size"`
	Timeout   Duration `yaml:"timeout"`
}

// Backup configures the snapshot scheduler.
type Backup struct {
	Dir       string   `yaml:"dir"`
	Interval  Duration `yaml:"interval"`
	Retention Duration `yaml:"retention"`
	S3        S3       `yaml:"s3"`
}

// S3 configures optional offsite upload of snapshots. Empty Bucket disables it.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Session configures the session registry and archival.
type Session struct {
	StartingQuota int    `yaml:"starting_quota"`
	RejectMarker  string `yaml:"reject_marker"`
}

// Server configures the admin HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Log configures the structured logger.
type Log struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir: filepath.Join(home, ".ripple"),
		Store: Store{
			IndexPath:    "vector_index.rvi",
			MetadataPath: "vector_metadata.db",
			SearchK:      5,
			RecallBudget: 2000,
		},
		Embedding: Embedding{
			Provider:  "hash",
			Dimension: 0,
			CacheSize: 4096,
			Timeout:   Duration(30 * time.Second),
		},
		Backup: Backup{
			Dir:       "backups",
			Interval:  Duration(3 * time.Hour),
			Retention: Duration(5 * 24 * time.Hour),
		},
		Session: Session{
			StartingQuota: 10,
			RejectMarker:  "拒绝",
		},
		Server: Server{Addr: ":8080"},
		Log:    Log{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. An empty path skips the
// file; a missing file is only an error when explicit is true.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from RIPPLE_* and provider environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("RIPPLE_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("RIPPLE_EMBED_PROVIDER"); v != "" {
		c.Embedding.Provider = v
	}
	if v := os.Getenv("RIPPLE_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("RIPPLE_EMBED_URL"); v != "" {
		c.Embedding.URL = v
	}
	if v := os.Getenv("RIPPLE_EMBED_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dimension = n
		}
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embedding.Provider == "ollama" && c.Embedding.URL == "" {
		c.Embedding.URL = os.Getenv("OLLAMA_HOST")
	}
	if v := os.Getenv("RIPPLE_LISTEN"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("RIPPLE_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RIPPLE_S3_BUCKET"); v != "" {
		c.Backup.S3.Bucket = v
	}
}

// Validate rejects configurations the components cannot run with.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.Store.SearchK <= 0 {
		return fmt.Errorf("config: store.search_k must be positive, got %d", c.Store.SearchK)
	}
	if c.Backup.Interval <= 0 {
		return fmt.Errorf("config: backup.interval must be positive, got %s", c.Backup.Interval)
	}
	if c.Backup.Retention <= 0 {
		return fmt.Errorf("config: backup.retention must be positive, got %s", c.Backup.Retention)
	}
	if c.Session.StartingQuota < 0 {
		return fmt.Errorf("config: session.starting_quota must not be negative, got %d", c.Session.StartingQuota)
	}
	if c.Embedding.Dimension < 0 {
		return fmt.Errorf("config: embedding.dimension must not be negative, got %d", c.Embedding.Dimension)
	}
	return nil
}

// IndexPath returns the resolved vector index artifact path.
func (c *Config) IndexPath() string { return c.resolve(c.Store.IndexPath) }

// MetadataPath returns the resolved metadata artifact path.
func (c *Config) MetadataPath() string { return c.resolve(c.Store.MetadataPath) }

// BackupDir returns the resolved backup directory.
func (c *Config) BackupDir() string { return c.resolve(c.Backup.Dir) }

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}

// Duration is a time.Duration that reads from YAML strings such as "3h" or
// "5d".
type Duration time.Duration

// String formats the duration like time.Duration.
func (d Duration) String() string { return time.Duration(d).String() }

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

var dayRegex = regexp.MustCompile(`^(\d+)d$`)

// ParseDuration accepts time.ParseDuration syntax plus a whole-day form like "5d".
func ParseDuration(s string) (time.Duration, error) {
	if m := dayRegex.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q (use e.g. 5d, 3h, 30m)", s)
	}
	return d, nil
}
