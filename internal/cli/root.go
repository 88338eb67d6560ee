// Package cli implements the ripple CLI commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rcliao/ripple-memory/internal/config"
	"github.com/rcliao/ripple-memory/internal/embedding"
	"github.com/rcliao/ripple-memory/internal/store"
	"github.com/rcliao/ripple-memory/internal/telemetry"
)

var (
	configPath string
	dataDir    string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "ripple",
	Short: "Semantic memory for conversational agents",
	Long: "Ripple stores conversation summaries as vectors with their transcripts, " +
		"answers nearest-neighbour recall queries, and keeps rolling backups.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: $RIPPLE_CONFIG or ~/.ripple/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "Data directory (overrides config and $RIPPLE_DATA_DIR)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
}

// getConfigPath returns the config file and whether the user named it.
func getConfigPath() (string, bool) {
	if configPath != "" {
		return configPath, true
	}
	if env := os.Getenv("RIPPLE_CONFIG"); env != "" {
		return env, true
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ripple", "config.yaml"), false
}

func loadConfig() (*config.Config, error) {
	path, explicit := getConfigPath()
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

// newLogger logs at the configured level for long-running commands and only
// warnings otherwise, unless --verbose is set.
func newLogger(cfg *config.Config, longRunning bool) *slog.Logger {
	level := slog.LevelWarn
	if longRunning || verbose {
		level = telemetry.ParseLevel(cfg.Log.Level)
	}
	return telemetry.NewLogger(os.Stderr, level)
}

// env bundles what most commands need.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	embedder embedding.Embedder
	store    *store.MemoryStore
}

func openEnv(ctx context.Context, longRunning bool) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	e := &env{
		cfg:     cfg,
		logger:  newLogger(cfg, longRunning),
		metrics: telemetry.NewMetrics(),
	}
	e.embedder, err = embedding.New(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	e.store, err = store.Open(ctx, store.Options{
		IndexPath:    cfg.IndexPath(),
		MetadataPath: cfg.MetadataPath(),
		Dimension:    cfg.Embedding.Dimension,
	}, e.embedder, store.WithLogger(e.logger), store.WithMetrics(e.metrics))
	if err != nil {
		e.closeEmbedder()
		return nil, err
	}
	return e, nil
}

func (e *env) closeEmbedder() {
	if c, ok := e.embedder.(interface{ Close() }); ok {
		c.Close()
	}
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
	e.closeEmbedder()
}

func mustOpenEnv(cmd *cobra.Command, longRunning bool) *env {
	e, err := openEnv(cmd.Context(), longRunning)
	if err != nil {
		exitErr("open store", err)
	}
	return e
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
