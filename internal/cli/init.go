package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func init() {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty memory store",
		Long: "Create the data directory, an empty index and metadata pair, and a default " +
			"config file if none exists. --force discards existing artifacts.",
		Run: runInit,
	}

	cmd.Flags().Bool("force", false, "Remove existing artifacts first")

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	force, _ := cmd.Flags().GetBool("force")

	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		exitErr("init", err)
	}

	if force {
		for _, p := range []string{cfg.IndexPath(), cfg.MetadataPath()} {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				exitErr("remove "+p, err)
			}
		}
	}

	path, _ := getConfigPath()
	wroteConfig := false
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			exitErr("init", err)
		}
		out := *cfg
		out.Embedding.APIKey = ""
		b, err := yaml.Marshal(&out)
		if err != nil {
			exitErr("encode config", err)
		}
		if err := os.WriteFile(path, b, 0o600); err != nil {
			exitErr("write config", err)
		}
		wroteConfig = true
	}

	e := mustOpenEnv(cmd, false)
	defer e.Close()

	printJSON(map[string]interface{}{
		"ok":           true,
		"index":        e.store.IndexPath(),
		"metadata":     e.store.MetadataPath(),
		"dimension":    e.store.Dimension(),
		"count":        e.store.Count(),
		"config":       path,
		"wrote_config": wroteConfig,
	})
	if e.store.Count() > 0 {
		fmt.Fprintln(os.Stderr, "note: store already holds memories; use --force to start over")
	}
}
