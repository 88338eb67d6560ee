package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/ripple-memory/internal/backup"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store and backup statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	e := mustOpenEnv(cmd, false)
	defer e.Close()

	info, err := backup.Inspect(e.cfg.BackupDir())
	if err != nil {
		exitErr("stats", err)
	}

	printJSON(map[string]interface{}{
		"store":    e.store.Stats(),
		"backups":  info,
		"provider": e.cfg.Embedding.Provider,
	})
}
