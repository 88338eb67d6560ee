package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/ripple-memory/internal/backup"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage store snapshots",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "now",
		Short: "Take a snapshot, then delete expired ones",
		Run:   runBackupNow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "info",
		Short: "Summarise the snapshots on disk",
		Run:   runBackupInfo,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete snapshots older than the retention window",
		Run:   runBackupPrune,
	})

	RootCmd.AddCommand(cmd)
}

func newScheduler(cmd *cobra.Command, e *env) *backup.Scheduler {
	opts := backup.Options{
		Dir:       e.cfg.BackupDir(),
		Interval:  e.cfg.Backup.Interval.Std(),
		Retention: e.cfg.Backup.Retention.Std(),
	}
	if e.cfg.Backup.S3.Bucket != "" {
		up, err := backup.NewS3Uploader(cmd.Context(), e.cfg.Backup.S3)
		if err != nil {
			exitErr("s3 uploader", err)
		}
		opts.Uploader = up
	}
	s, err := backup.New(e.store, opts, e.logger, e.metrics)
	if err != nil {
		exitErr("backup", err)
	}
	return s
}

func runBackupNow(cmd *cobra.Command, args []string) {
	e := mustOpenEnv(cmd, false)
	defer e.Close()

	res := newScheduler(cmd, e).RunCycle(cmd.Context())
	if res.BackupErr != nil {
		exitErr("backup", res.BackupErr)
	}
	printJSON(map[string]interface{}{
		"backed_up":    res.BackedUp,
		"deleted":      res.Deleted,
		"sweep_errors": errStrings(res.SweepErrors),
	})
}

func runBackupInfo(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		exitErr("load config", err)
	}
	info, err := backup.Inspect(cfg.BackupDir())
	if err != nil {
		exitErr("backup info", err)
	}
	printJSON(info)
}

func runBackupPrune(cmd *cobra.Command, args []string) {
	e := mustOpenEnv(cmd, false)
	defer e.Close()

	deleted, errs := newScheduler(cmd, e).Sweep(cmd.Context())
	printJSON(map[string]interface{}{
		"deleted": deleted,
		"errors":  errStrings(errs),
	})
	if len(errs) > 0 {
		exitErr("backup prune", fmt.Errorf("%d file(s) could not be deleted", len(errs)))
	}
}

func errStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, err := range errs {
		out = append(out, err.Error())
	}
	return out
}
