package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/ripple-memory/internal/archive"
	"github.com/rcliao/ripple-memory/internal/server"
	"github.com/rcliao/ripple-memory/internal/session"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin HTTP API and the backup scheduler",
		Run:   runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default: server.addr)")
	cmd.Flags().Bool("no-backup", false, "Do not run scheduled backups")

	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")
	noBackup, _ := cmd.Flags().GetBool("no-backup")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := mustOpenEnv(cmd, true)
	defer e.Close()

	if addr == "" {
		addr = e.cfg.Server.Addr
	}

	sessions := session.NewRegistry(e.cfg.Session.StartingQuota, session.WithMetrics(e.metrics))
	archiver := &archive.Archiver{
		Store:        e.store,
		Sessions:     sessions,
		RejectMarker: e.cfg.Session.RejectMarker,
		Logger:       e.logger,
	}

	opts := []server.Option{
		server.WithLogger(e.logger),
		server.WithMetrics(e.metrics),
		server.WithSearchDefaults(e.cfg.Store.SearchK, e.cfg.Store.RecallBudget),
		server.WithBackupDir(e.cfg.BackupDir()),
	}
	if !noBackup {
		sched := newScheduler(cmd, e)
		if err := sched.Start(); err != nil {
			exitErr("start backups", err)
		}
		defer sched.Stop()
		opts = append(opts, server.WithBackups(sched))
	}
	srv := server.New(e.store, sessions, archiver, opts...)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		e.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		exitErr("serve", err)
	}
}
