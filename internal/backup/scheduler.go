package backup

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CycleResult summarises one backup-then-sweep cycle.
type CycleResult struct {
	BackedUp    bool
	BackupErr   error
	Deleted     int
	SweepErrors []error
}

// RunCycle performs a backup followed by a retention sweep. Failures are
// logged and returned in the result; neither step aborts the other.
func (s *Scheduler) RunCycle(ctx context.Context) CycleResult {
	start := s.opts.Now()
	s.logger.Info("backup cycle started")

	var res CycleResult
	res.BackedUp, res.BackupErr = s.Backup(ctx)
	res.Deleted, res.SweepErrors = s.Sweep(ctx)

	s.logger.Info("backup cycle finished",
		"backed_up", res.BackedUp, "deleted", res.Deleted,
		"sweep_errors", len(res.SweepErrors), "elapsed", s.opts.Now().Sub(start))
	return res
}

// Start runs one cycle immediately and then one every Interval until Stop.
// Calling Start on a running or starting scheduler does nothing. A Stop that
// arrives during the first cycle returns at once and no timer is installed.
func (s *Scheduler) Start() error {
	s.stateMu.Lock()
	if s.cancel != nil {
		s.stateMu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stateMu.Unlock()

	s.RunCycle(ctx)

	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if ctx.Err() != nil {
		s.logger.Info("backup scheduler stopped before first cycle finished")
		return nil
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(cron.Every(s.opts.Interval), cron.FuncJob(func() {
		if ctx.Err() == nil {
			s.RunCycle(ctx)
		}
	}))
	c.Start()

	s.cron = c
	s.logger.Info("backup scheduler started",
		"interval", s.opts.Interval, "retention", s.opts.Retention,
		"next", time.Now().Add(s.opts.Interval).Format(time.RFC3339))
	return nil
}

// Stop cancels future cycles. It does not wait for a cycle in progress.
// Calling Stop on a stopped scheduler does nothing.
func (s *Scheduler) Stop() {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.cancel == nil {
		return
	}
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cancel()
	s.cron = nil
	s.cancel = nil
	s.logger.Info("backup scheduler stopped")
}

// Running reports whether the scheduler is started or starting.
func (s *Scheduler) Running() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.cancel != nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
