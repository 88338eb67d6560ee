// Package backup takes periodic point-in-time copies of the memory store's
// artifacts and deletes copies older than a retention window.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rcliao/ripple-memory/internal/telemetry"
)

// File name prefixes and the timestamp layout of backup copies.
const (
	IndexPrefix     = "vector_index_"
	MetadataPrefix  = "vector_metadata_"
	IndexSuffix     = ".rvi"
	MetadataSuffix  = ".db"
	TimestampLayout = "20060102_150405"
)

// Source exposes a consistent view of the artifacts to copy.
// *store.MemoryStore implements it.
type Source interface {
	Snapshot(fn func(indexPath, metadataPath string) error) error
}

// Uploader ships a finished backup file off the host.
type Uploader interface {
	Upload(ctx context.Context, name, path string) error
}

// IOError reports a failed backup copy.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("backup %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Options configures a Scheduler.
type Options struct {
	Dir       string
	Interval  time.Duration
	Retention time.Duration
	// Uploader, when set, receives every backup file after it is written.
	Uploader Uploader
	// Now defaults to time.Now.
	Now func() time.Time
}

// Scheduler runs backup-then-sweep cycles on a fixed interval.
type Scheduler struct {
	src     Source
	opts    Options
	logger  *slog.Logger
	metrics *telemetry.Metrics

	// mu serialises backup and sweep so a sweep never sees a half-copied pair.
	mu     sync.Mutex
	remove func(string) error

	stateMu sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
}

// New creates a stopped Scheduler and ensures the backup directory exists.
func New(src Source, opts Options, logger *slog.Logger, metrics *telemetry.Metrics) (*Scheduler, error) {
	if opts.Dir == "" {
		return nil, errors.New("backup: dir is required")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("backup: interval must be positive, got %s", opts.Interval)
	}
	if opts.Retention <= 0 {
		return nil, fmt.Errorf("backup: retention must be positive, got %s", opts.Retention)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, &IOError{Op: "create dir", Path: opts.Dir, Err: err}
	}
	return &Scheduler{src: src, opts: opts, logger: logger, metrics: metrics, remove: os.Remove}, nil
}

// Dir returns the backup directory.
func (s *Scheduler) Dir() string { return s.opts.Dir }

// Backup copies both artifacts into the backup directory under a shared
// timestamp. It reports false without error when either artifact is missing.
func (s *Scheduler) Backup(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Now()
	stamp := now.Format(TimestampLayout)
	indexDst := filepath.Join(s.opts.Dir, IndexPrefix+stamp+IndexSuffix)
	metaDst := filepath.Join(s.opts.Dir, MetadataPrefix+stamp+MetadataSuffix)

	copied := false
	err := s.src.Snapshot(func(indexPath, metadataPath string) error {
		for _, p := range []string{indexPath, metadataPath} {
			if _, err := os.Stat(p); err != nil {
				if os.IsNotExist(err) {
					s.logger.Warn("backup skipped: artifact missing", "path", p)
					return nil
				}
				return &IOError{Op: "stat", Path: p, Err: err}
			}
		}
		if err := copyFile(indexPath, indexDst, now); err != nil {
			return err
		}
		if err := copyFile(metadataPath, metaDst, now); err != nil {
			os.Remove(indexDst)
			return err
		}
		copied = true
		return nil
	})
	if err != nil {
		s.metrics.ObserveBackup("error", now)
		s.logger.Error("backup failed", "err", err)
		return false, err
	}
	if !copied {
		s.metrics.ObserveBackup("skipped", now)
		return false, nil
	}

	s.metrics.ObserveBackup("ok", now)
	s.logger.Info("backup complete", "timestamp", stamp, "index", indexDst, "metadata", metaDst)

	if s.opts.Uploader != nil {
		for _, p := range []string{indexDst, metaDst} {
			if err := s.opts.Uploader.Upload(ctx, filepath.Base(p), p); err != nil {
				s.metrics.ObserveUpload("error")
				s.logger.Error("backup upload failed", "file", filepath.Base(p), "err", err)
				continue
			}
			s.metrics.ObserveUpload("ok")
		}
	}
	return true, nil
}

// copyFile copies src to dst and stamps dst with mtime.
func copyFile(src, dst string, mtime time.Time) error {
	in, err := os.Open(src)
	if err != nil {
		return &IOError{Op: "open", Path: src, Err: err}
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &IOError{Op: "create", Path: dst, Err: err}
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return &IOError{Op: "copy", Path: dst, Err: err}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return &IOError{Op: "sync", Path: dst, Err: err}
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return &IOError{Op: "close", Path: dst, Err: err}
	}
	if err := os.Chtimes(dst, mtime, mtime); err != nil {
		return &IOError{Op: "chtimes", Path: dst, Err: err}
	}
	return nil
}
