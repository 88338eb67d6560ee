package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rcliao/ripple-memory/internal/model"
)

func isBackupFile(name string) bool {
	return strings.HasPrefix(name, IndexPrefix) || strings.HasPrefix(name, MetadataPrefix)
}

// Sweep deletes backup files whose modification time is older than the
// retention window. Per-file failures are logged and collected; they never
// stop the sweep.
func (s *Scheduler) Sweep(ctx context.Context) (int, []error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.opts.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		s.logger.Error("backup sweep: read dir", "dir", s.opts.Dir, "err", err)
		return 0, []error{&IOError{Op: "read dir", Path: s.opts.Dir, Err: err}}
	}

	cutoff := s.opts.Now().Add(-s.opts.Retention)
	deleted := 0
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		path := filepath.Join(s.opts.Dir, e.Name())
		info, err := e.Info()
		if err != nil {
			s.logger.Warn("backup sweep: stat failed", "file", e.Name(), "err", err)
			errs = append(errs, &IOError{Op: "stat", Path: path, Err: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := s.remove(path); err != nil {
			s.logger.Warn("backup sweep: delete failed", "file", e.Name(), "err", err)
			errs = append(errs, &IOError{Op: "remove", Path: path, Err: err})
			continue
		}
		deleted++
		s.logger.Info("deleted expired backup", "file", e.Name())
	}

	s.metrics.AddPruned(deleted)
	if deleted == 0 {
		s.logger.Debug("no expired backups")
	}
	return deleted, errs
}

// Info summarises the backups on disk. One backup is counted per index copy;
// the size covers both artifact kinds. A missing directory yields zero values.
func (s *Scheduler) Info() (model.BackupInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Inspect(s.opts.Dir)
}

// Inspect summarises the backups in dir without a running Scheduler.
func Inspect(dir string) (model.BackupInfo, error) {
	var info model.BackupInfo
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, &IOError{Op: "read dir", Path: dir, Err: err}
	}

	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.TotalSizeBytes += fi.Size()
		if !strings.HasPrefix(e.Name(), IndexPrefix) {
			continue
		}
		info.Count++
		mt := fi.ModTime()
		if info.Oldest == nil || mt.Before(*info.Oldest) {
			info.Oldest = timePtr(mt)
		}
		if info.Newest == nil || mt.After(*info.Newest) {
			info.Newest = timePtr(mt)
		}
	}
	return info, nil
}

func timePtr(t time.Time) *time.Time { return &t }
