// Package archive turns a finished session into a stored memory.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/rcliao/ripple-memory/internal/model"
	"github.com/rcliao/ripple-memory/internal/session"
)

// DefaultRejectMarker is the summary an agent writes when a conversation is
// not worth remembering.
const DefaultRejectMarker = "拒绝"

// ErrEmptyHistory is returned when the session has no turns to archive.
var ErrEmptyHistory = errors.New("archive: session history is empty")

// ErrEmptySummary is returned for a blank summary.
var ErrEmptySummary = errors.New("archive: summary is empty")

// Adder stores a summarised conversation.
type Adder interface {
	Add(ctx context.Context, summary string, conversation []model.Turn) (*model.Record, error)
}

// Result describes the outcome of an archive.
type Result struct {
	SessionID string        `json:"session_id"`
	Saved     bool          `json:"saved"`
	Rejected  bool          `json:"rejected"`
	Record    *model.Record `json:"record,omitempty"`
}

// Archiver saves session histories to the memory store.
type Archiver struct {
	Store    Adder
	Sessions *session.Registry
	// RejectMarker defaults to DefaultRejectMarker.
	RejectMarker string
	Logger       *slog.Logger

	// flight makes archiving one session exclusive; concurrent callers for
	// the same id share the first call's result.
	flight singleflight.Group
}

func (a *Archiver) marker() string {
	if a.RejectMarker == "" {
		return DefaultRejectMarker
	}
	return a.RejectMarker
}

func (a *Archiver) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// Archive stores summary with the session's history and clears the archived
// turns. A summary equal to the reject marker is not stored but still clears
// them. Turns appended while the store is writing are kept. If the store
// fails the session is left untouched for a retry.
//
// Concurrent calls for the same session run once and share the result.
func (a *Archiver) Archive(ctx context.Context, sessionID, summary string) (Result, error) {
	v, err, _ := a.flight.Do(sessionID, func() (interface{}, error) {
		return a.archive(context.WithoutCancel(ctx), sessionID, summary)
	})
	return v.(Result), err
}

func (a *Archiver) archive(ctx context.Context, sessionID, summary string) (Result, error) {
	res := Result{SessionID: sessionID}

	rec, ok := a.Sessions.Lookup(sessionID)
	if !ok || len(rec.History) == 0 {
		return res, ErrEmptyHistory
	}

	trimmed := strings.TrimSpace(summary)
	if trimmed == "" {
		return res, ErrEmptySummary
	}
	if trimmed == a.marker() {
		a.Sessions.ClearArchived(sessionID, rec.CreatedAt, len(rec.History))
		res.Rejected = true
		a.logger().Info("archive rejected by summary", "session", sessionID, "turns", len(rec.History))
		return res, nil
	}

	saved, err := a.Store.Add(ctx, trimmed, rec.History)
	if err != nil {
		return res, fmt.Errorf("archive session %s: %w", sessionID, err)
	}
	a.Sessions.ClearArchived(sessionID, rec.CreatedAt, len(rec.History))
	res.Saved = true
	res.Record = saved
	a.logger().Info("session archived", "session", sessionID, "id", saved.ID, "turns", len(rec.History))
	return res, nil
}
