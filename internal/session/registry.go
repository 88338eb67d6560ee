// Package session tracks per-conversation state: the running history and a
// remaining-turn quota. Quota is advisory; the registry reports and
// decrements it but never rejects an operation.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/ripple-memory/internal/model"
	"github.com/rcliao/ripple-memory/internal/telemetry"
)

// Record is the state of one session.
type Record struct {
	ID        string       `json:"id"`
	History   []model.Turn `json:"history"`
	Remaining int          `json:"remaining_count"`
	CreatedAt time.Time    `json:"created_at"`
}

// Update holds the fields to merge into a record. Nil fields are left as is.
type Update struct {
	History   *[]model.Turn
	Remaining *int
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides time.Now for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithMetrics reports the session count.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// Registry maps session ids to records under a single lock. Returned records
// are copies; mutate through the registry.
type Registry struct {
	quota   int
	now     func() time.Time
	metrics *telemetry.Metrics

	mu       sync.Mutex
	sessions map[string]*Record
}

// NewRegistry creates an empty registry whose new sessions start with
// startingQuota remaining turns.
func NewRegistry(startingQuota int, opts ...Option) *Registry {
	r := &Registry{
		quota:    startingQuota,
		now:      time.Now,
		sessions: make(map[string]*Record),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// NewID returns a fresh session id.
func NewID() string {
	return "sess_" + uuid.New().String()
}

// StartingQuota returns the quota given to new or cleared sessions.
func (r *Registry) StartingQuota() int { return r.quota }

func (r *Registry) fresh(id string) *Record {
	return &Record{
		ID:        id,
		History:   []model.Turn{},
		Remaining: r.quota,
		CreatedAt: r.now().UTC(),
	}
}

// getLocked returns the record for id, creating it if absent. r.mu must be held.
func (r *Registry) getLocked(id string) *Record {
	rec, ok := r.sessions[id]
	if !ok {
		rec = r.fresh(id)
		r.sessions[id] = rec
		r.metrics.SetSessions(len(r.sessions))
	}
	return rec
}

// GetOrCreate returns the record for id, creating it with the starting quota
// if absent.
func (r *Registry) GetOrCreate(id string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(id).clone()
}

// Lookup returns the record for id without creating it.
func (r *Registry) Lookup(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Update merges u into the record for id, creating the record first if
// absent. It never fails.
func (r *Registry) Update(id string, u Update) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.getLocked(id)
	if u.History != nil {
		rec.History = model.CloneTurns(*u.History)
		if rec.History == nil {
			rec.History = []model.Turn{}
		}
	}
	if u.Remaining != nil {
		rec.Remaining = *u.Remaining
	}
	return rec.clone()
}

// Clear resets the record for id to fresh defaults. The id stays valid.
func (r *Registry) Clear(id string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.fresh(id)
	r.sessions[id] = rec
	r.metrics.SetSessions(len(r.sessions))
	return rec.clone()
}

// ClearArchived resets the session after its first n turns were archived from
// the record created at createdAt. Turns appended since are kept and charged
// against the fresh quota. If the session was cleared or replaced in the
// meantime it is left alone.
func (r *Registry) ClearArchived(id string, createdAt time.Time, n int) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sessions[id]
	if !ok {
		return r.getLocked(id).clone()
	}
	if !rec.CreatedAt.Equal(createdAt) || len(rec.History) < n {
		return rec.clone()
	}
	next := r.fresh(id)
	for _, turn := range rec.History[n:] {
		next.History = append(next.History, turn)
		if turn.Role == model.RoleAgent && next.Remaining > 0 {
			next.Remaining--
		}
	}
	r.sessions[id] = next
	return next.clone()
}

// AppendTurn adds turn to the session history. An agent turn uses one unit of
// quota, never going below zero.
func (r *Registry) AppendTurn(id string, turn model.Turn) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.getLocked(id)
	rec.History = append(rec.History, turn)
	if turn.Role == model.RoleAgent && rec.Remaining > 0 {
		rec.Remaining--
	}
	return rec.clone()
}

// Consume decrements the remaining quota if any is left and reports the
// count after the call and whether a unit was taken.
func (r *Registry) Consume(id string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.getLocked(id)
	if rec.Remaining <= 0 {
		return rec.Remaining, false
	}
	rec.Remaining--
	return rec.Remaining, true
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (rec *Record) clone() Record {
	out := *rec
	out.History = model.CloneTurns(rec.History)
	if out.History == nil {
		out.History = []model.Turn{}
	}
	return out
}
