// Package model defines the core memory data types.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Role identifies who spoke a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ValidRoles are the allowed turn roles.
var ValidRoles = map[Role]bool{
	RoleUser:  true,
	RoleAgent: true,
}

// ParseRole normalises a role name. "assistant" is accepted as an alias for agent.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "assistant" {
		r = RoleAgent
	}
	if !ValidRoles[r] {
		return "", fmt.Errorf("invalid role %q (use user or agent)", s)
	}
	return r, nil
}

// UnmarshalJSON accepts any role spelling ParseRole accepts.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Turn is a single message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Record is the metadata stored alongside each vector. Its position in the
// store equals the row of its vector in the index.
type Record struct {
	ID           string    `json:"id"`
	Summary      string    `json:"summary"`
	Conversation []Turn    `json:"conversation"`
	Timestamp    time.Time `json:"timestamp"`
}

// SearchResult is a record matched by a nearest-neighbour query.
type SearchResult struct {
	Record
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
}

// BackupInfo summarises the snapshots currently on disk.
type BackupInfo struct {
	Count          int        `json:"backup_count"`
	Oldest         *time.Time `json:"oldest_backup,omitempty"`
	Newest         *time.Time `json:"newest_backup,omitempty"`
	TotalSizeBytes int64      `json:"total_size"`
}

// CloneTurns returns a copy of turns that shares no backing array.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
