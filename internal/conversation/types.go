package conversation

import (
	"context"
	"time"
)

// Roles of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Turn is one user or assistant entry in a call's ordered history. Source
// records whether the entry crossed the voice or the typed-text path; order
// is preserved across that boundary.
type Turn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists and retrieves conversation turns.
type Store interface {
	SaveTurn(ctx context.Context, turn Turn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	Close() error
}
