package domain

import "time"

// Role identifies who authored a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// ConversationTurn is a single persisted, append-only conversation entry.
// It is unique by (SessionID, MessageID).
type ConversationTurn struct {
	SessionID string
	MessageID string
	UserID    string
	Role      Role
	Text      string
	Timestamp time.Time
	TTL       int64
}

// SessionSummary describes a session as seen through its most recent turn.
type SessionSummary struct {
	SessionID    string
	UserID       string
	LastActivity time.Time
	LastMessage  string
}
