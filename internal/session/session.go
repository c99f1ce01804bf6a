// Package session owns the lifecycle of conversational sessions: creation,
// per-turn activity refresh, history and teardown. All state lives in a
// store.Store so the process itself holds no session data.
package session

import (
	"time"
)

// Session is the metadata of one conversational thread.
type Session struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	QueryCount   int64     `json:"query_count"`
}

// Role identifies the author of a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// HistoryEntry is one message of the conversation.
type HistoryEntry struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"ts"`
}

// meta is the persisted form of the immutable part of a session. Activity
// and the query counter live under their own keys so they can be updated
// without rewriting this record.
type meta struct {
	CreatedAt time.Time `json:"created_at"`
}
