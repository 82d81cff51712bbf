// Package session owns the ordered session index, the active-session
// pointer, per-session metadata, and each session's append-only message log.
package session

import (
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"      // local user action
	RoleAssistant Role = "assistant" // remote authority's response
)

// DefaultTitle is assigned to sessions until a title is derived from the
// first user message.
const DefaultTitle = "New session"

// TitleLimit is the display-friendly truncation threshold, in runes.
const TitleLimit = 22

// Session is the metadata for one conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Icon      string    `json:"icon"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is one entry in a session's log. Messages are immutable once
// created; MsgID is the sole deduplication key during merge.
type Message struct {
	MsgID     string    `json:"msgId"`
	SessionID string    `json:"sessionId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	TS        time.Time `json:"ts"`
}

var icons = []string{"💬", "🧠", "⚡", "🧩", "📌", "🎯", "🍀", "🌙", "☀️", "📚"}
