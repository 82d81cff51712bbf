package sync

import (
	"time"

	"tempo/internal/session"
	"tempo/internal/tasks"
)

// SessionRecord is session metadata on the wire. Timestamps travel as unix
// milliseconds so heterogeneous clients agree on precision.
type SessionRecord struct {
	SessionID string `json:"sessionId"`
	Title     string `json:"title"`
	Icon      string `json:"icon"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// MessageRecord is one message on the wire.
type MessageRecord struct {
	SessionID string `json:"sessionId"`
	MsgID     string `json:"msgId"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"createdAt"`
}

// TaskSnapshot carries the full task state; tasks reconcile wholesale, not
// per item.
type TaskSnapshot struct {
	Groups []tasks.Group `json:"groups"`
}

// PushRequest uploads this client's current state. Pushes are state-based:
// the same records may be sent repeatedly until a push succeeds.
type PushRequest struct {
	ActorID        string          `json:"actorId"`
	SessionUpserts []SessionRecord `json:"sessionUpserts,omitempty"`
	MessageUpserts []MessageRecord `json:"messageUpserts,omitempty"`
	TaskSnapshot   *TaskSnapshot   `json:"taskSnapshot,omitempty"`
	RewardPoints   *int            `json:"rewardPoints,omitempty"`
	Profile        *Profile        `json:"profile,omitempty"`
}

// PullRequest asks the remote for the actor's merged state.
type PullRequest struct {
	ActorID string `json:"actorId"`
}

// PullResponse is the remote's merged view. Nil TaskSnapshot or
// RewardPoints means the remote has no opinion and local state stands.
type PullResponse struct {
	Sessions     []SessionRecord `json:"sessions"`
	Messages     []MessageRecord `json:"messages"`
	TaskSnapshot *TaskSnapshot   `json:"taskSnapshot,omitempty"`
	RewardPoints *int            `json:"rewardPoints,omitempty"`
	Profile      *Profile        `json:"profile,omitempty"`
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func sessionToRecord(s session.Session) SessionRecord {
	return SessionRecord{
		SessionID: s.ID,
		Title:     s.Title,
		Icon:      s.Icon,
		CreatedAt: toMillis(s.CreatedAt),
		UpdatedAt: toMillis(s.UpdatedAt),
	}
}

func recordToSession(r SessionRecord) session.Session {
	return session.Session{
		ID:        r.SessionID,
		Title:     r.Title,
		Icon:      r.Icon,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
}

func messageToRecord(m session.Message) MessageRecord {
	return MessageRecord{
		SessionID: m.SessionID,
		MsgID:     m.MsgID,
		Role:      string(m.Role),
		Content:   m.Content,
		CreatedAt: toMillis(m.TS),
	}
}

func recordToMessage(r MessageRecord) session.Message {
	return session.Message{
		SessionID: r.SessionID,
		MsgID:     r.MsgID,
		Role:      session.Role(r.Role),
		Content:   r.Content,
		TS:        fromMillis(r.CreatedAt),
	}
}

// normalizeSessions drops records without a session id. Partial garbage
// from a flaky remote must not corrupt the registry.
func normalizeSessions(in []SessionRecord) []SessionRecord {
	out := in[:0]
	for _, r := range in {
		if r.SessionID == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// normalizeMessages drops records missing a session or message id.
func normalizeMessages(in []MessageRecord) []MessageRecord {
	out := in[:0]
	for _, r := range in {
		if r.SessionID == "" || r.MsgID == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
