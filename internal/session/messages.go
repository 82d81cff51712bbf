package session

import (
	"tempo/internal/logging"
)

// Append creates a message in a session's log and returns it. Side effects:
// the owning session's UpdatedAt is bumped, the session moves to the top of
// the index, and the first user message replaces a still-default title.
func (r *Registry) Append(sessionID string, role Role, content string) Message {
	return r.AppendWithID(sessionID, role, content, "")
}

// AppendWithID is Append with a caller-supplied message id; an empty id is
// generated. Appending an id already present in the session is a no-op
// returning the existing message.
func (r *Registry) AppendWithID(sessionID string, role Role, content, msgID string) Message {
	r.Ensure(sessionID)
	rec := r.cache[sessionID]

	if msgID == "" {
		msgID = r.newID()
	} else if existing, ok := r.findMessage(rec, msgID); ok {
		return existing
	}

	msg := Message{
		MsgID:     msgID,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		TS:        r.now(),
	}
	rec.Messages = append(rec.Messages, msg)
	r.touch(&rec.Meta)

	if rec.Meta.Title == DefaultTitle && role == RoleUser {
		if t := DeriveTitle(content); t != "" {
			rec.Meta.Title = t
		}
	}

	r.bumpToTop(sessionID)
	r.save()
	logging.SessionDebug("appended %s message %s to session %s", role, msgID, sessionID)
	return msg
}

// Messages returns the most recent limit messages of a session, ordered by
// timestamp ascending. A non-positive limit returns the full log.
func (r *Registry) Messages(sessionID string, limit int) []Message {
	rec, ok := r.cache[sessionID]
	if !ok {
		return nil
	}
	msgs := rec.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// MessageCount returns the size of a session's log.
func (r *Registry) MessageCount(sessionID string) int {
	rec, ok := r.cache[sessionID]
	if !ok {
		return 0
	}
	return len(rec.Messages)
}

// MergeRemoteMessages appends messages whose ids are unknown locally,
// preserving their remote timestamps, then re-sorts the log by timestamp.
// The session's UpdatedAt advances to the last message's timestamp when
// that is newer. Returns the number of messages added.
//
// Merge is additive only: local messages are never mutated or removed, so a
// pull can never destructively overwrite not-yet-pushed local messages.
func (r *Registry) MergeRemoteMessages(sessionID string, remote []Message) int {
	if len(remote) == 0 {
		return 0
	}
	r.Ensure(sessionID)
	rec := r.cache[sessionID]

	known := make(map[string]bool, len(rec.Messages))
	for _, m := range rec.Messages {
		known[m.MsgID] = true
	}

	added := 0
	for _, m := range remote {
		if m.MsgID == "" || known[m.MsgID] {
			continue
		}
		m.SessionID = sessionID
		rec.Messages = append(rec.Messages, m)
		known[m.MsgID] = true
		added++
	}
	if added == 0 {
		return 0
	}

	sortMessages(rec.Messages)
	if last := rec.Messages[len(rec.Messages)-1]; last.TS.After(rec.Meta.UpdatedAt) {
		rec.Meta.UpdatedAt = last.TS
	}
	r.save()
	logging.SessionDebug("merged %d remote messages into session %s", added, sessionID)
	return added
}

func (r *Registry) findMessage(rec *record, msgID string) (Message, bool) {
	for _, m := range rec.Messages {
		if m.MsgID == msgID {
			return m, true
		}
	}
	return Message{}, false
}
