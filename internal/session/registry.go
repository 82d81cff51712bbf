package session

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"tempo/internal/logging"
	"tempo/internal/store"
)

// record is the persisted shape of one session: metadata plus its log.
type record struct {
	Meta     Session   `json:"meta"`
	Messages []Message `json:"messages"`
}

// Registry owns the session index, the active-session pointer, and every
// session's message log. It is not safe for concurrent use; the engine
// serializes all access on its command loop.
type Registry struct {
	store *store.Store
	now   func() time.Time
	newID func() string

	index   []string
	active  string
	cache   map[string]*record
	viewing bool // user has the chat surface open
}

// NewRegistry loads registry state from the store. A registry always holds
// at least one session.
func NewRegistry(st *store.Store) *Registry {
	r := &Registry{
		store: st,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
		cache: make(map[string]*record),
	}
	r.load()
	if len(r.index) == 0 {
		r.createLocked("")
	} else {
		r.RevalidateActive()
	}
	logging.Session("registry loaded: %d sessions, active=%s", len(r.index), r.active)
	return r
}

func (r *Registry) load() {
	r.store.GetJSON(store.KeyChatIndex, &r.index)
	r.store.GetJSON(store.KeyChatCache, &r.cache)
	if v, ok := r.store.Get(store.KeyActiveChat); ok {
		r.active = v
	}
	// Drop index entries whose record went missing, and vice versa.
	var kept []string
	for _, id := range r.index {
		if _, ok := r.cache[id]; ok {
			kept = append(kept, id)
		}
	}
	r.index = kept
	for id := range r.cache {
		if !r.inIndex(id) {
			r.index = append(r.index, id)
		}
	}
}

func (r *Registry) save() {
	r.store.Set(store.KeyActiveChat, r.active)
	r.store.SetJSON(store.KeyChatIndex, r.index)
	r.store.SetJSON(store.KeyChatCache, r.cache)
}

func (r *Registry) inIndex(id string) bool {
	for _, x := range r.index {
		if x == id {
			return true
		}
	}
	return false
}

func (r *Registry) bumpToTop(id string) {
	out := []string{id}
	for _, x := range r.index {
		if x != id {
			out = append(out, x)
		}
	}
	r.index = out
}

// Ensure guarantees metadata exists for id, assigning defaults if absent.
// Idempotent; an empty id is ignored.
func (r *Registry) Ensure(id string) {
	if id == "" {
		return
	}
	rec, ok := r.cache[id]
	if !ok {
		now := r.now()
		rec = &record{Meta: Session{
			ID:        id,
			Title:     DefaultTitle,
			Icon:      icons[rand.Intn(len(icons))],
			CreatedAt: now,
			UpdatedAt: now,
		}}
		r.cache[id] = rec
	}
	if rec.Meta.ID == "" {
		rec.Meta.ID = id
	}
	if rec.Meta.Title == "" {
		rec.Meta.Title = DefaultTitle
	}
	if rec.Meta.Icon == "" {
		rec.Meta.Icon = icons[rand.Intn(len(icons))]
	}
	if rec.Meta.UpdatedAt.IsZero() {
		rec.Meta.UpdatedAt = r.now()
	}
	if !r.inIndex(id) {
		r.index = append(r.index, id)
	}
}

// Create allocates a fresh session seeded from seedText, makes it active,
// and returns its id. Garbage collection runs first.
func (r *Registry) Create(seedText string) string {
	r.GarbageCollect()
	return r.createLocked(seedText)
}

func (r *Registry) createLocked(seedText string) string {
	id := r.newID()
	now := r.now()
	title := DefaultTitle
	if t := DeriveTitle(seedText); t != "" {
		title = t
	}
	r.cache[id] = &record{Meta: Session{
		ID:        id,
		Title:     title,
		Icon:      icons[rand.Intn(len(icons))],
		CreatedAt: now,
		UpdatedAt: now,
	}}
	r.bumpToTop(id)
	r.active = id
	r.save()
	logging.SessionDebug("created session %s (%q)", id, title)
	return id
}

// SetActive runs garbage collection, then switches the active pointer.
// Unknown ids are registered; an empty id is ignored.
func (r *Registry) SetActive(id string) {
	if id == "" {
		return
	}
	r.GarbageCollect()
	r.active = id
	r.Ensure(id)
	r.bumpToTop(id)
	r.save()
}

// ActiveID returns the current active session id.
func (r *Registry) ActiveID() string {
	return r.active
}

// SetViewing records whether the user currently has the chat surface open.
// The active session is exempt from garbage collection while viewed.
func (r *Registry) SetViewing(v bool) {
	r.viewing = v
}

// GarbageCollect deletes every empty session unless it is the active one
// and the user is viewing the chat surface. At least one session always
// survives: if collection empties the registry a fresh session is created.
func (r *Registry) GarbageCollect() {
	var toDelete []string
	for _, id := range r.index {
		rec, ok := r.cache[id]
		if !ok {
			toDelete = append(toDelete, id)
			continue
		}
		if len(rec.Messages) > 0 {
			continue
		}
		if id == r.active && r.viewing {
			continue
		}
		toDelete = append(toDelete, id)
	}
	if len(toDelete) == 0 {
		return
	}

	dead := make(map[string]bool, len(toDelete))
	for _, id := range toDelete {
		dead[id] = true
		delete(r.cache, id)
	}
	var kept []string
	for _, id := range r.index {
		if !dead[id] {
			kept = append(kept, id)
		}
	}
	r.index = kept

	if dead[r.active] {
		if len(r.index) > 0 {
			r.active = r.index[0]
		} else {
			r.active = ""
		}
	}
	if len(r.index) == 0 {
		r.createLocked("")
		return
	}
	r.save()
	logging.SessionDebug("garbage collected %d empty sessions", len(toDelete))
}

// Delete removes a session and its messages. When the active session is
// deleted the pointer falls back to the top of the index.
func (r *Registry) Delete(id string) {
	delete(r.cache, id)
	var kept []string
	for _, x := range r.index {
		if x != id {
			kept = append(kept, x)
		}
	}
	r.index = kept
	if r.active == id {
		if len(r.index) > 0 {
			r.active = r.index[0]
		} else {
			r.active = ""
			r.createLocked("")
			return
		}
	}
	r.save()
}

// ClearHistory empties a session's message log without deleting it.
func (r *Registry) ClearHistory(id string) {
	rec, ok := r.cache[id]
	if !ok {
		return
	}
	rec.Messages = nil
	r.touch(&rec.Meta)
	r.save()
}

// Reset drops every session and starts over with one fresh session.
func (r *Registry) Reset() {
	r.cache = make(map[string]*record)
	r.index = nil
	r.active = ""
	r.createLocked("")
}

// List returns session metadata in index order (most recent first).
func (r *Registry) List() []Session {
	out := make([]Session, 0, len(r.index))
	for _, id := range r.index {
		if rec, ok := r.cache[id]; ok {
			out = append(out, rec.Meta)
		}
	}
	return out
}

// Get returns a session's metadata.
func (r *Registry) Get(id string) (Session, bool) {
	rec, ok := r.cache[id]
	if !ok {
		return Session{}, false
	}
	return rec.Meta, true
}

// Search returns sessions whose title contains the query, case-insensitive.
func (r *Registry) Search(query string) []Session {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.List()
	}
	var out []Session
	for _, id := range r.index {
		rec, ok := r.cache[id]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(rec.Meta.Title), q) {
			out = append(out, rec.Meta)
		}
	}
	return out
}

// ReplaceMeta installs remote metadata wholesale, registering the session
// if it is unknown locally. Used by the pull path, where remote metadata is
// authoritative.
func (r *Registry) ReplaceMeta(meta Session) {
	r.Ensure(meta.ID)
	rec := r.cache[meta.ID]
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = rec.Meta.CreatedAt
	}
	rec.Meta = meta
	r.save()
}

// RevalidateActive ensures the active pointer resolves to a known session,
// falling back to the most recently updated one.
func (r *Registry) RevalidateActive() {
	if _, ok := r.cache[r.active]; ok {
		return
	}
	var best string
	var bestAt time.Time
	for id, rec := range r.cache {
		if best == "" || rec.Meta.UpdatedAt.After(bestAt) {
			best, bestAt = id, rec.Meta.UpdatedAt
		}
	}
	if best == "" {
		r.createLocked("")
		return
	}
	r.active = best
	r.save()
}

// touch bumps UpdatedAt, keeping it monotonically non-decreasing.
func (r *Registry) touch(meta *Session) {
	if now := r.now(); now.After(meta.UpdatedAt) {
		meta.UpdatedAt = now
	}
}

// DeriveTitle builds a display title from message text: trimmed, truncated
// to TitleLimit runes with an ellipsis. Empty text yields an empty title.
func DeriveTitle(text string) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return ""
	}
	runes := []rune(t)
	if len(runes) > TitleLimit {
		return string(runes[:TitleLimit]) + "…"
	}
	return t
}

// SaveDraft persists the pending input text.
func (r *Registry) SaveDraft(text string) {
	r.store.Set(store.KeyDraftMessage, text)
}

// LoadDraft returns the pending input text, if any.
func (r *Registry) LoadDraft() string {
	v, _ := r.store.Get(store.KeyDraftMessage)
	return v
}

// ClearDraft discards the pending input text.
func (r *Registry) ClearDraft() {
	r.store.Remove(store.KeyDraftMessage)
}

// sortMessages orders a log by timestamp ascending, ties broken by
// insertion order.
func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].TS.Before(msgs[j].TS)
	})
}
