package session

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempo/internal/store"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	st := store.Open(":memory:")
	t.Cleanup(func() { st.Close() })
	r := NewRegistry(st)

	// Deterministic clock and ids.
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	seq := 0
	r.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	return r
}

func TestCreateSeedsTitle(t *testing.T) {
	r := newTestRegistry(t)

	id := r.Create("Plan my week")
	meta, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, "Plan my week", meta.Title, "seed under threshold keeps full text")
	assert.Equal(t, id, r.ActiveID())

	// A later long user message must not replace the non-default title.
	r.Append(id, RoleUser, strings.Repeat("x", 40))
	meta, _ = r.Get(id)
	assert.Equal(t, "Plan my week", meta.Title)
}

func TestTitleTruncation(t *testing.T) {
	long := "This seed text is definitely longer than the limit"
	got := DeriveTitle(long)
	require.True(t, strings.HasSuffix(got, "…"))
	assert.Len(t, []rune(got), TitleLimit+1)

	assert.Equal(t, "", DeriveTitle("   "))
}

func TestFirstUserMessageDerivesTitle(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("")

	meta, _ := r.Get(id)
	require.Equal(t, DefaultTitle, meta.Title)

	// Assistant messages never set the title.
	r.Append(id, RoleAssistant, "hello there")
	meta, _ = r.Get(id)
	assert.Equal(t, DefaultTitle, meta.Title)

	r.Append(id, RoleUser, "Organize my reading list")
	meta, _ = r.Get(id)
	assert.Equal(t, "Organize my reading li…", meta.Title)
}

func TestAppendOrdering(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("ordering")

	for i := 0; i < 5; i++ {
		r.Append(id, RoleUser, fmt.Sprintf("msg %d", i))
	}
	msgs := r.Messages(id, 0)
	require.Len(t, msgs, 5)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].TS.Before(msgs[i-1].TS), "timestamps must be non-decreasing")
	}
}

func TestMessagesLimit(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("tail")
	for i := 0; i < 10; i++ {
		r.Append(id, RoleUser, fmt.Sprintf("m%d", i))
	}
	tail := r.Messages(id, 3)
	require.Len(t, tail, 3)
	assert.Equal(t, "m7", tail[0].Content)
	assert.Equal(t, "m9", tail[2].Content)
}

func TestAppendBumpsUpdatedAt(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("bump")
	before, _ := r.Get(id)

	r.Append(id, RoleUser, "hi")
	after, _ := r.Get(id)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestGarbageCollectNeverLeavesZero(t *testing.T) {
	r := newTestRegistry(t)
	// The registry starts with exactly one empty session, not viewed.
	require.Len(t, r.List(), 1)

	r.SetViewing(false)
	r.GarbageCollect()

	sessions := r.List()
	require.Len(t, sessions, 1, "collection must leave exactly one session")
	assert.Equal(t, sessions[0].ID, r.ActiveID())
	assert.Zero(t, r.MessageCount(sessions[0].ID), "survivor is a fresh empty session")
}

func TestGarbageCollectExemptsViewedActive(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("")
	r.SetViewing(true)

	r.GarbageCollect()
	_, ok := r.Get(id)
	assert.True(t, ok, "active session being viewed must survive collection")
}

func TestGarbageCollectKeepsPopulated(t *testing.T) {
	r := newTestRegistry(t)
	populated := r.Create("keep me")
	r.Append(populated, RoleUser, "content")
	empty := r.Create("")
	_ = empty

	r.SetViewing(false)
	r.GarbageCollect()

	_, ok := r.Get(populated)
	assert.True(t, ok)
	for _, s := range r.List() {
		if s.ID != populated {
			t.Fatalf("unexpected survivor %s", s.ID)
		}
	}
}

func TestAppendWithDuplicateIDIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("dup")

	first := r.AppendWithID(id, RoleUser, "original", "m1")
	second := r.AppendWithID(id, RoleUser, "replacement attempt", "m1")

	assert.Equal(t, first, second)
	require.Equal(t, 1, r.MessageCount(id))
	assert.Equal(t, "original", r.Messages(id, 0)[0].Content)
}

func TestMergeRemoteMessages(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("merge")
	local := r.Append(id, RoleUser, "local one")

	remoteTS := local.TS.Add(-1 * time.Hour)
	added := r.MergeRemoteMessages(id, []Message{
		{MsgID: "r1", Role: RoleAssistant, Content: "earlier remote", TS: remoteTS},
		{MsgID: local.MsgID, Role: RoleUser, Content: "dup of local", TS: local.TS},
	})
	assert.Equal(t, 1, added)

	msgs := r.Messages(id, 0)
	require.Len(t, msgs, 2)
	assert.Equal(t, "r1", msgs[0].MsgID, "older remote message sorts first")
	assert.Equal(t, remoteTS, msgs[0].TS, "remote timestamp preserved")

	// Merging a superset again is idempotent.
	again := r.MergeRemoteMessages(id, []Message{
		{MsgID: "r1", Role: RoleAssistant, Content: "earlier remote", TS: remoteTS},
	})
	assert.Zero(t, again)
	assert.Len(t, r.Messages(id, 0), 2)
}

func TestMergeAdvancesUpdatedAt(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("merge-ts")
	r.Append(id, RoleUser, "hello")
	meta, _ := r.Get(id)

	future := meta.UpdatedAt.Add(time.Hour)
	r.MergeRemoteMessages(id, []Message{
		{MsgID: "late", Role: RoleAssistant, Content: "new", TS: future},
	})
	after, _ := r.Get(id)
	assert.Equal(t, future, after.UpdatedAt)
}

func TestDeleteActiveFallsBack(t *testing.T) {
	r := newTestRegistry(t)
	a := r.Create("first")
	r.Append(a, RoleUser, "x")
	b := r.Create("second")
	r.Append(b, RoleUser, "y")
	require.Equal(t, b, r.ActiveID())

	r.Delete(b)
	assert.Equal(t, a, r.ActiveID())
	_, ok := r.Get(b)
	assert.False(t, ok)
}

func TestRevalidateActive(t *testing.T) {
	r := newTestRegistry(t)
	a := r.Create("old")
	r.Append(a, RoleUser, "x")
	b := r.Create("newer")
	r.Append(b, RoleUser, "y")

	// Simulate a dangling pointer left behind by a pull.
	r.active = "ghost"
	r.RevalidateActive()
	assert.Equal(t, b, r.ActiveID(), "falls back to most recently updated")
}

func TestSetActiveIgnoresEmptyID(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("keep active")
	r.Append(id, RoleUser, "x")

	r.SetActive("")
	assert.Equal(t, id, r.ActiveID())
	for _, s := range r.List() {
		assert.NotEmpty(t, s.ID, "index must not carry a dangling entry")
	}
}

func TestSearch(t *testing.T) {
	r := newTestRegistry(t)
	a := r.Create("Morning routine")
	r.Append(a, RoleUser, "Morning routine")
	b := r.Create("Project kickoff")
	r.Append(b, RoleUser, "Project kickoff")

	hits := r.Search("morning")
	require.Len(t, hits, 1)
	assert.Equal(t, "Morning routine", hits[0].Title)
}

func TestClearHistory(t *testing.T) {
	r := newTestRegistry(t)
	id := r.Create("wipe")
	r.Append(id, RoleUser, "a")
	r.Append(id, RoleAssistant, "b")

	r.ClearHistory(id)
	assert.Zero(t, r.MessageCount(id))
	_, ok := r.Get(id)
	assert.True(t, ok, "session itself survives")
}

func TestPersistenceRoundTrip(t *testing.T) {
	st := store.Open(":memory:")
	defer st.Close()

	r := NewRegistry(st)
	id := r.Create("durable")
	r.Append(id, RoleUser, "remember me")

	r2 := NewRegistry(st)
	assert.Equal(t, id, r2.ActiveID())
	msgs := r2.Messages(id, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, "remember me", msgs[0].Content)
}

func TestDraft(t *testing.T) {
	r := newTestRegistry(t)
	r.SaveDraft("half-typed thought")
	assert.Equal(t, "half-typed thought", r.LoadDraft())
	r.ClearDraft()
	assert.Empty(t, r.LoadDraft())
}
