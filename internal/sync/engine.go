// Package sync owns the reconciliation loop between local state and the
// remote endpoint. All state mutation runs on a single command loop, so
// the registry and task store never see concurrent access.
package sync

import (
	"context"
	"time"

	"tempo/internal/logging"
	"tempo/internal/session"
	"tempo/internal/store"
	"tempo/internal/tasks"
)

// Options tunes the engine's loop.
type Options struct {
	ActorID      string
	PushDebounce time.Duration
	PullInterval time.Duration
	// MessageTail caps messages per session in each push.
	MessageTail int
}

func (o *Options) fill() {
	if o.PushDebounce <= 0 {
		o.PushDebounce = 400 * time.Millisecond
	}
	if o.PullInterval <= 0 {
		o.PullInterval = 30 * time.Second
	}
	if o.MessageTail <= 0 {
		o.MessageTail = 50
	}
}

// Engine coordinates sessions, tasks, and the remote. Every public method
// executes on the engine's command loop and returns once applied; local
// writes never wait on the network.
type Engine struct {
	st     *store.Store
	reg    *session.Registry
	tasks  *tasks.Store
	remote Remote
	opts   Options

	cmds      chan func()
	stop      chan struct{}
	stopped   chan struct{}
	pushTimer *time.Timer
	profile   Profile
}

// NewEngine wires an engine over the local store. remote may be nil, in
// which case the engine runs purely local and the loop never pushes or
// pulls.
func NewEngine(st *store.Store, remote Remote, opts Options) *Engine {
	opts.fill()
	e := &Engine{
		st:      st,
		reg:     session.NewRegistry(st),
		tasks:   tasks.NewStore(st),
		remote:  remote,
		opts:    opts,
		cmds:    make(chan func(), 64),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		profile: loadProfile(st),
	}
	e.pushTimer = time.NewTimer(time.Hour)
	if !e.pushTimer.Stop() {
		<-e.pushTimer.C
	}
	go e.loop()
	logging.SyncLog("engine started, actor=%s remote=%v", opts.ActorID, remote != nil)
	return e
}

func (e *Engine) loop() {
	defer close(e.stopped)

	pull := time.NewTicker(e.opts.PullInterval)
	defer pull.Stop()
	defer e.pushTimer.Stop()

	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.pushTimer.C:
			e.pushNow()
		case <-pull.C:
			e.pullNow()
		case <-e.stop:
			return
		}
	}
}

// do runs fn on the loop and waits for it. A command racing with Close may
// be dropped rather than executed; it never blocks forever.
func (e *Engine) do(fn func()) {
	done := make(chan struct{})
	select {
	case e.cmds <- func() { fn(); close(done) }:
		select {
		case <-done:
		case <-e.stopped:
		}
	case <-e.stopped:
	}
}

// schedulePush arms the debounce timer. Runs on the loop only.
func (e *Engine) schedulePush() {
	if e.remote == nil {
		return
	}
	if !e.pushTimer.Stop() {
		select {
		case <-e.pushTimer.C:
		default:
		}
	}
	e.pushTimer.Reset(e.opts.PushDebounce)
}

// buildPush snapshots current state. State is read when the debounce
// fires, so a burst of edits collapses into one request carrying the
// latest state.
func (e *Engine) buildPush() PushRequest {
	req := PushRequest{ActorID: e.opts.ActorID}
	for _, s := range e.reg.List() {
		req.SessionUpserts = append(req.SessionUpserts, sessionToRecord(s))
		for _, m := range e.reg.Messages(s.ID, e.opts.MessageTail) {
			req.MessageUpserts = append(req.MessageUpserts, messageToRecord(m))
		}
	}
	req.TaskSnapshot = &TaskSnapshot{Groups: e.tasks.Groups()}
	pts := e.tasks.Points()
	req.RewardPoints = &pts
	if e.profile != (Profile{}) {
		p := e.profile
		req.Profile = &p
	}
	return req
}

// pushNow performs one push attempt. Failures are dropped; the next edit
// rearms the debounce and resends the then-current state.
func (e *Engine) pushNow() {
	if e.remote == nil {
		return
	}
	timer := logging.StartTimer(logging.CategorySync, "push")
	defer timer.Stop()

	req := e.buildPush()
	if err := e.remote.Push(context.Background(), req); err != nil {
		logging.SyncWarn("push failed: %v", err)
		return
	}
	logging.SyncDebug("pushed %d sessions, %d messages", len(req.SessionUpserts), len(req.MessageUpserts))
}

// pullNow fetches the remote's merged state and applies it: metadata,
// tasks, points, and profile replace wholesale; messages merge additively.
func (e *Engine) pullNow() {
	if e.remote == nil {
		return
	}
	timer := logging.StartTimer(logging.CategorySync, "pull")
	defer timer.Stop()

	resp, err := e.remote.Pull(context.Background(), PullRequest{ActorID: e.opts.ActorID})
	if err != nil {
		logging.SyncWarn("pull failed: %v", err)
		return
	}
	e.applyPull(resp)
}

func (e *Engine) applyPull(resp PullResponse) {
	for _, r := range resp.Sessions {
		e.reg.ReplaceMeta(recordToSession(r))
		e.reg.Ensure(r.SessionID) // restore defaults the remote left blank
	}

	byID := make(map[string][]session.Message)
	for _, r := range resp.Messages {
		byID[r.SessionID] = append(byID[r.SessionID], recordToMessage(r))
	}
	added := 0
	for id, msgs := range byID {
		e.reg.Ensure(id)
		added += e.reg.MergeRemoteMessages(id, msgs)
	}

	if resp.TaskSnapshot != nil {
		pts := e.tasks.Points()
		if resp.RewardPoints != nil {
			pts = *resp.RewardPoints
		}
		e.tasks.Replace(resp.TaskSnapshot.Groups, pts)
	} else if resp.RewardPoints != nil {
		e.tasks.Replace(e.tasks.Groups(), *resp.RewardPoints)
	}

	// Unlike session metadata, the profile carries its own edit timestamp,
	// so a pull racing ahead of the debounced push cannot regress a fresh
	// local edit: an older remote copy is ignored.
	if resp.Profile != nil && resp.Profile.UpdatedAt > e.profile.UpdatedAt {
		e.profile = *resp.Profile
		saveProfile(e.st, e.profile)
	}

	e.reg.RevalidateActive()
	logging.SyncDebug("pull applied: %d sessions, %d new messages", len(resp.Sessions), added)
}

// Close stops the loop. Pending debounced pushes are abandoned; the state
// they carried is resent by the next session.
func (e *Engine) Close() {
	close(e.stop)
	<-e.stopped
	logging.SyncLog("engine stopped")
}

// CreateSession opens a fresh session seeded from text and returns its id.
func (e *Engine) CreateSession(seed string) (id string) {
	e.do(func() {
		id = e.reg.Create(seed)
		e.schedulePush()
	})
	return id
}

// SetActiveSession switches the active session.
func (e *Engine) SetActiveSession(id string) {
	e.do(func() {
		e.reg.SetActive(id)
		e.schedulePush()
	})
}

// ActiveSessionID returns the active session's id.
func (e *Engine) ActiveSessionID() (id string) {
	e.do(func() { id = e.reg.ActiveID() })
	return id
}

// SetViewing records whether the active session is on screen, which
// exempts it from empty-session collection.
func (e *Engine) SetViewing(v bool) {
	e.do(func() { e.reg.SetViewing(v) })
}

// AppendMessage appends to a session and schedules a push.
func (e *Engine) AppendMessage(sessionID string, role session.Role, content string) (msg session.Message) {
	e.do(func() {
		msg = e.reg.Append(sessionID, role, content)
		e.schedulePush()
	})
	return msg
}

// ListSessions returns all sessions, most recently used first.
func (e *Engine) ListSessions() (out []session.Session) {
	e.do(func() { out = e.reg.List() })
	return out
}

// SearchSessions returns sessions whose title contains query.
func (e *Engine) SearchSessions(query string) (out []session.Session) {
	e.do(func() { out = e.reg.Search(query) })
	return out
}

// MessagesOf returns up to limit recent messages of a session, oldest
// first. limit <= 0 means all.
func (e *Engine) MessagesOf(sessionID string, limit int) (out []session.Message) {
	e.do(func() { out = e.reg.Messages(sessionID, limit) })
	return out
}

// DeleteSession removes a session and its messages.
func (e *Engine) DeleteSession(id string) {
	e.do(func() {
		e.reg.Delete(id)
		e.schedulePush()
	})
}

// ClearSessionHistory drops a session's messages, keeping its metadata.
func (e *Engine) ClearSessionHistory(id string) {
	e.do(func() {
		e.reg.ClearHistory(id)
		e.schedulePush()
	})
}

// ResetSessions wipes the registry down to one fresh session.
func (e *Engine) ResetSessions() {
	e.do(func() {
		e.reg.Reset()
		e.schedulePush()
	})
}

// SaveDraft persists the composer draft for the active session.
func (e *Engine) SaveDraft(text string) {
	e.do(func() { e.reg.SaveDraft(text) })
}

// LoadDraft returns the saved composer draft.
func (e *Engine) LoadDraft() (text string) {
	e.do(func() { text = e.reg.LoadDraft() })
	return text
}

// AcceptPlan turns plan candidates into task groups, merging with existing
// groups by title.
func (e *Engine) AcceptPlan(candidates []tasks.Group) (out []tasks.Group) {
	e.do(func() {
		for _, c := range candidates {
			out = append(out, e.tasks.AddGroup(c))
		}
		e.schedulePush()
	})
	return out
}

// ToggleTaskItem flips one item's done state.
func (e *Engine) ToggleTaskItem(groupID, itemID string) (ok bool) {
	e.do(func() {
		ok = e.tasks.Toggle(groupID, itemID)
		if ok {
			e.schedulePush()
		}
	})
	return ok
}

// SubmitTaskGroup submits a fully-done group and credits its points.
func (e *Engine) SubmitTaskGroup(groupID string) (points int, ok bool) {
	e.do(func() {
		points, ok = e.tasks.Submit(groupID)
		if ok {
			e.schedulePush()
		}
	})
	return points, ok
}

// TaskGroups returns every task group.
func (e *Engine) TaskGroups() (out []tasks.Group) {
	e.do(func() { out = e.tasks.Groups() })
	return out
}

// TaskStats returns the completion summary.
func (e *Engine) TaskStats() (st tasks.Stats) {
	e.do(func() { st = e.tasks.Stats() })
	return st
}

// RewardPoints returns the accumulated reward total.
func (e *Engine) RewardPoints() (pts int) {
	e.do(func() { pts = e.tasks.Points() })
	return pts
}

// Profile returns the stored profile.
func (e *Engine) Profile() (p Profile) {
	e.do(func() { p = e.profile })
	return p
}

// UpdateProfile stores the profile and schedules a push, then pulls so the
// remote's merged view lands promptly.
func (e *Engine) UpdateProfile(p Profile) {
	e.do(func() {
		p.UpdatedAt = time.Now().UnixMilli()
		e.profile = p
		saveProfile(e.st, p)
		e.schedulePush()
	})
	e.PullNow()
}

// PushNow pushes immediately, bypassing the debounce.
func (e *Engine) PushNow() {
	e.do(e.pushNow)
}

// PullNow pulls immediately.
func (e *Engine) PullNow() {
	e.do(e.pullNow)
}

// Health probes the remote.
func (e *Engine) Health(ctx context.Context) error {
	if e.remote == nil {
		return nil
	}
	return e.remote.Health(ctx)
}
