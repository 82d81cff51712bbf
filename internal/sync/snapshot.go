package sync

import (
	"tempo/internal/session"
	"tempo/internal/tasks"
)

// SessionExport is one session with its full message history.
type SessionExport struct {
	Meta     session.Session   `json:"meta" yaml:"meta"`
	Messages []session.Message `json:"messages" yaml:"messages"`
}

// Snapshot is the engine's complete exportable state.
type Snapshot struct {
	Sessions []SessionExport `json:"sessions" yaml:"sessions"`
	Tasks    []tasks.Group   `json:"tasks" yaml:"tasks"`
	Points   int             `json:"points" yaml:"points"`
	Profile  Profile         `json:"profile" yaml:"profile"`
}

// Export captures all local state.
func (e *Engine) Export() (snap Snapshot) {
	e.do(func() {
		for _, s := range e.reg.List() {
			snap.Sessions = append(snap.Sessions, SessionExport{
				Meta:     s,
				Messages: e.reg.Messages(s.ID, 0),
			})
		}
		snap.Tasks = e.tasks.Groups()
		snap.Points = e.tasks.Points()
		snap.Profile = e.profile
	})
	return snap
}

// Import merges a snapshot into local state. Sessions and messages merge
// the same way a pull does; tasks, points, and profile replace wholesale.
func (e *Engine) Import(snap Snapshot) {
	e.do(func() {
		for _, s := range snap.Sessions {
			if s.Meta.ID == "" {
				continue
			}
			e.reg.ReplaceMeta(s.Meta)
			e.reg.Ensure(s.Meta.ID)
			e.reg.MergeRemoteMessages(s.Meta.ID, s.Messages)
		}
		e.tasks.Replace(snap.Tasks, snap.Points)
		if snap.Profile != (Profile{}) && snap.Profile.UpdatedAt > e.profile.UpdatedAt {
			e.profile = snap.Profile
			saveProfile(e.st, e.profile)
		}
		e.reg.RevalidateActive()
		e.schedulePush()
	})
}
