// Package tasks holds grouped task lists derived from sessions, with
// per-item completion state and derived reward points. Task groups are
// independent of sessions once a plan has been accepted: deleting the
// session that produced a plan does not remove its checklist.
package tasks

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"tempo/internal/logging"
	"tempo/internal/store"
)

// Difficulty levels for task items.
const (
	LevelEasy   = 1
	LevelMedium = 2
	LevelHard   = 3
)

// Item is a single checklist entry.
type Item struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	EstimatedMinutes int    `json:"estimatedMinutes,omitempty"`
	Level            int    `json:"level"`
	Done             bool   `json:"done"`
}

// Group is one checklist. Submitted may only become true when every item is
// done; unchecking any item resets it.
type Group struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Items     []Item    `json:"items"`
	Open      bool      `json:"open"`
	Submitted bool      `json:"submitted"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store owns the task groups and the accumulated reward points. Not safe
// for concurrent use; the engine serializes access on its command loop.
type Store struct {
	store *store.Store
	now   func() time.Time
	newID func() string

	groups []*Group
	points int
}

type persisted struct {
	Groups []*Group `json:"groups"`
}

// NewStore loads task state from the local store.
func NewStore(st *store.Store) *Store {
	s := &Store{
		store: st,
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	var p persisted
	if st.GetJSON(store.KeyTaskGroups, &p) {
		s.groups = p.Groups
	}
	st.GetJSON(store.KeyPoints, &s.points)
	logging.Tasks("task store loaded: %d groups, %d points", len(s.groups), s.points)
	return s
}

func (s *Store) save() {
	s.store.SetJSON(store.KeyTaskGroups, persisted{Groups: s.groups})
	s.store.SetJSON(store.KeyPoints, s.points)
}

// EnergyToLevel maps a free-form difficulty hint to the three-level scale.
// The upstream planner produces inconsistent vocabulary, so anything
// unrecognized lands on medium.
func EnergyToLevel(label string) int {
	e := strings.ToLower(strings.TrimSpace(label))
	switch {
	case e == "":
		return LevelMedium
	case strings.Contains(e, "easy") || strings.Contains(e, "легк"):
		return LevelEasy
	case strings.Contains(e, "hard") || strings.Contains(e, "тяж"):
		return LevelHard
	default:
		return LevelMedium
	}
}

// GroupPoints derives the reward for a group from its items: breadth (item
// count) plus a depth bonus of one point per 30 estimated minutes, never
// less than one.
func GroupPoints(g Group) int {
	total := 0
	for _, it := range g.Items {
		total += it.EstimatedMinutes
	}
	pts := len(g.Items) + total/30
	if pts < 1 {
		pts = 1
	}
	return pts
}

// AddGroup inserts a candidate group, or extends an existing group with the
// same title: repeated planning requests about the same topic extend the
// checklist instead of duplicating it. Extending reopens the group and
// clears its submitted flag.
func (s *Store) AddGroup(candidate Group) Group {
	items := s.normalizeItems(candidate.Items)
	title := strings.TrimSpace(candidate.Title)
	if title == "" {
		title = "Plan"
	}

	for _, g := range s.groups {
		if strings.EqualFold(g.Title, title) {
			g.Items = append(g.Items, items...)
			g.Open = true
			g.Submitted = false
			s.save()
			logging.TasksDebug("extended group %q with %d items", title, len(items))
			return *g
		}
	}

	g := &Group{
		ID:        s.newID(),
		Title:     title,
		Items:     items,
		Open:      true,
		CreatedAt: s.now(),
	}
	s.groups = append([]*Group{g}, s.groups...)
	s.save()
	logging.TasksDebug("added group %q with %d items", title, len(items))
	return *g
}

func (s *Store) normalizeItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		it.Text = strings.TrimSpace(it.Text)
		if it.Text == "" {
			continue
		}
		if it.ID == "" {
			it.ID = s.newID()
		}
		if it.Level < LevelEasy || it.Level > LevelHard {
			it.Level = LevelMedium
		}
		if it.EstimatedMinutes < 0 {
			it.EstimatedMinutes = 0
		}
		out = append(out, it)
	}
	return out
}

// Toggle flips an item's done flag. Setting it to false also resets the
// owning group's submitted flag. Unknown ids are a no-op.
func (s *Store) Toggle(groupID, itemID string) bool {
	g := s.find(groupID)
	if g == nil {
		return false
	}
	for i := range g.Items {
		if g.Items[i].ID != itemID {
			continue
		}
		g.Items[i].Done = !g.Items[i].Done
		if !g.Items[i].Done {
			g.Submitted = false
		}
		s.save()
		return true
	}
	return false
}

// SetOpen records the expanded/collapsed display state of a group.
func (s *Store) SetOpen(groupID string, open bool) {
	if g := s.find(groupID); g != nil {
		g.Open = open
		s.save()
	}
}

// Submit marks a group submitted and credits its points. A no-op returning
// (0, false) when the group is unknown, already submitted, or has any item
// left undone. Re-completing items after an uncheck does not auto-resubmit;
// submission is always explicit.
func (s *Store) Submit(groupID string) (int, bool) {
	g := s.find(groupID)
	if g == nil || g.Submitted || len(g.Items) == 0 {
		return 0, false
	}
	for _, it := range g.Items {
		if !it.Done {
			return 0, false
		}
	}
	g.Submitted = true
	pts := GroupPoints(*g)
	s.points += pts
	s.save()
	logging.Tasks("group %q submitted for %d points", g.Title, pts)
	return pts, true
}

// DeleteGroup removes a group. Its already-credited points are kept.
func (s *Store) DeleteGroup(groupID string) {
	for i, g := range s.groups {
		if g.ID == groupID {
			s.groups = append(s.groups[:i], s.groups[i+1:]...)
			s.save()
			return
		}
	}
}

// Groups returns a copy of every group, newest first.
func (s *Store) Groups() []Group {
	out := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		cp := *g
		cp.Items = append([]Item(nil), g.Items...)
		out = append(out, cp)
	}
	return out
}

// Get returns one group by id.
func (s *Store) Get(groupID string) (Group, bool) {
	g := s.find(groupID)
	if g == nil {
		return Group{}, false
	}
	cp := *g
	cp.Items = append([]Item(nil), g.Items...)
	return cp, true
}

// Points returns the accumulated reward total.
func (s *Store) Points() int {
	return s.points
}

// Replace installs groups and points wholesale. Used by the pull path,
// where the remote snapshot is authoritative.
func (s *Store) Replace(groups []Group, points int) {
	s.groups = make([]*Group, 0, len(groups))
	for _, g := range groups {
		cp := g
		cp.Items = append([]Item(nil), g.Items...)
		s.groups = append(s.groups, &cp)
	}
	s.points = points
	s.save()
	logging.TasksDebug("task state replaced: %d groups, %d points", len(groups), points)
}

func (s *Store) find(groupID string) *Group {
	for _, g := range s.groups {
		if g.ID == groupID {
			return g
		}
	}
	return nil
}
