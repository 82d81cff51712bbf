package tasks

// GroupStats summarizes completion for one group.
type GroupStats struct {
	GroupID      string `json:"groupId"`
	Title        string `json:"title"`
	Total        int    `json:"total"`
	Done         int    `json:"done"`
	Minutes      int    `json:"minutes"`
	Submitted    bool   `json:"submitted"`
	PointsOnSend int    `json:"pointsOnSend"`
}

// Stats summarizes completion across all groups.
type Stats struct {
	Groups     []GroupStats `json:"groups"`
	TotalItems int          `json:"totalItems"`
	DoneItems  int          `json:"doneItems"`
	Percentage int          `json:"percentage"`
	Points     int          `json:"points"`
}

// Stats returns a completion summary. Percentage is 0 when there are no
// items at all.
func (s *Store) Stats() Stats {
	st := Stats{Points: s.points}
	for _, g := range s.groups {
		gs := GroupStats{
			GroupID:      g.ID,
			Title:        g.Title,
			Total:        len(g.Items),
			Submitted:    g.Submitted,
			PointsOnSend: GroupPoints(*g),
		}
		for _, it := range g.Items {
			gs.Minutes += it.EstimatedMinutes
			if it.Done {
				gs.Done++
			}
		}
		st.Groups = append(st.Groups, gs)
		st.TotalItems += gs.Total
		st.DoneItems += gs.Done
	}
	if st.TotalItems > 0 {
		st.Percentage = st.DoneItems * 100 / st.TotalItems
	}
	return st
}
