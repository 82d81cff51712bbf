package sync

import (
	"tempo/internal/store"
)

// Profile is the user-editable identity shown to other devices. Metadata
// reconciles remote-wins, so the whole struct replaces on pull.
type Profile struct {
	Nick      string `json:"nick"`
	Bio       string `json:"bio,omitempty"`
	Age       int    `json:"age,omitempty"`
	UpdatedAt int64  `json:"updatedAt"`
}

func loadProfile(st *store.Store) Profile {
	var p Profile
	st.GetJSON(store.KeyProfile, &p)
	return p
}

func saveProfile(st *store.Store, p Profile) {
	st.SetJSON(store.KeyProfile, p)
}
