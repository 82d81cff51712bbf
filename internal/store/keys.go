package store

// Storage keys. Versions in the key names allow incompatible format changes
// without migration code: a new version simply starts empty.
const (
	KeyProfile      = "profile_v2"
	KeyPoints       = "points_v1"
	KeyActiveChat   = "active_chat_v3"
	KeyChatIndex    = "chats_index_v1"
	KeyChatCache    = "chat_cache_v3"
	KeyTaskGroups   = "tasks_groups_v2"
	KeyDraftMessage = "draft_message"

	// PayloadPrefixCache namespaces offline-cache entries in the payload
	// tier. The full key is PayloadPrefixCache + generation + "/" + request.
	PayloadPrefixCache = "cache_"
)
