package store

import "time"

// SessionMode tags where a user is in the selection flow.
type SessionMode string

const (
	ModeAwaitingSelection SessionMode = "awaiting_selection"
	ModeDocumentSelected  SessionMode = "document_selected"
)

// SelectionAll is the sentinel for "search all documents".
const SelectionAll = "all"

// Turn is one completed question/answer exchange kept in rolling history.
type Turn struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"`
}

// Session is the per-user conversational state. Only the session manager
// mutates it; everyone else works on snapshots.
type Session struct {
	UserId       int64       `json:"user_id"`
	ChatId       int64       `json:"chat_id"`
	Mode         SessionMode `json:"mode"`
	SelectedDoc  string      `json:"selected_doc"`  // document id or SelectionAll
	SelectedName string      `json:"selected_name"` // display name for the selection
	LastActivity time.Time   `json:"last_activity"`
	History      []Turn      `json:"history"`

	// Epoch bumps on every reset. An answer computed against an older epoch
	// is discarded instead of being appended to history.
	Epoch uint64 `json:"epoch"`
}
