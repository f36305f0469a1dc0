package dto

// IndexReport summarizes one Sync run for observability.
type IndexReport struct {
	Indexed  int               `json:"indexed"`
	Skipped  int               `json:"skipped"`
	Failed   int               `json:"failed"`
	Removed  int               `json:"removed"`
	Failures map[string]string `json:"failures,omitempty"` // document name -> reason
}

func NewIndexReport() *IndexReport {
	return &IndexReport{Failures: make(map[string]string)}
}

type SyncRequest struct {
	Folder string `json:"folder" validate:"omitempty,dirpath|dir"`
}

// ReindexRequestMessage is the payload published when a user asks for a
// re-index. ChatId lets the consumer report the outcome back to the chat.
type ReindexRequestMessage struct {
	ChatId      int64  `json:"chat_id"`
	RequestedBy int64  `json:"requested_by"`
	Folder      string `json:"folder"`
}
