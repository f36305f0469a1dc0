package dto

// AnswerResult is the structured outcome of one answer turn. The transport
// layer renders it for the user; it is never an unhandled fault.
type AnswerResult struct {
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources,omitempty"` // document names used for grounding
	Grounded bool     `json:"grounded"`          // false when retrieval came back empty

	Failed     bool   `json:"failed"`
	FailReason string `json:"fail_reason,omitempty"` // user-presentable
}

// Failure reasons shown to the user.
const (
	FailReasonModelUnavailable     = "The language model is currently unavailable. Please try again later."
	FailReasonModelTimeout         = "The language model took too long to answer. Please try again."
	FailReasonRetrievalUnavailable = "Document search is currently unavailable. Please try again later."
)
