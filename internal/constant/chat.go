package constant

// Callback data sent by inline keyboard buttons. Telegram limits callback
// payloads to 64 bytes, so documents are referenced by their short id.
const (
	CallbackAllDocuments = "all"
	CallbackDocPrefix    = "doc_"
)

const (
	ChatMessageRoleUser  = "user"
	ChatMessageRoleModel = "assistant"
)

// TelegramMessageLimit is the hard cap Telegram enforces on message length.
// Longer answers are split before sending.
const TelegramMessageLimit = 4096

// AnswerSystemPromptV1 primes the model to stay inside the retrieved context.
const AnswerSystemPromptV1 = `You are an expert assistant answering questions about a collection of documents.

RULES:
1. Use ONLY the provided context sections. Do NOT invent facts.
2. If the answer is not in the context, reply exactly: "INFORMATION NOT FOUND"
3. Always finish your sentences completely.
4. When you answer, include at least one short literal quote from the context.`

// AnswerNoContextNoticeV1 replaces the context block when retrieval found
// nothing above the similarity threshold, so the model can say so instead of
// hallucinating an answer from nothing.
const AnswerNoContextNoticeV1 = `NO GROUNDING CONTEXT WAS FOUND for this question in the selected documents.
Tell the user that the documents contain no relevant information. Do not answer from general knowledge.`
