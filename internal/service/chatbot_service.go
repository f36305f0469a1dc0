package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pdf-chat-bot/internal/constant"
	"pdf-chat-bot/internal/dto"
	"pdf-chat-bot/internal/entity"
	"pdf-chat-bot/internal/pkg/logger"
	"pdf-chat-bot/pkg/rag/answer"
	"pdf-chat-bot/pkg/rag/session"
	"pdf-chat-bot/pkg/store"
	"pdf-chat-bot/pkg/telegram"
)

// Responder is the outbound side of the chat transport. telegram.Client
// satisfies it; tests substitute a recorder.
type Responder interface {
	SendMessage(chatId int64, text string) error
	SendKeyboard(chatId int64, text string, buttons []telegram.Button) error
	AnswerCallback(callbackId string) error
	SendTyping(chatId int64)
}

type IChatbotService interface {
	// HandleCommand processes a slash command (leading slash stripped).
	HandleCommand(ctx context.Context, userId, chatId int64, command string)

	// HandleSelection processes an inline keyboard press.
	HandleSelection(ctx context.Context, userId, chatId int64, callbackId, data string)

	// HandleQuery processes a free-text message.
	HandleQuery(ctx context.Context, userId, chatId int64, text string)
}

type chatbotService struct {
	sessions  *session.Manager
	indexer   IIndexerService
	generator *answer.Generator
	publisher IPublisherService
	responder Responder
	docsDir   string
	logger    logger.ILogger
}

func NewChatbotService(
	sessions *session.Manager,
	indexer IIndexerService,
	generator *answer.Generator,
	publisher IPublisherService,
	responder Responder,
	docsDir string,
	sysLogger logger.ILogger,
) IChatbotService {
	return &chatbotService{
		sessions:  sessions,
		indexer:   indexer,
		generator: generator,
		publisher: publisher,
		responder: responder,
		docsDir:   docsDir,
		logger:    sysLogger,
	}
}

const helpText = `I answer questions about the indexed PDF documents.

Commands:
/start - pick a document to chat about
/help - show this message
/status - list documents and the current selection
/reindex - rescan the document folder

Pick a document (or all of them), then just type your question.`

func (c *chatbotService) HandleCommand(ctx context.Context, userId, chatId int64, command string) {
	switch command {
	case "start":
		c.sessions.Dispatch(userId, func() {
			sess := c.sessions.Resolve(userId, chatId, time.Now())
			c.sessions.Reset(sess)
			c.sendSelectionKeyboard(ctx, chatId, "👋 Welcome! Which document would you like to ask about?")
		})
	case "help":
		_ = c.responder.SendMessage(chatId, helpText)
	case "status":
		c.sessions.Dispatch(userId, func() {
			sess := c.sessions.Resolve(userId, chatId, time.Now())
			_ = c.responder.SendMessage(chatId, c.renderStatus(ctx, sess))
		})
	case "reindex":
		c.requestReindex(ctx, userId, chatId)
	default:
		_ = c.responder.SendMessage(chatId, "Unknown command. Try /help.")
	}
}

func (c *chatbotService) HandleSelection(ctx context.Context, userId, chatId int64, callbackId, data string) {
	_ = c.responder.AnswerCallback(callbackId)

	selection, name, ok := c.resolveSelection(ctx, data)
	if !ok {
		// Stale button: the document was removed or failed since the
		// keyboard was sent.
		c.sessions.Dispatch(userId, func() {
			c.sessions.Resolve(userId, chatId, time.Now())
			c.sendSelectionKeyboard(ctx, chatId, "That document is no longer available. Please pick another:")
		})
		return
	}

	c.sessions.Dispatch(userId, func() {
		sess := c.sessions.Resolve(userId, chatId, time.Now())
		switched := c.sessions.ApplySelection(sess, session.Event{
			Selection:     selection,
			SelectionName: name,
			At:            time.Now(),
		})

		text := fmt.Sprintf("📖 Now answering from: %s\nAsk me anything about it.", name)
		if switched {
			text += "\n(Conversation history was reset for the new selection.)"
		}
		_ = c.responder.SendMessage(chatId, text)
	})
}

func (c *chatbotService) HandleQuery(ctx context.Context, userId, chatId int64, text string) {
	query := strings.TrimSpace(text)
	if query == "" {
		return
	}

	c.sessions.Dispatch(userId, func() {
		sess := c.sessions.Resolve(userId, chatId, time.Now())
		if !c.sessions.AcceptQuery(sess) {
			c.sendSelectionKeyboard(ctx, chatId, "Please pick a document first, then ask your question:")
			return
		}

		epoch := sess.Epoch
		c.responder.SendTyping(chatId)

		result := c.generator.Answer(ctx, sess, query)
		if result.Failed {
			_ = c.responder.SendMessage(chatId, "⚠️ "+result.FailReason)
			return
		}

		appended := c.sessions.AppendTurn(userId, epoch, store.Turn{
			Question: query,
			Answer:   result.Answer,
			Sources:  result.Sources,
		})
		if !appended {
			// Session was reset while answering; the result no longer
			// belongs to a live conversation.
			c.logger.Debug("chatbot", "discarded stale answer", map[string]interface{}{"user_id": userId})
			return
		}

		_ = c.responder.SendMessage(chatId, renderAnswer(result))
	})
}

func (c *chatbotService) requestReindex(ctx context.Context, userId, chatId int64) {
	payload, err := json.Marshal(dto.ReindexRequestMessage{
		ChatId:      chatId,
		RequestedBy: userId,
		Folder:      c.docsDir,
	})
	if err != nil {
		c.logger.Error("chatbot", "failed to marshal reindex request", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := c.publisher.Publish(ctx, payload); err != nil {
		c.logger.Error("chatbot", "failed to publish reindex request", map[string]interface{}{"error": err.Error()})
		_ = c.responder.SendMessage(chatId, "⚠️ Could not start re-indexing. Please try again later.")
		return
	}
	_ = c.responder.SendMessage(chatId, "🔄 Re-indexing started. I will report back when it is done.")
}

// resolveSelection validates callback data against the current index. Only
// selectable documents may be chosen; "all" is always valid.
func (c *chatbotService) resolveSelection(ctx context.Context, data string) (selection, name string, ok bool) {
	if data == constant.CallbackAllDocuments {
		return store.SelectionAll, "all documents", true
	}
	id := strings.TrimPrefix(data, constant.CallbackDocPrefix)
	if id == data {
		return "", "", false
	}

	docs, err := c.indexer.Documents(ctx)
	if err != nil {
		c.logger.Error("chatbot", "failed to list documents", map[string]interface{}{"error": err.Error()})
		return "", "", false
	}
	for _, doc := range docs {
		if doc.Id == id && doc.Selectable() {
			return doc.Id, doc.Name, true
		}
	}
	return "", "", false
}

func (c *chatbotService) sendSelectionKeyboard(ctx context.Context, chatId int64, text string) {
	docs, err := c.indexer.Documents(ctx)
	if err != nil {
		c.logger.Error("chatbot", "failed to list documents", map[string]interface{}{"error": err.Error()})
		_ = c.responder.SendMessage(chatId, "⚠️ Could not load the document list. Please try again later.")
		return
	}

	buttons := []telegram.Button{{Label: "📚 All documents", Data: constant.CallbackAllDocuments}}
	for _, doc := range docs {
		if !doc.Selectable() {
			continue
		}
		buttons = append(buttons, telegram.Button{
			Label: "📄 " + doc.Name,
			Data:  constant.CallbackDocPrefix + doc.Id,
		})
	}

	if len(buttons) == 1 {
		_ = c.responder.SendMessage(chatId, "No documents are indexed yet. Use /reindex after adding PDFs to the document folder.")
		return
	}
	_ = c.responder.SendKeyboard(chatId, text, buttons)
}

func (c *chatbotService) renderStatus(ctx context.Context, sess *store.Session) string {
	docs, err := c.indexer.Documents(ctx)
	if err != nil {
		return "⚠️ Could not load the document list."
	}

	var b strings.Builder
	b.WriteString("📋 Document index:\n")
	if len(docs) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, doc := range docs {
		switch doc.Status {
		case entity.DocumentStatusIndexed:
			fmt.Fprintf(&b, "  ✅ %s (%d chunks)\n", doc.Name, doc.ChunkCount)
		case entity.DocumentStatusFailed:
			fmt.Fprintf(&b, "  ❌ %s (failed)\n", doc.Name)
		default:
			fmt.Fprintf(&b, "  ⏳ %s (pending)\n", doc.Name)
		}
	}

	if sess.Mode == store.ModeDocumentSelected {
		fmt.Fprintf(&b, "\nCurrent selection: %s", sess.SelectedName)
	} else {
		b.WriteString("\nNo document selected. Use /start to pick one.")
	}
	return b.String()
}

func renderAnswer(result *dto.AnswerResult) string {
	if len(result.Sources) == 0 {
		return result.Answer
	}
	return fmt.Sprintf("%s\n\n📎 Sources: %s", result.Answer, strings.Join(result.Sources, ", "))
}
