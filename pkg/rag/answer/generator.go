package answer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pdf-chat-bot/internal/constant"
	"pdf-chat-bot/internal/dto"
	"pdf-chat-bot/pkg/llm"
	"pdf-chat-bot/pkg/rag/search"
	"pdf-chat-bot/pkg/store"
)

// Config tunes one answer turn.
type Config struct {
	Temperature   float64
	TopP          float64
	MaxTokens     int
	RepeatPenalty float64
	Timeout       time.Duration // per model attempt
	MaxRetries    int           // extra attempts after the first failure
	RetryBackoff  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Temperature:   0.1,
		TopP:          0.9,
		MaxTokens:     1024,
		RepeatPenalty: 1.1,
		Timeout:       180 * time.Second,
		MaxRetries:    1,
		RetryBackoff:  2 * time.Second,
	}
}

// Generator runs the retrieve-then-generate pipeline for a single question.
// It never mutates the session; the caller owns history and epochs.
type Generator struct {
	retriever *search.Retriever
	model     llm.Provider
	config    Config
	logger    *log.Logger

	// sleep is swapped in tests so retry backoff does not slow them down.
	sleep func(time.Duration)
}

func NewGenerator(retriever *search.Retriever, model llm.Provider, config Config, logger *log.Logger) *Generator {
	return &Generator{
		retriever: retriever,
		model:     model,
		config:    config,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Answer retrieves grounding context for query under the session's document
// selection, builds the prompt, and calls the model with bounded retry.
// Every failure path returns a structured result, never a panic or a raw
// error the transport cannot present.
func (g *Generator) Answer(ctx context.Context, session *store.Session, query string) *dto.AnswerResult {
	result, err := g.retriever.Retrieve(ctx, query, session.SelectedDoc)
	if err != nil {
		g.logger.Printf("[ERROR] retrieval failed for user %d: %v", session.UserId, err)
		return &dto.AnswerResult{Failed: true, FailReason: dto.FailReasonRetrievalUnavailable}
	}

	messages := BuildPrompt(query, result, session.History)

	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			g.sleep(g.config.RetryBackoff)
		}

		text, err := g.generate(ctx, messages)
		if err == nil {
			return &dto.AnswerResult{
				Answer:   strings.TrimSpace(text),
				Sources:  result.SourceNames(),
				Grounded: !result.Empty(),
			}
		}
		lastErr = err
		g.logger.Printf("[WARN] model attempt %d failed for user %d: %v", attempt+1, session.UserId, err)
	}

	reason := dto.FailReasonModelUnavailable
	if errors.Is(lastErr, llm.ErrModelTimeout) {
		reason = dto.FailReasonModelTimeout
	}
	return &dto.AnswerResult{Failed: true, FailReason: reason}
}

func (g *Generator) generate(ctx context.Context, messages []llm.Message) (string, error) {
	callCtx := ctx
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	return g.model.Chat(callCtx, messages,
		llm.WithTemperature(g.config.Temperature),
		llm.WithTopP(g.config.TopP),
		llm.WithMaxTokens(g.config.MaxTokens),
		llm.WithRepeatPenalty(g.config.RepeatPenalty),
	)
}

// BuildPrompt assembles the deterministic chat history sent to the model:
// the system prompt, the bounded prior turns, then the context block and
// question. Equal inputs always produce byte-equal output.
func BuildPrompt(query string, result *search.RetrievalResult, history []store.Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(history)*2+2)
	messages = append(messages, llm.Message{Role: "system", Content: constant.AnswerSystemPromptV1})

	for _, turn := range history {
		messages = append(messages,
			llm.Message{Role: constant.ChatMessageRoleUser, Content: turn.Question},
			llm.Message{Role: constant.ChatMessageRoleModel, Content: turn.Answer},
		)
	}

	messages = append(messages, llm.Message{
		Role:    constant.ChatMessageRoleUser,
		Content: renderUserMessage(query, result),
	})
	return messages
}

func renderUserMessage(query string, result *search.RetrievalResult) string {
	var b strings.Builder

	if result.Empty() {
		b.WriteString(constant.AnswerNoContextNoticeV1)
	} else {
		b.WriteString("CONTEXT SECTIONS:\n")
		for _, c := range result.Chunks {
			fmt.Fprintf(&b, "\n--- SOURCE: %s (score %.3f) ---\n", c.Chunk.DocumentName, c.Similarity)
			b.WriteString(c.Chunk.Text)
			b.WriteString("\n--- END SOURCE ---\n")
		}
	}

	b.WriteString("\nQUESTION: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer using only the context sections above.")
	return b.String()
}
