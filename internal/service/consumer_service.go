package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"pdf-chat-bot/internal/dto"
	"pdf-chat-bot/internal/pkg/logger"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService runs re-index requests off the event bus so a /reindex
// command returns immediately while the sync happens in the background.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	indexer   IIndexerService
	responder Responder
	logger    logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	indexer IIndexerService,
	responder Responder,
	sysLogger logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		indexer:   indexer,
		responder: responder,
		logger:    sysLogger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.ReindexRequestMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer", "invalid reindex message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed, retrying will not help
		return
	}

	cs.logger.Info("consumer", "reindex requested", map[string]interface{}{
		"requested_by": payload.RequestedBy, "folder": payload.Folder,
	})

	report, err := cs.indexer.Sync(ctx, payload.Folder)
	if err != nil {
		cs.logger.Error("consumer", "reindex failed", map[string]interface{}{"error": err.Error()})
		if payload.ChatId != 0 {
			_ = cs.responder.SendMessage(payload.ChatId, "⚠️ Re-indexing failed. Please check the server logs.")
		}
		msg.Ack()
		return
	}

	if payload.ChatId != 0 {
		_ = cs.responder.SendMessage(payload.ChatId, renderReport(report))
	}
	msg.Ack()
}

func renderReport(report *dto.IndexReport) string {
	text := fmt.Sprintf("✅ Re-indexing finished.\n\nIndexed: %d\nUnchanged: %d\nRemoved: %d\nFailed: %d",
		report.Indexed, report.Skipped, report.Removed, report.Failed)
	for name, reason := range report.Failures {
		text += fmt.Sprintf("\n  • %s: %s", name, reason)
	}
	return text
}
