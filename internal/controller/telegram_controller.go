package controller

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"

	"pdf-chat-bot/internal/dto"
	"pdf-chat-bot/internal/pkg/logger"
	"pdf-chat-bot/internal/pkg/serverutils"
	"pdf-chat-bot/internal/service"
)

// HealthChecker reports whether a downstream dependency is reachable.
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

type ITelegramController interface {
	RegisterRoutes(app *fiber.App, r fiber.Router)
	Webhook(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
	Sync(ctx *fiber.Ctx) error

	// RunPolling consumes updates via long polling, the fallback when no
	// public webhook URL is configured. Blocks until ctx is cancelled.
	RunPolling(ctx context.Context, updates tgbotapi.UpdatesChannel)
}

type telegramController struct {
	chatbot       service.IChatbotService
	indexer       service.IIndexerService
	model         HealthChecker
	webhookSecret string
	docsDir       string
	logger        logger.ILogger
}

func NewTelegramController(
	chatbot service.IChatbotService,
	indexer service.IIndexerService,
	model HealthChecker,
	webhookSecret string,
	docsDir string,
	sysLogger logger.ILogger,
) ITelegramController {
	return &telegramController{
		chatbot:       chatbot,
		indexer:       indexer,
		model:         model,
		webhookSecret: webhookSecret,
		docsDir:       docsDir,
		logger:        sysLogger,
	}
}

func (c *telegramController) RegisterRoutes(app *fiber.App, r fiber.Router) {
	// Webhook and health live at the root, outside the /api group.
	app.Post("/webhook/:secret", c.Webhook)
	app.Get("/health", c.Health)

	h := r.Group("/index/v1")
	h.Post("/sync", c.Sync)
}

// Webhook receives one Telegram update. The secret path segment is the only
// authentication Telegram offers here; a mismatch is answered 403 without a
// body so probes learn nothing.
func (c *telegramController) Webhook(ctx *fiber.Ctx) error {
	if ctx.Params("secret") != c.webhookSecret {
		return ctx.SendStatus(fiber.StatusForbidden)
	}

	var update tgbotapi.Update
	if err := ctx.BodyParser(&update); err != nil {
		c.logger.Warn("telegram", "unparsable webhook update", map[string]interface{}{"error": err.Error()})
		// Always 200: Telegram redelivers non-200 responses forever.
		return ctx.SendStatus(fiber.StatusOK)
	}

	c.dispatchUpdate(context.Background(), &update)
	return ctx.SendStatus(fiber.StatusOK)
}

func (c *telegramController) Health(ctx *fiber.Ctx) error {
	status := fiber.Map{
		"status": "ok",
		"model":  c.model.Healthy(ctx.Context()),
	}
	return ctx.JSON(status)
}

// Sync triggers a synchronous index run, the operational escape hatch when
// the bot side is down.
func (c *telegramController) Sync(ctx *fiber.Ctx) error {
	var req dto.SyncRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	folder := req.Folder
	if folder == "" {
		folder = c.docsDir
	}

	report, err := c.indexer.Sync(ctx.Context(), folder)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Sync finished", report))
}

func (c *telegramController) RunPolling(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	c.logger.Info("telegram", "polling for updates", nil)
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.dispatchUpdate(ctx, &update)
		}
	}
}

// dispatchUpdate routes one update to the chatbot service. Ordering per user
// is enforced downstream by the session manager, so handling here can return
// immediately.
func (c *telegramController) dispatchUpdate(ctx context.Context, update *tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.From == nil || cb.Message == nil {
			return
		}
		c.chatbot.HandleSelection(ctx, cb.From.ID, cb.Message.Chat.ID, cb.ID, cb.Data)

	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.From.IsBot {
			return
		}
		if msg.IsCommand() {
			c.chatbot.HandleCommand(ctx, msg.From.ID, msg.Chat.ID, msg.Command())
			return
		}
		if msg.Text != "" {
			c.chatbot.HandleQuery(ctx, msg.From.ID, msg.Chat.ID, msg.Text)
		}
	}
}
