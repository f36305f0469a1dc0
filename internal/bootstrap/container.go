package bootstrap

import (
	"log"
	"os"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"

	"pdf-chat-bot/internal/config"
	"pdf-chat-bot/internal/controller"
	"pdf-chat-bot/internal/model"
	"pdf-chat-bot/internal/pkg/logger"
	"pdf-chat-bot/internal/repository/contract"
	"pdf-chat-bot/internal/repository/implementation"
	"pdf-chat-bot/internal/repository/memory"
	"pdf-chat-bot/internal/service"
	"pdf-chat-bot/pkg/embedding"
	"pdf-chat-bot/pkg/extract"
	"pdf-chat-bot/pkg/llm/ollama"
	"pdf-chat-bot/pkg/rag/answer"
	"pdf-chat-bot/pkg/rag/search"
	"pdf-chat-bot/pkg/rag/session"
	"pdf-chat-bot/pkg/telegram"
)

type Container struct {
	// Controllers
	TelegramController controller.ITelegramController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	IndexerService  service.IIndexerService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config, bot *telegram.Client) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Persistence. Without a database DSN everything runs in memory,
	// which is enough for a single-instance bot with a small corpus.
	var documentRepo contract.DocumentRepository
	var vectorStore contract.VectorStore
	if db != nil {
		if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			log.Fatalf("[FATAL] Failed to enable pgvector extension: %v", err)
		}
		if err := db.AutoMigrate(&model.Document{}, &model.ChunkEmbedding{}); err != nil {
			log.Fatalf("[FATAL] Failed to migrate database: %v", err)
		}
		documentRepo = implementation.NewDocumentRepository(db)
		vectorStore = implementation.NewChunkEmbeddingRepository(db)
		log.Printf("[INFO] Using Vector Store: POSTGRES/PGVECTOR")
	} else {
		documentRepo = memory.NewDocumentRepository()
		vectorStore = memory.NewVectorStore()
		log.Printf("[INFO] Using Vector Store: IN-MEMORY")
	}

	// 3. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

	// 4. AI Providers
	embeddingProvider := embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel)
	log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.EmbeddingModel)

	llmProvider := ollama.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.LLMModel, cfg.Ai.LLMTimeout)
	log.Printf("[INFO] Using LLM Provider: OLLAMA (%s)", cfg.Ai.LLMModel)

	// 5. RAG Pipeline
	debugLogger := log.New(os.Stdout, "", log.LstdFlags)
	retriever := search.NewRetriever(
		embeddingProvider,
		vectorStore,
		documentRepo,
		search.Config{
			TopK:          cfg.Retrieval.TopK,
			Threshold:     cfg.Retrieval.Threshold,
			DedupWindow:   cfg.Retrieval.DedupWindow,
			ContextBudget: cfg.Retrieval.ContextBudget,
			HardCap:       cfg.Retrieval.HardCap,
		},
		debugLogger,
	)

	generatorCfg := answer.DefaultConfig()
	generatorCfg.Timeout = cfg.Ai.LLMTimeout
	generator := answer.NewGenerator(retriever, llmProvider, generatorCfg, debugLogger)

	// 6. Sessions
	sessionRepo := memory.NewSessionRepository(cfg.Session.IdleTimeout)
	sessionManager := session.NewManager(sessionRepo, cfg.Session.IdleTimeout, cfg.Session.HistoryLimit)

	// 7. Services
	indexerService := service.NewIndexerService(
		documentRepo,
		vectorStore,
		extract.NewPDFExtractor(),
		embeddingProvider,
		cfg.Index,
		sysLogger,
	)

	publisherService := service.NewPublisherService(cfg.App.ReindexTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.ReindexTopic,
		indexerService,
		bot,
		sysLogger,
	)

	chatbotService := service.NewChatbotService(
		sessionManager,
		indexerService,
		generator,
		publisherService,
		bot,
		cfg.App.DocsDir,
		sysLogger,
	)

	// 8. Controllers
	return &Container{
		TelegramController: controller.NewTelegramController(
			chatbotService,
			indexerService,
			llmProvider,
			cfg.Telegram.WebhookSecret,
			cfg.App.DocsDir,
			sysLogger,
		),
		ConsumerService: consumerService,
		IndexerService:  indexerService,
		Logger:          sysLogger,
	}
}
