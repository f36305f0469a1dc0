package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Telegram  TelegramConfig
	Database  DatabaseConfig
	Ai        AIConfig
	Index     IndexConfig
	Retrieval RetrievalConfig
	Session   SessionConfig
}

type AppConfig struct {
	Port        string
	Environment string
	LogFilePath string
	DocsDir     string
	ReindexTopic string
}

type TelegramConfig struct {
	Token         string
	WebhookURL    string
	WebhookSecret string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	OllamaBaseURL  string
	EmbeddingModel string
	LLMModel       string
	LLMTimeout     time.Duration
}

type IndexConfig struct {
	ChunkSize       int     // target chunk length in runes
	OverlapFraction float64 // fraction of ChunkSize carried into the next chunk
	MinChunkChars   int     // quality gate: shorter chunks are not embedded
	MinChunkWords   int
	MaxConcurrency  int // parallel document indexing bound
}

type RetrievalConfig struct {
	TopK          int
	Threshold     float64 // minimum similarity for a chunk to count
	DedupWindow   int     // ordinal distance treated as near-duplicate
	ContextBudget int     // soft context size in chars
	HardCap       int     // absolute context size limit
}

type SessionConfig struct {
	IdleTimeout  time.Duration
	HistoryLimit int // rolling Q/A turns kept per session
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:         getEnv("APP_PORT", "8000"),
			Environment:  getEnv("GO_ENV", "development"),
			LogFilePath:  getEnv("LOG_FILE_PATH", "bot.log"),
			DocsDir:      getEnv("DOCS_DIR", "./documents"),
			ReindexTopic: getEnv("REINDEX_TOPIC_NAME", "REINDEX_REQUESTED"),
		},
		Telegram: TelegramConfig{
			Token:         getEnv("TELEGRAM_TOKEN", ""),
			WebhookURL:    getEnv("WEBHOOK_URL", ""),
			WebhookSecret: getEnv("WEBHOOK_SECRET", "secret123"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			OllamaBaseURL:  getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbeddingModel: getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			LLMModel:       getEnv("OLLAMA_MODEL", "llama3.2:3b"),
			LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 180*time.Second),
		},
		Index: IndexConfig{
			ChunkSize:       getEnvAsInt("CHUNK_SIZE", 1000),
			OverlapFraction: getEnvAsFloat("CHUNK_OVERLAP_FRACTION", 0.2),
			MinChunkChars:   getEnvAsInt("MIN_CHUNK_CHARS", 100),
			MinChunkWords:   getEnvAsInt("MIN_CHUNK_WORDS", 10),
			MaxConcurrency:  getEnvAsInt("INDEX_CONCURRENCY", 4),
		},
		Retrieval: RetrievalConfig{
			TopK:          getEnvAsInt("RETRIEVAL_TOP_K", 5),
			Threshold:     getEnvAsFloat("SIMILARITY_THRESHOLD", 0.15),
			DedupWindow:   getEnvAsInt("DEDUP_WINDOW", 1),
			ContextBudget: getEnvAsInt("CONTEXT_BUDGET_CHARS", 4000),
			HardCap:       getEnvAsInt("CONTEXT_HARD_CAP_CHARS", 8000),
		},
		Session: SessionConfig{
			IdleTimeout:  getEnvAsDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
			HistoryLimit: getEnvAsInt("HISTORY_LIMIT", 5),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
