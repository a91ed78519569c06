package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string

	GeminiAPIKey     string
	GeminiChatModel  string
	GeminiEmbedModel string
	GeminiTier       string

	Port        string
	GinMode     string
	CORSOrigins []string

	// Redis / queue
	RedisURL          string
	RedisPassword     string
	RedisDB           int
	WorkerConcurrency int

	// Chunking defaults, used when a submission omits them
	MaxTokensPerChunk int
	OverlapTokens     int
	TokenizerSpec     string

	// Preprocess defaults
	QuestionCount        int
	KeywordTopK          int
	SubParagraphMaxLen   int
	AggregationThreshold float64

	// Retrieval
	SearchCacheTTLSeconds int
	SearchCacheEnabled    bool

	// Sweeper
	ProcessingTimeoutMinutes int
	SweepIntervalMinutes     int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	FileStorageDir string
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/wiki_knowledge"),
		DBName:   getEnv("DB_NAME", "wiki_knowledge"),

		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiChatModel:  getEnv("GEMINI_CHAT_MODEL", "gemini-2.0-flash"),
		GeminiEmbedModel: getEnv("GEMINI_EMBED_MODEL", "text-embedding-004"),
		GeminiTier:       getEnv("GEMINI_TIER", "free"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),

		RedisURL:          getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 10),

		MaxTokensPerChunk: getEnvInt("MAX_TOKENS_PER_CHUNK", 512),
		OverlapTokens:     getEnvInt("OVERLAP_TOKENS", 50),
		TokenizerSpec:     getEnv("TOKENIZER_SPEC", "chars"),

		QuestionCount:        getEnvInt("PREPROCESS_QUESTION_COUNT", 2),
		KeywordTopK:          getEnvInt("PREPROCESS_KEYWORD_TOPK", 5),
		SubParagraphMaxLen:   getEnvInt("PREPROCESS_SUBPARAGRAPH_MAXLEN", 100),
		AggregationThreshold: getEnvFloat64("PREPROCESS_AGGREGATION_THRESHOLD", 0.75),

		SearchCacheTTLSeconds: getEnvInt("SEARCH_CACHE_TTL", 300),
		SearchCacheEnabled:    getEnvBool("SEARCH_CACHE_ENABLED", true),

		ProcessingTimeoutMinutes: getEnvInt("PROCESSING_TIMEOUT_MINUTES", 30),
		SweepIntervalMinutes:     getEnvInt("SWEEP_INTERVAL_MINUTES", 5),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		FileStorageDir: getEnv("FILE_STORAGE_DIR", "./storage"),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}
