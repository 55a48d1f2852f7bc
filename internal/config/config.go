package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey   string
	AnalysisModel  string
	ChatModel      string
	EmbeddingModel string
	GeminiTier     string

	Port        string
	GinMode     string
	CORSOrigins []string

	MaxFileSize  int64
	AllowedTypes []string

	MaxChunkSize int
	ChunkOverlap int
	MinChunkSize int

	AnalysisTopK int
	ChatTopK     int

	DataDir           string
	UploadDir         string
	ExtractedTextsDir string
	TablesDir         string
	IndicesDir        string

	SessionTTLMinutes  int
	CleanupIntervalMin int

	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	dataDir := getEnv("DATA_DIR", "./processed_data")

	cfg := &Config{
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		AnalysisModel:  getEnv("ANALYSIS_MODEL", "gemini-2.0-flash"),
		ChatModel:      getEnv("CHAT_MODEL", "gemini-2.0-flash"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		GeminiTier:     getEnv("GEMINI_TIER", "free"),

		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxFileSize:  getEnvInt64("MAX_FILE_SIZE", 20971520), // 20MB upload limit
		AllowedTypes: strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf"), ","),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1000),
		// Overlap is opt-in: any positive value trades the exact
		// chunk-concatenation round trip for retrieval continuity.
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
		MinChunkSize: getEnvInt("MIN_CHUNK_SIZE", 100),

		AnalysisTopK: getEnvInt("ANALYSIS_TOP_K", 7),
		ChatTopK:     getEnvInt("CHAT_TOP_K", 5),

		DataDir:           dataDir,
		UploadDir:         getEnv("UPLOAD_DIR", "./uploads"),
		ExtractedTextsDir: getEnv("EXTRACTED_TEXTS_DIR", dataDir+"/extracted_texts"),
		TablesDir:         getEnv("TABLES_DIR", dataDir+"/tables"),
		IndicesDir:        getEnv("INDICES_DIR", dataDir+"/indices"),

		SessionTTLMinutes:  getEnvInt("SESSION_TTL_MINUTES", 120),
		CleanupIntervalMin: getEnvInt("CLEANUP_INTERVAL_MINUTES", 15),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
