package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all environmentally dependent settings for the DocSage API.
type Config struct {
	HTTPAddr       string
	DefaultTimeout time.Duration

	// LLM backends
	LLMProvider      string // gemini | openai | ollama
	GeminiAPIKey     string
	GeminiModel      string
	GeminiEmbedModel string
	OpenAIAPIKey     string
	OpenAIModel      string
	OllamaHost       string
	OllamaLLMModel   string
	OllamaEmbedModel string

	// Retrieval
	VectorWeight float64
	ChunkSize    int
	ChunkOverlap int

	// Qdrant Vector DB
	QdrantHost       string
	QdrantPort       int
	QdrantCollection string
	VectorSize       int

	// Neo4j Graph DB
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Document registry (SQLite)
	RegistryPath string
}

// Validate ensures that all required configuration is present and valid.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("DOCSAGE_GEMINI_API_KEY is required when DOCSAGE_LLM_PROVIDER is gemini")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("DOCSAGE_OPENAI_API_KEY is required when DOCSAGE_LLM_PROVIDER is openai")
		}
	case "ollama":
		// Local provider has no key to check.
	default:
		return fmt.Errorf("DOCSAGE_LLM_PROVIDER must be gemini, openai, or ollama, got %q", c.LLMProvider)
	}
	if c.VectorWeight < 0 || c.VectorWeight > 1 {
		return fmt.Errorf("DOCSAGE_VECTOR_WEIGHT must be in [0,1], got %v", c.VectorWeight)
	}
	return nil
}

// Load reads settings from environment variables with sensible defaults.
func Load() *Config {
	cfg := &Config{
		HTTPAddr:       getEnv("DOCSAGE_HTTP_ADDR", ":8080"),
		DefaultTimeout: getEnvDuration("DOCSAGE_DEFAULT_TIMEOUT_SEC", 30) * time.Second,

		LLMProvider:      getEnv("DOCSAGE_LLM_PROVIDER", "ollama"),
		GeminiAPIKey:     getEnv("DOCSAGE_GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("DOCSAGE_GEMINI_MODEL", "gemini-1.5-pro"),
		GeminiEmbedModel: getEnv("DOCSAGE_GEMINI_EMBED_MODEL", "text-embedding-004"),
		OpenAIAPIKey:     getEnv("DOCSAGE_OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("DOCSAGE_OPENAI_MODEL", "gpt-4o-mini"),
		OllamaHost:       getEnv("DOCSAGE_OLLAMA_HOST", "http://localhost:11434"),
		OllamaLLMModel:   getEnv("DOCSAGE_OLLAMA_LLM_MODEL", "llama3"),
		OllamaEmbedModel: getEnv("DOCSAGE_OLLAMA_EMBED_MODEL", "nomic-embed-text"),

		VectorWeight: getEnvFloat("DOCSAGE_VECTOR_WEIGHT", 0.6),
		ChunkSize:    getEnvInt("DOCSAGE_CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("DOCSAGE_CHUNK_OVERLAP", 200),

		QdrantHost:       getEnv("DOCSAGE_QDRANT_HOST", "localhost"),
		QdrantPort:       getEnvInt("DOCSAGE_QDRANT_PORT", 6334),
		QdrantCollection: getEnv("DOCSAGE_QDRANT_COLLECTION", "docsage"),
		VectorSize:       getEnvInt("DOCSAGE_VECTOR_SIZE", 768),

		Neo4jURI:      getEnv("DOCSAGE_NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     getEnv("DOCSAGE_NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("DOCSAGE_NEO4J_PASSWORD", "docsage_dev"),

		RegistryPath: getEnv("DOCSAGE_REGISTRY_PATH", "docsage.db"),
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("[Config] Validation failed: %v", err)
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback int) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return time.Duration(fallback)
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("[Config] Warning: Invalid duration for %s: %v. Using fallback %d", key, err, fallback)
		return time.Duration(fallback)
	}
	return time.Duration(value)
}

func getEnvInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("[Config] Warning: Invalid int for %s: %v. Using fallback %d", key, err, fallback)
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("[Config] Warning: Invalid float for %s: %v. Using fallback %v", key, err, fallback)
		return fallback
	}
	return value
}
