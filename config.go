package fiscalis

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the tax-law retrieval engine (§6
// Environment inputs).
type Config struct {
	// DBPath is the full path to the SQLite database file.
	DBPath string `json:"db_path" yaml:"db_path"`

	// Chat and Embedding providers.
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// EmbeddingDim must match the embedding model's output width.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// TopKDefault bounds evidence returned by a satisfied hybrid pass.
	TopKDefault int `json:"top_k_default" yaml:"top_k_default"`

	// Chunking (§4.B). LoadConfig fills these from CHUNK_CHARS and
	// CHUNK_OVERLAP_CHARS, but the ingestion pipeline does not read them:
	// ingest.New always chunks with article.DefaultConfig (3500/400).
	ChunkChars   int `json:"chunk_chars" yaml:"chunk_chars"`
	ChunkOverlap int `json:"chunk_overlap_chars" yaml:"chunk_overlap_chars"`

	// BatchSizeEmbed holds BATCH_SIZE_EMBED (§4.J). The ingestion
	// pipeline does not read it; it embeds in fixed batches of 15.
	BatchSizeEmbed int `json:"batch_size_embed" yaml:"batch_size_embed"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"`
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config wired for OpenAI, matching the
// environment-variable defaults named in §6.
func DefaultConfig() Config {
	return Config{
		DBPath: "fiscalis.db",
		Chat: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
		},
		Embedding: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		EmbeddingDim:   1536,
		TopKDefault:    12,
		ChunkChars:     3500,
		ChunkOverlap:   400,
		BatchSizeEmbed: 15,
	}
}

// LoadConfig builds a Config from defaults, an optional .env file, and
// the process environment (§6 Environment inputs). Missing or malformed
// values fall back to DefaultConfig's; the caller decides whether that
// is fatal (per §7 category 1, configuration errors are fatal at
// startup — it is main.go that treats an unreachable DB or an empty API
// key as fatal, not this loader).
func LoadConfig(envPath string) Config {
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	if v := os.Getenv("FISCALIS_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MODEL_CHAT"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("MODEL_EMBED"); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv("FISCALIS_CHAT_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}
	if v := os.Getenv("FISCALIS_EMBED_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("FISCALIS_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("FISCALIS_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("FISCALIS_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("FISCALIS_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}

	if v := intEnv("TOP_K_DEFAULT"); v > 0 {
		cfg.TopKDefault = v
	}
	if v := intEnv("CHUNK_CHARS"); v > 0 {
		cfg.ChunkChars = v
	}
	if v := intEnv("CHUNK_OVERLAP_CHARS"); v >= 0 && os.Getenv("CHUNK_OVERLAP_CHARS") != "" {
		cfg.ChunkOverlap = v
	}
	if v := intEnv("BATCH_SIZE_EMBED"); v > 0 {
		cfg.BatchSizeEmbed = v
	}
	if v := intEnv("FISCALIS_EMBEDDING_DIM"); v > 0 {
		cfg.EmbeddingDim = v
	}

	return cfg
}

func intEnv(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return -1
	}
	return v
}
