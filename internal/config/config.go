package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/binz0209/vihis/internal/sentence"
)

type Config struct {
	Port string

	// Auth
	APIKey      string
	CORSOrigins []string

	// Storage
	StoreBackend string // memory | postgres
	DatabaseURL  string

	// Embeddings
	EmbedProvider string // gemini | none
	GeminiAPIKey  string
	EmbedModel    string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentEmbed int

	// Upload limits
	MaxUploadBytes int64

	// Parser profile defaults
	ChunkTokens           int
	OverlapTokens         int
	HeaderFooterThreshold float64
	Abbreviations         []string

	// Retrieval
	RetrieveK      int
	RetrieveWindow int
	CacheTTL       time.Duration

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Upload archive (optional)
	S3Bucket     string
	AWSRegion    string
	AWSAccessKey string
	AWSSecretKey string
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey:      os.Getenv("VIHIS_API_KEY"),
		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),

		StoreBackend: strings.ToLower(envOr("STORE_BACKEND", "memory")),
		DatabaseURL:  os.Getenv("DATABASE_URL"),

		EmbedProvider: strings.ToLower(envOr("EMBED_PROVIDER", "gemini")),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		EmbedModel:    envOr("EMBED_MODEL", "text-embedding-004"),

		WorkerCount:        envInt("WORKER_COUNT", 2),
		MaxQueueSize:       envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentEmbed: envInt("MAX_CONCURRENT_EMBED", 8),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkTokens:           envInt("CHUNK_TOKENS", 400),
		OverlapTokens:         envInt("OVERLAP_TOKENS", 60),
		HeaderFooterThreshold: envFloat("HEADER_FOOTER_THRESHOLD", 0.7),
		Abbreviations:         envList("ABBREVIATIONS", sentence.DefaultAbbreviations),

		RetrieveK:      envInt("RETRIEVE_K", 5),
		RetrieveWindow: envInt("RETRIEVE_WINDOW", 1),
		CacheTTL:       envDuration("CACHE_TTL", 15*time.Minute),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		S3Bucket:     os.Getenv("S3_BUCKET"),
		AWSRegion:    envOr("AWS_REGION", "ap-southeast-1"),
		AWSAccessKey: os.Getenv("AWS_ACCESS_KEY"),
		AWSSecretKey: os.Getenv("AWS_SECRET_KEY"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentEmbed <= 0 {
		cfg.MaxConcurrentEmbed = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = 400
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 60
	}
	if cfg.HeaderFooterThreshold <= 0 || cfg.HeaderFooterThreshold > 1 {
		cfg.HeaderFooterThreshold = 0.7
	}
	if cfg.RetrieveK <= 0 {
		cfg.RetrieveK = 5
	}
	if cfg.RetrieveWindow < 0 {
		cfg.RetrieveWindow = 1
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("VIHIS_API_KEY is required")
	}
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.EmbedProvider {
	case "none":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when EMBED_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}
	if c.OverlapTokens >= c.ChunkTokens {
		return fmt.Errorf("OVERLAP_TOKENS (%d) must be smaller than CHUNK_TOKENS (%d)", c.OverlapTokens, c.ChunkTokens)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
