package config

import (
	"strings"
	"testing"
	"time"

	"github.com/binz0209/vihis/internal/sentence"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"CHUNK_TOKENS", "HEADER_FOOTER_THRESHOLD", "CACHE_TTL", "ABBREVIATIONS", "STORE_BACKEND"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.ChunkTokens != 400 {
		t.Errorf("expected ChunkTokens 400, got %d", cfg.ChunkTokens)
	}
	if cfg.HeaderFooterThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %v", cfg.HeaderFooterThreshold)
	}
	if cfg.CacheTTL != 15*time.Minute {
		t.Errorf("expected CacheTTL 15m, got %v", cfg.CacheTTL)
	}
	if cfg.StoreBackend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if len(cfg.Abbreviations) != len(sentence.DefaultAbbreviations) {
		t.Errorf("expected default abbreviations, got %v", cfg.Abbreviations)
	}
}

func TestLoadClampsInvalidValues(t *testing.T) {
	t.Setenv("HEADER_FOOTER_THRESHOLD", "1.5")
	t.Setenv("CHUNK_TOKENS", "-3")
	t.Setenv("ABBREVIATIONS", " GS., ,TS. ")
	cfg := Load()
	if cfg.HeaderFooterThreshold != 0.7 {
		t.Errorf("expected threshold clamped to 0.7, got %v", cfg.HeaderFooterThreshold)
	}
	if cfg.ChunkTokens != 400 {
		t.Errorf("expected ChunkTokens 400, got %d", cfg.ChunkTokens)
	}
	if got := strings.Join(cfg.Abbreviations, "|"); got != "GS.|TS." {
		t.Errorf("expected GS.|TS., got %q", got)
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{APIKey: "k", StoreBackend: "postgres", EmbedProvider: "none", ChunkTokens: 400, OverlapTokens: 60}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
	cfg.DatabaseURL = "postgres://localhost/vihis"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg.OverlapTokens = 400
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected overlap error")
	}
}
