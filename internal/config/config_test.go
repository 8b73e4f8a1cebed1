package config

import (
	"slices"
	"testing"
	"time"
)

func TestLoadEngine(t *testing.T) {
	t.Setenv("ENGINE_LAMBDA", "8")
	t.Setenv("ENGINE_WINDOW", "4")
	t.Setenv("ENGINE_DELTA", "not-a-number")
	t.Setenv("ENGINE_MIN_RATIO", "1.5")

	cfg := Load()

	if cfg.Engine.Lambda != 8 {
		t.Errorf("Lambda = %v, want 8", cfg.Engine.Lambda)
	}
	if cfg.Engine.WindowES != 4 {
		t.Errorf("WindowES = %v, want 4", cfg.Engine.WindowES)
	}
	if cfg.Engine.DeltaThr != 2.0 {
		t.Errorf("DeltaThr = %v, want default 2.0", cfg.Engine.DeltaThr)
	}
	if cfg.Engine.MinRatio != 0.5 {
		t.Errorf("MinRatio = %v, want default 0.5", cfg.Engine.MinRatio)
	}
	if cfg.Engine.Prior != 50 {
		t.Errorf("Prior = %v, want 50", cfg.Engine.Prior)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SELECTION_SEED", "1234")
	t.Setenv("QUESTION_CACHE_TTL_SECONDS", "30")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("JOIN_RATE_LIMIT_PER_MINUTE", "0")

	cfg := Load()

	if cfg.SelectionSeed != 1234 {
		t.Errorf("SelectionSeed = %d, want 1234", cfg.SelectionSeed)
	}
	if cfg.QuestionCacheTTL != 30*time.Second {
		t.Errorf("QuestionCacheTTL = %v, want 30s", cfg.QuestionCacheTTL)
	}
	if cfg.JoinRateLimit != 0 {
		t.Errorf("JoinRateLimit = %d, want 0 (disabled)", cfg.JoinRateLimit)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !slices.Equal(cfg.AllowedOrigins, want) {
		t.Errorf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestParseOriginsEmpty(t *testing.T) {
	if got := parseOrigins(""); got != nil {
		t.Errorf("parseOrigins(\"\") = %v, want nil", got)
	}
}
