package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"INFERENCE_TIMEOUT", "PROMPT_MAX_CHARS", "RETRY_MAX_ATTEMPTS", "BREAKER_ENABLED", "LOG_FORMAT", "EXTRACT_PREVIEW_ROWS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.InferenceTimeout != 60*time.Second {
		t.Fatalf("expected default inference timeout 60s, got %s", cfg.InferenceTimeout)
	}
	if cfg.PromptMaxChars != 12000 {
		t.Fatalf("expected default prompt budget 12000, got %d", cfg.PromptMaxChars)
	}
	if cfg.RetryMaxAttempts != 1 || cfg.BreakerEnabled {
		t.Fatalf("expected single attempt without breaker, got attempts=%d breaker=%v", cfg.RetryMaxAttempts, cfg.BreakerEnabled)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf("expected json log format, got %q", cfg.LogFormat)
	}
	if cfg.PreviewRows != 10 {
		t.Fatalf("expected 10 preview rows, got %d", cfg.PreviewRows)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("INFERENCE_TIMEOUT", "90")
	t.Setenv("RETRY_INITIAL_BACKOFF", "500ms")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("BREAKER_ENABLED", "true")
	t.Setenv("MAX_UPLOAD_BYTES", "1048576")
	t.Setenv("REQUESTS_PER_MINUTE", "not-a-number")

	cfg := Load()
	if cfg.InferenceTimeout != 90*time.Second {
		t.Fatalf("expected plain seconds to parse, got %s", cfg.InferenceTimeout)
	}
	if cfg.RetryInitialBackoff != 500*time.Millisecond {
		t.Fatalf("expected 500ms backoff, got %s", cfg.RetryInitialBackoff)
	}
	if cfg.RetryMaxAttempts != 3 || !cfg.BreakerEnabled {
		t.Fatalf("unexpected retry settings: %+v", cfg)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Fatalf("expected 1MiB upload cap, got %d", cfg.MaxUploadBytes)
	}
	if cfg.RequestsPerMinute != 0 {
		t.Fatalf("expected invalid value to fall back, got %d", cfg.RequestsPerMinute)
	}
}

func TestValidateRejectsUnboundedSettings(t *testing.T) {
	cfg := Load()
	cfg.InferenceTimeout = 0
	cfg.PromptMaxChars = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}
