package config

import "testing"

func TestDefaultConfigSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewDefaultConfigSanitizer()

	cfg := &Config{
		Cache: CacheConfig{
			RedisEnabled:  true,
			RedisPassword: "redispass",
		},
		Processing: ProcessingConfig{
			BatchSize: 500,
		},
	}

	sanitized := sanitizer.Sanitize(cfg)

	if sanitized.Cache.RedisPassword != "***REDACTED***" {
		t.Errorf("Cache.RedisPassword = %v, want ***REDACTED***", sanitized.Cache.RedisPassword)
	}

	if sanitized.Processing.BatchSize != cfg.Processing.BatchSize {
		t.Errorf("Processing.BatchSize = %v, want %v", sanitized.Processing.BatchSize, cfg.Processing.BatchSize)
	}
}

func TestDefaultConfigSanitizer_DeepCopy(t *testing.T) {
	sanitizer := NewDefaultConfigSanitizer()

	cfg := &Config{
		Cache: CacheConfig{RedisPassword: "original"},
	}

	sanitized := sanitizer.Sanitize(cfg)

	if cfg.Cache.RedisPassword != "original" {
		t.Error("Sanitize() mutated original config")
	}

	if sanitized == cfg {
		t.Error("Sanitize() did not create deep copy")
	}
}

func TestNewConfigSanitizer_CustomRedaction(t *testing.T) {
	customValue := "[HIDDEN]"
	sanitizer := NewConfigSanitizer(customValue)

	cfg := &Config{Cache: CacheConfig{RedisPassword: "secret"}}

	sanitized := sanitizer.Sanitize(cfg)

	if sanitized.Cache.RedisPassword != customValue {
		t.Errorf("Cache.RedisPassword = %v, want %v", sanitized.Cache.RedisPassword, customValue)
	}
}

func TestDefaultConfigSanitizer_EmptyConfig(t *testing.T) {
	sanitizer := NewDefaultConfigSanitizer()
	cfg := &Config{}

	sanitized := sanitizer.Sanitize(cfg)

	if sanitized == nil {
		t.Error("Sanitize() returned nil for empty config")
	}
}

func TestDefaultConfigSanitizer_NoPasswordNoRedaction(t *testing.T) {
	sanitizer := NewDefaultConfigSanitizer()
	cfg := &Config{Cache: CacheConfig{RedisEnabled: false}}

	sanitized := sanitizer.Sanitize(cfg)

	if sanitized.Cache.RedisPassword != "" {
		t.Errorf("expected empty password to stay empty, got %v", sanitized.Cache.RedisPassword)
	}
}
