package config

import "testing"

func BenchmarkDefaultConfigSanitizer_Sanitize(b *testing.B) {
	sanitizer := NewDefaultConfigSanitizer()
	cfg := &Config{
		Session:     SessionConfig{CookiePath: "/tmp/cookies.yaml"},
		TargetList:  TargetListConfig{Path: "/tmp/targets.yaml"},
		Persistence: PersistenceConfig{Path: "/tmp/blockctl.db"},
		Cache: CacheConfig{
			RedisEnabled:  true,
			RedisAddr:     "localhost:6379",
			RedisPassword: "redispass",
		},
		Client: ClientConfig{BaseURL: "https://x.com/i/api"},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sanitizer.Sanitize(cfg)
	}
}
