package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache on the public read
// endpoints.  When Enabled is false or no Redis client is configured the
// cache middleware is a pass-through.  KeyStrategy selects which parts of
// the request form the key ("route_query" or "route").  Every committed
// engine operation bumps Prefix's generation, so cached reads never outlive
// a state change by more than one request.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables, falling back to defaults.
func LoadCacheConfig() CacheConfig {
	cfg := CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      map[string]bool{},
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       envStr("CACHE_PREFIX", "smartrent:cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
	for _, m := range envList("CACHE_METHODS", "GET") {
		cfg.Methods[strings.ToUpper(m)] = true
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	return cfg
}
