package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CacheConfig controls the Redis response cache in front of public read
// endpoints such as the menu.
type CacheConfig struct {
	Enabled      bool            // CACHE_ENABLED
	Methods      map[string]bool // CACHE_METHODS, comma separated
	TTL          time.Duration   // CACHE_TTL
	KeyStrategy  string          // CACHE_KEY_STRATEGY: route | route_query | method_route | method_route_query
	Prefix       string          // CACHE_PREFIX, also the flush pattern
	MaxBodyBytes int             // CACHE_MAX_BODY_BYTES; larger responses are not stored
}

func loadCacheConfig(v *viper.Viper) CacheConfig {
	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_METHODS", "GET")
	v.SetDefault("CACHE_TTL", "30s")
	v.SetDefault("CACHE_KEY_STRATEGY", "route_query")
	v.SetDefault("CACHE_PREFIX", "cache")
	v.SetDefault("CACHE_MAX_BODY_BYTES", 1<<20)

	cfg := CacheConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		Methods:      map[string]bool{},
		TTL:          v.GetDuration("CACHE_TTL"),
		KeyStrategy:  v.GetString("CACHE_KEY_STRATEGY"),
		Prefix:       v.GetString("CACHE_PREFIX"),
		MaxBodyBytes: v.GetInt("CACHE_MAX_BODY_BYTES"),
	}
	for _, m := range strings.Split(v.GetString("CACHE_METHODS"), ",") {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			cfg.Methods[m] = true
		}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Second
	}
	return cfg
}
