package config

import (
    "strings"
    "time"
)

// CacheConfig controls the Redis cache in front of finished room results.
// A finished room never changes, so TTL only bounds memory use.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // methods allowed to read from the cache
    TTL          time.Duration
    Prefix       string
    MaxBodyBytes int // larger responses pass through uncached
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      methodSet(envStr("CACHE_METHODS", "GET,HEAD")),
        TTL:          envDur("CACHE_TTL", 10*time.Minute),
        Prefix:       envStr("CACHE_PREFIX", "haggle"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}

func methodSet(list string) map[string]bool {
    set := make(map[string]bool)
    for _, m := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
        set[strings.ToUpper(m)] = true
    }
    return set
}
