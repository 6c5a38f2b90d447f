package config

import (
    "testing"
    "time"
)

func TestEnvHelpers(t *testing.T) {
    t.Setenv("X_STR", "v")
    t.Setenv("X_BOOL", "off")
    t.Setenv("X_INT", "nope")
    t.Setenv("X_DUR", "90s")

    if got := envStr("X_STR", "d"); got != "v" {
        t.Errorf("envStr = %q", got)
    }
    if got := envStr("X_MISSING", "d"); got != "d" {
        t.Errorf("envStr default = %q", got)
    }
    if got := envBool("X_BOOL", true); got {
        t.Error("envBool(off) = true")
    }
    if got := envInt("X_INT", 7); got != 7 {
        t.Errorf("envInt fallback = %d", got)
    }
    if got := envDur("X_DUR", time.Second); got != 90*time.Second {
        t.Errorf("envDur = %s", got)
    }
}

func TestLoadRedisConfig(t *testing.T) {
    t.Setenv("REDIS_ADDR", "cache:6380")
    t.Setenv("REDIS_HOST", "")
    t.Setenv("REDIS_PORT", "")
    t.Setenv("REDIS_DB", "2")
    t.Setenv("REDIS_TLS", "1")
    cfg := LoadRedisConfig()
    if cfg.Addr != "cache:6380" || cfg.DB != 2 || !cfg.TLS {
        t.Errorf("cfg = %+v", cfg)
    }

    t.Setenv("REDIS_HOST", "redis")
    t.Setenv("REDIS_PORT", "6379")
    if cfg := LoadRedisConfig(); cfg.Addr != "redis:6379" {
        t.Errorf("host/port should win, got %q", cfg.Addr)
    }
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    t.Setenv("CACHE_TTL", "")
    cfg := LoadCacheConfig()
    if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || cfg.Methods["POST"] {
        t.Errorf("methods = %v", cfg.Methods)
    }
    if cfg.TTL != 10*time.Minute || cfg.Prefix != "haggle" {
        t.Errorf("defaults = %+v", cfg)
    }
}

func TestConfigDerivedValues(t *testing.T) {
    c := Config{BaseURL: "https://haggle.example", SessionTTLDays: 2, Env: "dev"}
    if got := c.RedirectURI(); got != "https://haggle.example/v1/auth/callback" {
        t.Errorf("RedirectURI = %q", got)
    }
    if c.SessionTTL() != 48*time.Hour {
        t.Errorf("SessionTTL = %s", c.SessionTTL())
    }
    if !c.SecureCookies() {
        t.Error("https base URL should use secure cookies")
    }
    if (Config{BaseURL: "http://localhost:8080"}).SecureCookies() {
        t.Error("plain http dev should not use secure cookies")
    }
}
