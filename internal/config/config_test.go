package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.StaleAfter != 5*time.Minute {
		t.Errorf("StaleAfter = %v, want 5m", cfg.StaleAfter)
	}
	if cfg.WSPingInterval != 30*time.Second {
		t.Errorf("WSPingInterval = %v, want 30s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Errorf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.GeocodeTimeout != 3*time.Second {
		t.Errorf("GeocodeTimeout = %v, want 3s", cfg.GeocodeTimeout)
	}
	if cfg.AuthEnabled || cfg.RedisEnabled {
		t.Errorf("auth/redis enabled by default: %v %v", cfg.AuthEnabled, cfg.RedisEnabled)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("STALE_AFTER", "90s")
	t.Setenv("WS_PING_INTERVAL", "10s")
	t.Setenv("WS_WRITE_TIMEOUT", "2s")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.1, 10.0.0.2 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.StaleAfter != 90*time.Second {
		t.Errorf("StaleAfter = %v, want 90s", cfg.StaleAfter)
	}
	if cfg.WSPingInterval != 10*time.Second {
		t.Errorf("WSPingInterval = %v, want 10s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 2*time.Second {
		t.Errorf("WSWriteTimeout = %v, want 2s", cfg.WSWriteTimeout)
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[0] != "10.0.0.1" {
		t.Errorf("RateLimitWhitelist = %v", cfg.RateLimitWhitelist)
	}
}

func TestLoadIgnoresMalformedDurations(t *testing.T) {
	t.Setenv("WS_PING_INTERVAL", "often")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.WSPingInterval != 30*time.Second {
		t.Errorf("WSPingInterval = %v, want default 30s on bad input", cfg.WSPingInterval)
	}
}
