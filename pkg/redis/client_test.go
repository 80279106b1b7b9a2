package redis

import (
	"testing"
	"time"

	"github.com/nestfin/nestfin-backend/pkg/config"
)

func TestIdempotencyKeyNamespacing(t *testing.T) {
	c := &Client{}
	got := c.IdempotencyKey("plaid_webhook", "evt-123")
	want := "nf:idempotency:plaid_webhook:evt-123"
	if got != want {
		t.Fatalf("unexpected key %q, want %q", got, want)
	}
}

func TestOptionsFromConfigRequiresTarget(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error when neither url nor address is set")
	}
}

func TestOptionsFromConfigParsesURL(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:pass@localhost:6380/2",
		PoolSize:    15,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
	if opts.PoolSize != 15 {
		t.Fatalf("pool size override not applied, got %d", opts.PoolSize)
	}
	if opts.DialTimeout != 2*time.Second {
		t.Fatalf("dial timeout override not applied, got %v", opts.DialTimeout)
	}
}

func TestOptionsFromConfigFallsBackToAddress(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{
		Address:  "cache.internal:6379",
		Password: "hunter2",
		DB:       1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache.internal:6379" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.Password != "hunter2" {
		t.Fatalf("password not applied")
	}
}
