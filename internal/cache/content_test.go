package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/relnotes/widget-tracker/internal/cache"
	"github.com/relnotes/widget-tracker/internal/logger"
)

func TestContent_NilClientIsDisabled(t *testing.T) {
	c := cache.NewContent(nil, time.Minute, logger.NewNop())

	if c.Enabled() {
		t.Fatal("expected nil client cache to report disabled")
	}
	if err := c.Ping(); err == nil {
		t.Fatal("expected ping on disabled cache to fail")
	}
}

func TestContent_NilClientAlwaysMisses(t *testing.T) {
	c := cache.NewContent(nil, time.Minute, logger.NewNop())
	ctx := context.Background()

	// Set must be a silent no-op; Get must miss.
	c.Set(ctx, "team_1", "example.com", []byte(`{"success":true}`))

	if payload, ok := c.Get(ctx, "team_1", "example.com"); ok || payload != nil {
		t.Fatalf("expected miss from disabled cache, got %q", payload)
	}
}
