package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spamguard/spamguard/internal/core"
	"go.uber.org/zap"
)

func newEntry(hash string, ttl time.Duration) *core.CacheEntry {
	now := time.Now()
	return &core.CacheEntry{
		TextHash:  hash,
		IsSpam:    true,
		Score:     0.93,
		ModelUsed: "tfidf-logreg-test",
		LastSeen:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Hour)
	defer cache.Stop()
	ctx := context.Background()

	entry := newEntry("abc123", time.Hour)
	if err := cache.Set(ctx, entry); err != nil {
		t.Fatalf("unexpected error on set: %v", err)
	}

	got, err := cache.Get(ctx, "abc123")
	if err != nil {
		t.Fatalf("unexpected error on get: %v", err)
	}
	if got.Score != entry.Score || got.IsSpam != entry.IsSpam || got.ModelUsed != entry.ModelUsed {
		t.Errorf("got %+v, want %+v", got, entry)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Hour)
	defer cache.Stop()

	_, err := cache.Get(context.Background(), "unknown")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCacheExpiredEntryNotServed(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Hour)
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, newEntry("stale", -time.Minute)); err != nil {
		t.Fatalf("unexpected error on set: %v", err)
	}

	_, err := cache.Get(ctx, "stale")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired entry, got %v", err)
	}
}

func TestMemoryCacheCleanupRemovesExpired(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Hour)
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, newEntry("stale", -time.Minute)); err != nil {
		t.Fatalf("unexpected error on set: %v", err)
	}
	if err := cache.Set(ctx, newEntry("fresh", time.Hour)); err != nil {
		t.Fatalf("unexpected error on set: %v", err)
	}

	if err := cache.Cleanup(ctx); err != nil {
		t.Fatalf("unexpected error on cleanup: %v", err)
	}

	cache.mu.RLock()
	_, staleKept := cache.entries["stale"]
	_, freshKept := cache.entries["fresh"]
	cache.mu.RUnlock()

	if staleKept {
		t.Error("expired entry survived cleanup")
	}
	if !freshKept {
		t.Error("fresh entry removed by cleanup")
	}
}

func TestMemoryCacheDelete(t *testing.T) {
	cache := NewMemoryCache(zap.NewNop(), time.Hour)
	defer cache.Stop()
	ctx := context.Background()

	if err := cache.Set(ctx, newEntry("abc123", time.Hour)); err != nil {
		t.Fatalf("unexpected error on set: %v", err)
	}
	if err := cache.Delete(ctx, "abc123"); err != nil {
		t.Fatalf("unexpected error on delete: %v", err)
	}

	_, err := cache.Get(ctx, "abc123")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}
