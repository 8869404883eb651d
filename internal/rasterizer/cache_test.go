package rasterizer

import (
	"context"
	"testing"
)

func TestCacheMemoryRoundTrip(t *testing.T) {
	cache := NewCache(nil)
	ctx := context.Background()

	if _, ok := cache.Get(ctx, "deck-1", 1); ok {
		t.Fatalf("empty cache returned a hit")
	}

	cache.Put(ctx, "deck-1", 1, []byte("first"))
	img, ok := cache.Get(ctx, "deck-1", 1)
	if !ok || string(img) != "first" {
		t.Fatalf("cache miss after put: %q %v", img, ok)
	}

	// Later captures of the same slide win.
	cache.Put(ctx, "deck-1", 1, []byte("second"))
	img, _ = cache.Get(ctx, "deck-1", 1)
	if string(img) != "second" {
		t.Fatalf("overwrite lost: %q", img)
	}
}

func TestCacheIsolatesDecks(t *testing.T) {
	cache := NewCache(nil)
	ctx := context.Background()
	cache.Put(ctx, "deck-1", 1, []byte("a"))
	cache.Put(ctx, "deck-2", 1, []byte("b"))

	img, _ := cache.Get(ctx, "deck-2", 1)
	if string(img) != "b" {
		t.Fatalf("decks share entries: %q", img)
	}

	cache.Drop("deck-1")
	if _, ok := cache.Get(ctx, "deck-1", 1); ok {
		t.Fatalf("drop did not clear deck-1")
	}
	if _, ok := cache.Get(ctx, "deck-2", 1); !ok {
		t.Fatalf("drop cleared the wrong deck")
	}
}
