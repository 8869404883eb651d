package rasterizer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"slidesense/internal/redis"
)

const cacheTTL = 24 * time.Hour

// Cache holds captured slide images keyed by slide number so a page visited
// once is never rasterized again. The in-memory map lives for the session;
// redis, when configured, lets a reopened deck skip recapture entirely.
type Cache struct {
	mu     sync.RWMutex
	images map[string]map[int][]byte
	rdb    *redis.Client
}

// NewCache builds a slide image cache. rdb may be nil.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{
		images: make(map[string]map[int][]byte),
		rdb:    rdb,
	}
}

func imageKey(deckID string, slideNumber int) string {
	return fmt.Sprintf("slidesense:image:%s:%d", deckID, slideNumber)
}

// Get returns the cached image for the slide, if any.
func (c *Cache) Get(ctx context.Context, deckID string, slideNumber int) ([]byte, bool) {
	c.mu.RLock()
	if deck, ok := c.images[deckID]; ok {
		if img, ok := deck[slideNumber]; ok {
			c.mu.RUnlock()
			return img, true
		}
	}
	c.mu.RUnlock()

	if c.rdb == nil {
		return nil, false
	}
	img, err := c.rdb.GetBytes(ctx, imageKey(deckID, slideNumber))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("image cache read failed: %v", err)
		}
		return nil, false
	}
	c.storeLocal(deckID, slideNumber, img)
	return img, true
}

// Put stores a freshly captured image. Writing twice for the same slide
// number overwrites, matching last-write-wins section semantics.
func (c *Cache) Put(ctx context.Context, deckID string, slideNumber int, img []byte) {
	if len(img) == 0 {
		return
	}
	c.storeLocal(deckID, slideNumber, img)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, imageKey(deckID, slideNumber), img, cacheTTL); err != nil {
		log.Printf("image cache write failed: %v", err)
	}
}

func (c *Cache) storeLocal(deckID string, slideNumber int, img []byte) {
	c.mu.Lock()
	deck, ok := c.images[deckID]
	if !ok {
		deck = make(map[int][]byte)
		c.images[deckID] = deck
	}
	deck[slideNumber] = img
	c.mu.Unlock()
}

// Drop discards the session-local entries for a deck.
func (c *Cache) Drop(deckID string) {
	c.mu.Lock()
	delete(c.images, deckID)
	c.mu.Unlock()
}

// Purge removes a deck's images everywhere, used when the deck is deleted.
func (c *Cache) Purge(ctx context.Context, deckID string) {
	c.Drop(deckID)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.DelPattern(ctx, fmt.Sprintf("slidesense:image:%s:*", deckID)); err != nil {
		log.Printf("image cache purge failed: %v", err)
	}
}
