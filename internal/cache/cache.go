// Package cache provides the TTL store shared by the analysis pipeline
// (per-repository report memoization), the analyze endpoint (whole-response
// caching) and the skill leaderboard. Repository analyses clone and walk a
// full working copy, so a cache hit saves seconds, not microseconds.
package cache

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chaincred/chaincred/internal/monitoring"
)

type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e *entry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// Cache is a thread-safe byte store where every entry lives for the
// same TTL, fixed at construction.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*entry
	ttl   time.Duration
}

// NewCache returns a cache whose entries expire after ttl. A background
// sweep reclaims expired entries so an idle cache does not hold onto
// stale analysis reports.
func NewCache(ttl time.Duration) *Cache {
	c := &Cache{
		items: make(map[string]*entry),
		ttl:   ttl,
	}
	go c.sweep()
	return c
}

func (c *Cache) sweep() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		for key, e := range c.items {
			if e.expired() {
				delete(c.items, key)
			}
		}
		c.mu.Unlock()
	}
}

// generateKey hashes arbitrary input (request bodies can be kilobytes of
// repository URLs) into a fixed-size map key.
func (c *Cache) generateKey(input string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(input)))
}

// Get returns the stored bytes for key. Expired entries read as absent
// and are reclaimed off the read path.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}
	if e.expired() {
		go c.Delete(key)
		return nil, false
	}
	return e.data, true
}

// Set stores data under key for the cache's TTL.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = &entry{
		data:      data,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Delete removes one entry.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Clear drops every entry. The leaderboard calls this after each stored
// analysis run so rankings never serve stale aggregates.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry)
}

// Size returns the entry count, expired entries included until swept.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Stats reports entry counts for the admin stats endpoint.
func (c *Cache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := len(c.items)
	expired := 0
	for _, e := range c.items {
		if e.expired() {
			expired++
		}
	}

	return map[string]interface{}{
		"total_items":   total,
		"expired_items": expired,
		"active_items":  total - expired,
		"ttl_seconds":   c.ttl.Seconds(),
	}
}

// Middleware caches analyze responses keyed by the request body, so an
// identical candidate profile skips re-cloning every repository. A nil
// logger gets the default structured logger.
func (c *Cache) Middleware(metrics *monitoring.Metrics, log *monitoring.Logger) func(*gin.Context) {
	if log == nil {
		log = monitoring.NewLogger()
	}
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || !strings.HasSuffix(ctx.Request.URL.Path, "/analyze") {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		// The validation middleware downstream re-reads the body.
		ctx.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		key := c.generateKey(string(body))
		if cached, found := c.Get(key); found {
			log.CacheLogger("get", key, true, c.Size())
			metrics.IncrementCacheHit()
			ctx.Data(http.StatusOK, "application/json", cached)
			ctx.Abort()
			return
		}
		log.CacheLogger("get", key, false, c.Size())
		metrics.IncrementCacheMiss()

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Next()

		// Only a completed analysis is worth replaying; validation
		// failures and rate-limit responses must stay live.
		if ctx.Writer.Status() == http.StatusOK {
			c.Set(key, wrapper.body.Bytes())
			log.CacheLogger("set", key, false, c.Size())
		}
	}
}

// responseWriter tees the handler's output so a successful response can
// be stored after it has been sent.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
