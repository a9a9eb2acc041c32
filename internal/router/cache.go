package router

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// Cache remembers successful answers keyed by the full query context. Only
// answers that completed generation are ever stored; failures and partial
// results are not cacheable.
type Cache struct {
	lru *expirable.LRU[string, string]
	ttl time.Duration
}

// NewCache creates a bounded TTL cache. Capacity must be positive.
func NewCache(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		lru: expirable.NewLRU[string, string](capacity, nil, ttl),
		ttl: ttl,
	}
}

// Key derives a stable cache key from the query context and the tier
// priority order. The raw query is normalized (case folded, whitespace
// collapsed) so trivially reworded repeats still hit; structured fields are
// serialized in sorted order; the tier order participates so a
// reconfiguration never serves answers produced under a different fallback
// chain.
func Key(qc domain.QueryContext, tierOrder []string) string {
	h := sha256.New()
	h.Write([]byte(normalizeQuery(qc.RawQuery)))
	h.Write([]byte{0})

	keys := make([]string, 0, len(qc.StructuredFields))
	for k := range qc.StructuredFields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(qc.StructuredFields[k]))
		h.Write([]byte{0})
	}

	h.Write([]byte(strings.Join(tierOrder, ",")))
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Get returns a cached answer, if present and unexpired.
func (c *Cache) Get(key string) (string, bool) {
	return c.lru.Get(key)
}

// Set stores a completed answer.
func (c *Cache) Set(key, answer string) {
	c.lru.Add(key, answer)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
