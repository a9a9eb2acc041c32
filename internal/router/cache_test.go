package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

func TestCacheKey(t *testing.T) {
	order := []string{"remote", "cloud", "local"}

	t.Run("normalizes casing and whitespace", func(t *testing.T) {
		a := Key(domain.QueryContext{RawQuery: "  Chest   Tube  Size "}, order)
		b := Key(domain.QueryContext{RawQuery: "chest tube size"}, order)
		assert.Equal(t, a, b)
	})

	t.Run("structured fields participate regardless of map order", func(t *testing.T) {
		a := Key(domain.QueryContext{
			RawQuery:         "ketamine dose",
			StructuredFields: map[string]string{"weight": "80kg", "drug": "ketamine"},
		}, order)
		b := Key(domain.QueryContext{
			RawQuery:         "ketamine dose",
			StructuredFields: map[string]string{"drug": "ketamine", "weight": "80kg"},
		}, order)
		assert.Equal(t, a, b)
	})

	t.Run("different fields give different keys", func(t *testing.T) {
		a := Key(domain.QueryContext{
			RawQuery:         "ketamine dose",
			StructuredFields: map[string]string{"weight": "80kg"},
		}, order)
		b := Key(domain.QueryContext{
			RawQuery:         "ketamine dose",
			StructuredFields: map[string]string{"weight": "100kg"},
		}, order)
		assert.NotEqual(t, a, b)
	})

	t.Run("tier order participates", func(t *testing.T) {
		a := Key(domain.QueryContext{RawQuery: "q"}, []string{"remote", "local"})
		b := Key(domain.QueryContext{RawQuery: "q"}, []string{"local", "remote"})
		assert.NotEqual(t, a, b)
	})
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(8, 50*time.Millisecond)
	c.Set("k", "answer")

	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "answer", got)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}
