// Package index stores passage vectors and answers nearest-neighbor
// queries.
package index

import (
	"fmt"
	"math"
	"sort"
)

// Hit is one nearest-neighbor match.
type Hit struct {
	ID    string
	Score float32
}

// Flat is an exact nearest-neighbor index using cosine similarity over
// normalized vectors (higher score = closer). Brute-force scan keeps it
// correct from tens to tens of thousands of passages, which is the size of
// a guideline corpus. Flat is not safe for concurrent mutation; the query
// path is read-only and may be shared freely once the build completes.
type Flat struct {
	dims int
	ids  []string
	vecs [][]float32
	byID map[string]int
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dims int) (*Flat, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("index: dimensions must be positive, got %d", dims)
	}
	return &Flat{
		dims: dims,
		byID: make(map[string]int),
	}, nil
}

// Dimensions returns the vector dimension this index was created with.
func (f *Flat) Dimensions() int {
	return f.dims
}

// Len returns the number of entries.
func (f *Flat) Len() int {
	return len(f.ids)
}

// Add inserts a vector under id. Duplicate ids and dimension mismatches are
// rejected.
func (f *Flat) Add(id string, vec []float32) error {
	if id == "" {
		return fmt.Errorf("index: id is required")
	}
	if len(vec) != f.dims {
		return fmt.Errorf("index: vector for %q has %d dimensions, expected %d", id, len(vec), f.dims)
	}
	if _, exists := f.byID[id]; exists {
		return fmt.Errorf("index: duplicate id %q", id)
	}

	f.byID[id] = len(f.ids)
	f.ids = append(f.ids, id)
	f.vecs = append(f.vecs, normalize(vec))
	return nil
}

// Search returns up to k entries closest to query, descending by score with
// ties broken by ascending id. It never returns an id that was not added.
func (f *Flat) Search(query []float32, k int) []Hit {
	if k <= 0 || len(f.ids) == 0 || len(query) != f.dims {
		return nil
	}

	q := normalize(query)
	hits := make([]Hit, len(f.ids))
	for i, vec := range f.vecs {
		hits[i] = Hit{ID: f.ids[i], Score: dot(q, vec)}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k]
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)

	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
