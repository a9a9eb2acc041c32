// Package store persists passages and their vector index together, and
// loads them back as one read-only unit.
//
// The backing format is a single SQLite file so the whole knowledge base
// can be swapped atomically with rename(2). At load the passages are pulled
// into memory and the vector index is rebuilt from them, mirroring how the
// serialized index and passage metadata were always read side by side.
package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/index"
	_ "modernc.org/sqlite"
)

const (
	metaDimensions  = "dimensions"
	metaPassages    = "passage_count"
	metaBuiltAt     = "built_at"
	metaBuildID     = "build_id"
	metaFingerprint = "source_fingerprint"
)

// Store is a loaded, immutable knowledge base: every index entry has a
// passage record and vice versa. Multiple queries may read it concurrently;
// nothing on the query path mutates it.
type Store struct {
	path        string
	dims        int
	builtAt     time.Time
	buildID     string
	fingerprint string
	passages    map[string]domain.Passage
	idx         *index.Flat
}

// Load opens the store at path and verifies its referential integrity. A
// mismatch between index entries and passage records is a fatal
// CorruptStore error, never silently tolerated.
func Load(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound,
				"knowledge store not found", err)
		}
		return nil, fmt.Errorf("store: stat %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	defer db.Close()

	s := &Store{path: path, passages: make(map[string]domain.Passage)}
	if err := s.loadMeta(db); err != nil {
		return nil, err
	}
	if err := s.loadPassages(db); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadMeta(db *sql.DB) error {
	meta := make(map[string]string)
	rows, err := db.Query(`SELECT key, value FROM store_meta`)
	if err != nil {
		return corrupt("store metadata unreadable", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return corrupt("store metadata unreadable", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return corrupt("store metadata unreadable", err)
	}

	dims, err := strconv.Atoi(meta[metaDimensions])
	if err != nil || dims <= 0 {
		return corrupt("store metadata missing embedding dimensions", err)
	}
	s.dims = dims
	s.buildID = meta[metaBuildID]
	s.fingerprint = meta[metaFingerprint]
	if ts := meta[metaBuiltAt]; ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			s.builtAt = t
		}
	}
	return nil
}

func (s *Store) loadPassages(db *sql.DB) error {
	idx, err := index.NewFlat(s.dims)
	if err != nil {
		return corrupt("invalid embedding dimensions", err)
	}

	rows, err := db.Query(`SELECT id, source_document, doc_offset, content, embedding FROM passages ORDER BY id`)
	if err != nil {
		return corrupt("passages unreadable", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.SourceDocument, &p.Offset, &p.Text, &blob); err != nil {
			return corrupt("passage row unreadable", err)
		}

		vec, err := decodeVector(blob, s.dims)
		if err != nil {
			return corrupt(fmt.Sprintf("passage %s has a malformed embedding", p.ID), err)
		}
		p.Embedding = vec

		if err := idx.Add(p.ID, vec); err != nil {
			return corrupt("duplicate or invalid index entry", err)
		}
		s.passages[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return corrupt("passages unreadable", err)
	}

	// Referential integrity: index entry count must equal the recorded
	// passage count, and both must equal what we actually loaded.
	var declared int
	row := db.QueryRow(`SELECT value FROM store_meta WHERE key = ?`, metaPassages)
	var v string
	if err := row.Scan(&v); err != nil {
		return corrupt("passage count missing from metadata", err)
	}
	declared, err = strconv.Atoi(v)
	if err != nil {
		return corrupt("passage count unreadable", err)
	}
	if declared != len(s.passages) || idx.Len() != len(s.passages) {
		return corrupt(fmt.Sprintf("expected %d passages, loaded %d with %d index entries",
			declared, len(s.passages), idx.Len()), nil)
	}

	s.idx = idx
	return nil
}

func corrupt(msg string, cause error) error {
	if cause == nil {
		return domain.NewDomainError(domain.ErrCodeCorruptStore, msg)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeCorruptStore, msg, cause)
}

// Lookup resolves a passage by id.
func (s *Store) Lookup(id string) (domain.Passage, error) {
	p, ok := s.passages[id]
	if !ok {
		return domain.Passage{}, domain.NewDomainErrorWithCause(domain.ErrCodeNotFound,
			"passage not found", fmt.Errorf("id %q", id))
	}
	return p, nil
}

// Search answers a nearest-neighbor query against the loaded index.
func (s *Store) Search(query []float32, k int) []index.Hit {
	return s.idx.Search(query, k)
}

// Len returns the number of passages.
func (s *Store) Len() int {
	return len(s.passages)
}

// Dimensions returns the embedding dimension the store was built with.
func (s *Store) Dimensions() int {
	return s.dims
}

// BuiltAt returns when the store was built.
func (s *Store) BuiltAt() time.Time {
	return s.builtAt
}

// BuildID returns the build identifier.
func (s *Store) BuildID() string {
	return s.buildID
}

// Fingerprint returns the source corpus fingerprint recorded at build time.
func (s *Store) Fingerprint() string {
	return s.fingerprint
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(blob []byte, dims int) ([]float32, error) {
	if len(blob) != 4*dims {
		return nil, fmt.Errorf("embedding blob is %d bytes, expected %d", len(blob), 4*dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
