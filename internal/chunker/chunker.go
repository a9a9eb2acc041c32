// Package chunker splits source documents into overlapping passages
// suitable for embedding.
package chunker

import (
	"fmt"
	"unicode/utf8"

	"github.com/akaclinicalco/jtskb/internal/domain"
)

// Config controls passage extraction.
type Config struct {
	MaxLen  int // maximum passage length in runes
	Overlap int // runes shared between consecutive passages
}

// DefaultConfig matches the window the guideline corpus was originally
// indexed with.
func DefaultConfig() Config {
	return Config{
		MaxLen:  512,
		Overlap: 64,
	}
}

// Validate checks the window parameters.
func (c Config) Validate() error {
	if c.MaxLen <= 0 {
		return fmt.Errorf("chunker: max length must be positive, got %d", c.MaxLen)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("chunker: overlap cannot be negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.MaxLen {
		return fmt.Errorf("chunker: overlap %d must be smaller than max length %d", c.Overlap, c.MaxLen)
	}
	return nil
}

// Chunk splits text into passages of at most cfg.MaxLen runes with
// cfg.Overlap runes shared between consecutive passages. Embeddings are left
// unset. Every rune of the input is covered by at least one passage, the
// passages are emitted in document order, and the split is deterministic.
//
// Documents shorter than the window yield exactly one passage. Empty or
// non-UTF-8 input fails with domain.ErrInvalidDocument; a multi-document
// build records that failure and continues.
func Chunk(text, sourceID string, cfg Config) ([]domain.Passage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sourceID == "" {
		return nil, fmt.Errorf("chunker: source ID is required")
	}
	if text == "" {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidDocument,
			"document is empty or not decodable text",
			fmt.Errorf("document %q has no content", sourceID))
	}
	if !utf8.ValidString(text) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInvalidDocument,
			"document is empty or not decodable text",
			fmt.Errorf("document %q is not valid UTF-8", sourceID))
	}

	runes := []rune(text)
	stride := cfg.MaxLen - cfg.Overlap

	passages := make([]domain.Passage, 0, (len(runes)+stride-1)/stride)
	seq := 0
	for start := 0; ; start += stride {
		end := start + cfg.MaxLen
		if end > len(runes) {
			end = len(runes)
		}
		passages = append(passages, domain.Passage{
			ID:             domain.PassageID(sourceID, seq),
			SourceDocument: sourceID,
			Offset:         start,
			Text:           string(runes[start:end]),
		})
		seq++
		if end == len(runes) {
			break
		}
	}

	return passages, nil
}
