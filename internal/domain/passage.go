package domain

import "fmt"

// Passage is a bounded unit of source text stored with its vector embedding
// for retrieval. Passages are immutable once created: they come into being
// during an index build and are destroyed only by a full rebuild.
type Passage struct {
	ID             string
	SourceDocument string
	Offset         int // rune offset within the source document
	Text           string
	Embedding      []float32
}

// PassageID builds a deterministic passage identifier. The zero-padded
// sequence number makes lexical order match positional order, which is what
// tie-breaking during retrieval relies on.
func PassageID(sourceDocument string, seq int) string {
	return fmt.Sprintf("%s#%06d", sourceDocument, seq)
}

// ValidatePassage validates a Passage instance
func ValidatePassage(p *Passage) error {
	if p == nil {
		return fmt.Errorf("passage cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("passage ID is required")
	}
	if p.SourceDocument == "" {
		return fmt.Errorf("passage SourceDocument is required")
	}
	if p.Offset < 0 {
		return fmt.Errorf("passage Offset cannot be negative")
	}
	if p.Text == "" {
		return fmt.Errorf("passage Text is required")
	}
	return nil
}
