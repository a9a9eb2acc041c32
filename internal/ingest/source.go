// Package ingest loads guideline documents from their storage location for
// index builds.
package ingest

import "context"

// Document is one source document as plain text. Text may be empty when
// extraction failed; the build records such documents as invalid and
// continues.
type Document struct {
	ID   string
	Text string
}

// Source enumerates the documents of a corpus. Fingerprint returns a value
// that changes whenever the corpus content changes, so the rebuild worker
// can detect staleness without downloading everything.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
	Fingerprint(ctx context.Context) (string, error)
}
