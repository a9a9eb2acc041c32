package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/ingest"
	"github.com/akaclinicalco/jtskb/internal/store"
)

// Reindexer watches the document source for changes and rebuilds the
// knowledge store when its fingerprint drifts from the one recorded at the
// last build. A successful rebuild is swapped into the live handle;
// in-flight queries keep reading the previous store until then.
type Reindexer struct {
	source  ingest.Source
	builder *store.Builder
	handle  *store.Handle
}

// NewReindexer creates a Reindexer.
func NewReindexer(source ingest.Source, builder *store.Builder, handle *store.Handle) *Reindexer {
	return &Reindexer{source: source, builder: builder, handle: handle}
}

// ProcessJobs runs one fingerprint check, rebuilding if the source changed.
// Satisfies the worker's JobProcessor interface.
func (r *Reindexer) ProcessJobs(ctx context.Context) error {
	fp, err := r.source.Fingerprint(ctx)
	if err != nil {
		return fmt.Errorf("fingerprint source: %w", err)
	}

	if cur := r.handle.Current(); cur != nil && cur.Fingerprint() == fp {
		return nil
	}

	if _, err := r.rebuild(ctx, fp); err != nil {
		// Another build already running covers this change; the next poll
		// re-checks the fingerprint.
		if errors.Is(err, domain.ErrBuildInProgress) {
			return nil
		}
		return err
	}
	return nil
}

// Force rebuilds the store unconditionally, regardless of fingerprint
// state. Used by the build endpoint and the build CLI command.
func (r *Reindexer) Force(ctx context.Context) (*store.Report, error) {
	fp, err := r.source.Fingerprint(ctx)
	if err != nil {
		return nil, fmt.Errorf("fingerprint source: %w", err)
	}
	return r.rebuild(ctx, fp)
}

func (r *Reindexer) rebuild(ctx context.Context, fp string) (*store.Report, error) {
	docs, err := r.source.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	report, err := r.builder.Build(ctx, docs, fp)
	if err != nil {
		return nil, err
	}

	s, err := store.Load(r.builder.Path())
	if err != nil {
		return nil, fmt.Errorf("load rebuilt store: %w", err)
	}
	r.handle.Swap(s)

	log.Printf("reindex complete: build %s, %d documents, %d passages, %d skipped, took %s",
		report.BuildID, report.Documents, report.Passages, len(report.Skipped), report.Elapsed.Round(time.Millisecond))
	return report, nil
}
