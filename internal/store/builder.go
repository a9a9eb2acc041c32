package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/akaclinicalco/jtskb/internal/chunker"
	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/embedding"
	"github.com/akaclinicalco/jtskb/internal/index"
	"github.com/akaclinicalco/jtskb/internal/ingest"
	"github.com/akaclinicalco/jtskb/internal/telemetry"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// embedBatchSize is how many passages one worker embeds per call. The
// provider may batch further internally.
const embedBatchSize = 16

// SkippedDocument records a document that failed validation during a build.
type SkippedDocument struct {
	ID     string
	Reason string
}

// Report summarizes a completed build.
type Report struct {
	BuildID   string
	Documents int
	Passages  int
	Skipped   []SkippedDocument
	Elapsed   time.Duration
}

// Builder runs one-shot batch builds of the knowledge store. Builds are
// single-writer: a second concurrent build is rejected with
// BuildInProgress. A failed build leaves any previous store untouched.
type Builder struct {
	provider embedding.Provider
	path     string
	chunkCfg chunker.Config
	workers  int

	mu       sync.Mutex
	building bool
}

// NewBuilder creates a builder that persists to path.
func NewBuilder(provider embedding.Provider, path string, chunkCfg chunker.Config, workers int) *Builder {
	if workers <= 0 {
		workers = 4
	}
	return &Builder{
		provider: provider,
		path:     path,
		chunkCfg: chunkCfg,
		workers:  workers,
	}
}

// Path returns the store location this builder writes to.
func (b *Builder) Path() string {
	return b.path
}

// Building reports whether a build currently holds the writer lock.
func (b *Builder) Building() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.building
}

// Build chunks, embeds, indexes, and persists the given documents
// atomically: everything is written to a temporary file which is renamed
// into place only on full success. Invalid documents are recorded in the
// report and skipped; an unavailable embedding provider aborts the build
// with no partial state.
func (b *Builder) Build(ctx context.Context, docs []ingest.Document, fingerprint string) (*Report, error) {
	b.mu.Lock()
	if b.building {
		b.mu.Unlock()
		return nil, domain.ErrBuildInProgress
	}
	b.building = true
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.building = false
		b.mu.Unlock()
	}()

	start := time.Now()
	report := &Report{BuildID: uuid.NewString(), Documents: len(docs)}

	ctx, span := telemetry.StartSpan(ctx, "Builder.Build", telemetry.SpanAttributes{
		BuildID:   report.BuildID,
		Operation: "build",
	})
	defer span.End()

	var passages []domain.Passage
	for _, doc := range docs {
		chunks, err := chunker.Chunk(doc.Text, doc.ID, b.chunkCfg)
		if err != nil {
			report.Skipped = append(report.Skipped, SkippedDocument{ID: doc.ID, Reason: err.Error()})
			log.Printf("build %s: skipping document %s: %v", report.BuildID, doc.ID, err)
			continue
		}
		passages = append(passages, chunks...)
	}
	if len(passages) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no valid documents to index")
	}

	if err := b.embedAll(ctx, passages); err != nil {
		span.SetError(err)
		return nil, err
	}

	// Assemble the index before touching disk so dimension problems and
	// duplicate ids abort with nothing written.
	idx, err := index.NewFlat(b.provider.Dimensions())
	if err != nil {
		return nil, err
	}
	for _, p := range passages {
		if err := idx.Add(p.ID, p.Embedding); err != nil {
			return nil, err
		}
	}

	if err := b.persist(ctx, passages, report.BuildID, fingerprint); err != nil {
		span.SetError(err)
		return nil, err
	}

	report.Passages = len(passages)
	report.Elapsed = time.Since(start)
	log.Printf("build %s: indexed %d passages from %d documents (%d skipped) in %s",
		report.BuildID, report.Passages, report.Documents, len(report.Skipped), report.Elapsed)
	return report, nil
}

// embedAll fills in passage embeddings, parallelized across bounded
// workers. Results land by position so ordering never depends on
// scheduling.
func (b *Builder) embedAll(ctx context.Context, passages []domain.Passage) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for start := 0; start < len(passages); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(passages) {
			end = len(passages)
		}
		batch := passages[start:end]

		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, p := range batch {
				texts[i] = p.Text
			}
			vecs, err := b.provider.Embed(ctx, texts)
			if err != nil {
				return err
			}
			if len(vecs) != len(batch) {
				return domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
					"embedding provider unavailable",
					fmt.Errorf("expected %d vectors, got %d", len(batch), len(vecs)))
			}
			for i := range batch {
				batch[i].Embedding = vecs[i]
			}
			return nil
		})
	}

	return g.Wait()
}

// persist writes the store to <path>.building and renames it into place.
func (b *Builder) persist(ctx context.Context, passages []domain.Passage, buildID, fingerprint string) error {
	tmp := b.path + ".building"
	if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove stale temp file: %w", err)
	}

	db, err := sql.Open("sqlite", tmp)
	if err != nil {
		return fmt.Errorf("store: open temp store: %w", err)
	}

	cleanup := func(cause error) error {
		db.Close()
		os.Remove(tmp)
		return cause
	}

	if err := runMigrations(db); err != nil {
		return cleanup(err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return cleanup(fmt.Errorf("store: begin transaction: %w", err))
	}

	stmt, err := tx.Prepare(`INSERT INTO passages (id, source_document, doc_offset, content, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return cleanup(fmt.Errorf("store: prepare insert: %w", err))
	}
	for _, p := range passages {
		if _, err := stmt.Exec(p.ID, p.SourceDocument, p.Offset, p.Text, encodeVector(p.Embedding)); err != nil {
			stmt.Close()
			tx.Rollback()
			return cleanup(fmt.Errorf("store: insert passage %s: %w", p.ID, err))
		}
	}
	stmt.Close()

	meta := map[string]string{
		metaDimensions:  fmt.Sprintf("%d", b.provider.Dimensions()),
		metaPassages:    fmt.Sprintf("%d", len(passages)),
		metaBuiltAt:     time.Now().UTC().Format(time.RFC3339),
		metaBuildID:     buildID,
		metaFingerprint: fingerprint,
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT INTO store_meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			tx.Rollback()
			return cleanup(fmt.Errorf("store: write metadata: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return cleanup(fmt.Errorf("store: commit: %w", err))
	}
	if err := db.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close temp store: %w", err)
	}

	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: swap store into place: %w", err)
	}
	return nil
}
