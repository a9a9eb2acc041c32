// Package engine is the query-answering facade: parameter extraction,
// retrieval, prompt assembly, and routed generation behind one call.
package engine

import (
	"context"
	"errors"
	"log"

	"github.com/akaclinicalco/jtskb/internal/assembler"
	"github.com/akaclinicalco/jtskb/internal/clinical"
	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/router"
	"github.com/akaclinicalco/jtskb/internal/telemetry"
)

// Retriever resolves a query to ranked supporting passages.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, minScore float32) (domain.RetrievalResult, error)
}

// Executor runs a generation request through the tier chain.
type Executor interface {
	Execute(ctx context.Context, qc domain.QueryContext, req domain.GenerationRequest) (router.Result, error)
	Cached(qc domain.QueryContext) (router.Result, bool)
}

// Config tunes the pipeline.
type Config struct {
	TopK        int
	MinScore    float32
	TokenBudget int
	MaxTokens   int
	Temperature float32
}

// Response is the answer to one query.
type Response struct {
	Answer      string
	Tier        string
	Cached      bool
	ChunksFound int
}

// Engine wires retrieval, assembly, and routing.
type Engine struct {
	retriever Retriever
	executor  Executor
	cfg       Config
}

// New creates an Engine.
func New(retriever Retriever, executor Executor, cfg Config) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 1024
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	return &Engine{retriever: retriever, executor: executor, cfg: cfg}
}

// Answer runs the full pipeline for one query. Structured clinical
// parameters extracted from the query text are merged under any fields the
// caller supplied (caller-supplied values win). An empty retrieval result is
// not an error; the prompt simply carries no guideline context. A query-time
// embedding failure is recovered through the response cache when a prior
// answer to the same question exists, and is fatal otherwise.
func (e *Engine) Answer(ctx context.Context, qc domain.QueryContext, tierHint string) (Response, error) {
	ctx, span := telemetry.StartSpan(ctx, "Engine.Answer", telemetry.SpanAttributes{
		Operation: "answer",
	})
	defer span.End()

	if extracted := clinical.Extract(qc.RawQuery); extracted != nil {
		merged := make(map[string]string, len(extracted)+len(qc.StructuredFields))
		for k, v := range extracted {
			merged[k] = v
		}
		for k, v := range qc.StructuredFields {
			merged[k] = v
		}
		qc.StructuredFields = merged
	}

	rr, err := e.retriever.Retrieve(ctx, qc.RawQuery, e.cfg.TopK, e.cfg.MinScore)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			if res, ok := e.executor.Cached(qc); ok {
				log.Printf("retrieval unavailable, served from cache: %v", err)
				return Response{Answer: res.Answer, Tier: res.Tier, Cached: true}, nil
			}
		}
		span.SetError(err)
		return Response{}, err
	}

	prompt := assembler.Assemble(qc, rr, e.cfg.TokenBudget)
	res, err := e.executor.Execute(ctx, qc, domain.GenerationRequest{
		Prompt:      prompt,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		TierHint:    tierHint,
	})
	if err != nil {
		span.SetError(err)
		return Response{}, err
	}

	return Response{
		Answer:      res.Answer,
		Tier:        res.Tier,
		Cached:      res.Cached,
		ChunksFound: len(rr),
	}, nil
}
