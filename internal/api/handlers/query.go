package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/akaclinicalco/jtskb/internal/api"
	"github.com/akaclinicalco/jtskb/internal/domain"
	"github.com/akaclinicalco/jtskb/internal/engine"
	"github.com/akaclinicalco/jtskb/internal/store"
)

// QueryEngine answers questions through the retrieval pipeline.
type QueryEngine interface {
	Answer(ctx context.Context, qc domain.QueryContext, tierHint string) (engine.Response, error)
}

// Retriever resolves a query to ranked passages without generation.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, minScore float32) (domain.RetrievalResult, error)
}

// Rebuilder triggers an unconditional index rebuild.
type Rebuilder interface {
	Force(ctx context.Context) (*store.Report, error)
}

type QueryHandler struct {
	engine    QueryEngine
	retriever Retriever
	rebuilder Rebuilder
	handle    *store.Handle
	building  func() bool

	defaultK        int
	defaultMinScore float32
}

// NewQueryHandler creates the handler backing the query, search, build, and
// status endpoints. building reports whether a build currently holds the
// writer lock.
func NewQueryHandler(eng QueryEngine, ret Retriever, rebuilder Rebuilder, handle *store.Handle, building func() bool, defaultK int, defaultMinScore float32) *QueryHandler {
	return &QueryHandler{
		engine:          eng,
		retriever:       ret,
		rebuilder:       rebuilder,
		handle:          handle,
		building:        building,
		defaultK:        defaultK,
		defaultMinScore: defaultMinScore,
	}
}

type ExchangeRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type QueryRequest struct {
	Query            string            `json:"query"`
	StructuredFields map[string]string `json:"structured_fields,omitempty"`
	History          []ExchangeRequest `json:"history,omitempty"`
	TierHint         string            `json:"tier_hint,omitempty"`
}

type QueryResponse struct {
	AnswerText  string `json:"answer_text"`
	Tier        string `json:"tier"`
	Cached      bool   `json:"cached"`
	ChunksFound int    `json:"chunks_found"`
}

func (h *QueryHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	qc := domain.QueryContext{
		RawQuery:         req.Query,
		StructuredFields: req.StructuredFields,
	}
	for _, ex := range req.History {
		qc.History = append(qc.History, domain.Exchange{Question: ex.Question, Answer: ex.Answer})
	}

	resp, err := h.engine.Answer(r.Context(), qc, req.TierHint)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, QueryResponse{
		AnswerText:  resp.Answer,
		Tier:        resp.Tier,
		Cached:      resp.Cached,
		ChunksFound: resp.ChunksFound,
	})
}

type SearchRequest struct {
	Query    string  `json:"query"`
	K        int     `json:"k,omitempty"`
	MinScore float32 `json:"min_score,omitempty"`
}

type SearchResultResponse struct {
	ID             string  `json:"id"`
	SourceDocument string  `json:"source_document"`
	Text           string  `json:"text"`
	Score          float32 `json:"score"`
}

type SearchResponse struct {
	Results []SearchResultResponse `json:"results"`
}

// Search exposes raw retrieval without generation, mainly for corpus
// inspection and relevance tuning.
func (h *QueryHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	k := req.K
	if k <= 0 {
		k = h.defaultK
	}
	minScore := req.MinScore
	if minScore == 0 {
		minScore = h.defaultMinScore
	}

	rr, err := h.retriever.Retrieve(r.Context(), req.Query, k, minScore)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := SearchResponse{Results: make([]SearchResultResponse, 0, len(rr))}
	for _, sp := range rr {
		out.Results = append(out.Results, SearchResultResponse{
			ID:             sp.Passage.ID,
			SourceDocument: sp.Passage.SourceDocument,
			Text:           sp.Passage.Text,
			Score:          sp.Score,
		})
	}
	api.Success(w, http.StatusOK, out)
}

type SkippedDocumentResponse struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BuildResponse struct {
	BuildID   string                    `json:"build_id"`
	Documents int                       `json:"documents"`
	Passages  int                       `json:"passages"`
	Skipped   []SkippedDocumentResponse `json:"skipped,omitempty"`
	ElapsedMS int64                     `json:"elapsed_ms"`
}

// Build triggers a synchronous index rebuild. A concurrent build is
// rejected with 409.
func (h *QueryHandler) Build(w http.ResponseWriter, r *http.Request) {
	report, err := h.rebuilder.Force(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := BuildResponse{
		BuildID:   report.BuildID,
		Documents: report.Documents,
		Passages:  report.Passages,
		ElapsedMS: report.Elapsed.Milliseconds(),
	}
	for _, s := range report.Skipped {
		resp.Skipped = append(resp.Skipped, SkippedDocumentResponse{ID: s.ID, Reason: s.Reason})
	}
	api.Success(w, http.StatusOK, resp)
}

type StatusResponse struct {
	Ready       bool   `json:"ready"`
	Building    bool   `json:"building"`
	BuildID     string `json:"build_id,omitempty"`
	Passages    int    `json:"passages,omitempty"`
	Dimensions  int    `json:"dimensions,omitempty"`
	BuiltAt     string `json:"built_at,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Status reports whether a store is loaded and what build it came from.
func (h *QueryHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Building: h.building()}

	if s := h.handle.Current(); s != nil {
		resp.Ready = true
		resp.BuildID = s.BuildID()
		resp.Passages = s.Len()
		resp.Dimensions = s.Dimensions()
		resp.BuiltAt = s.BuiltAt().UTC().Format(time.RFC3339)
		resp.Fingerprint = s.Fingerprint()
	}
	api.Success(w, http.StatusOK, resp)
}
