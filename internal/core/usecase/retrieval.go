package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

type RetrievalOptions struct {
	Candidates  int
	FusedTopK   int
	SectionTopK int
	RRFK        int
}

func (o RetrievalOptions) normalize() RetrievalOptions {
	if o.Candidates <= 0 {
		o.Candidates = 8
	}
	if o.FusedTopK <= 0 {
		o.FusedTopK = 5
	}
	if o.SectionTopK <= 0 {
		o.SectionTopK = 3
	}
	if o.RRFK <= 0 {
		o.RRFK = defaultRRFK
	}
	return o
}

// Evidence is the output of the three retrieval passes for one question.
type Evidence struct {
	Direct      []domain.SearchResult
	Definitions []domain.SearchResult
	Risks       []domain.SearchResult
}

func (e Evidence) Empty() bool {
	return len(e.Direct) == 0 && len(e.Definitions) == 0 && len(e.Risks) == 0
}

// HybridRetriever runs semantic, keyword and section-restricted searches
// against one document's chunks.
type HybridRetriever struct {
	index     ports.ChunkIndex
	telemetry ports.Telemetry
	opts      RetrievalOptions
}

func NewHybridRetriever(index ports.ChunkIndex, telemetry ports.Telemetry, opts RetrievalOptions) *HybridRetriever {
	if telemetry == nil {
		telemetry = ports.NoopTelemetry{}
	}
	return &HybridRetriever{
		index:     index,
		telemetry: telemetry,
		opts:      opts.normalize(),
	}
}

func (r *HybridRetriever) Semantic(ctx context.Context, documentID string, queryVector []float32, topK int) ([]domain.SearchResult, error) {
	started := time.Now()
	out, err := r.index.SemanticSearch(ctx, documentID, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	r.telemetry.ObserveRetrieval("semantic", len(out), time.Since(started))
	return out, nil
}

// Keyword never fails: store errors degrade to an empty result.
func (r *HybridRetriever) Keyword(ctx context.Context, documentID, queryText string, topK int) []domain.SearchResult {
	if strings.TrimSpace(queryText) == "" {
		return []domain.SearchResult{}
	}
	started := time.Now()
	out, err := r.index.KeywordSearch(ctx, documentID, queryText, topK)
	if err != nil {
		slog.Warn("keyword_search_degraded", "document_id", documentID, "error", err)
		r.telemetry.RecordKeywordDegraded()
		return []domain.SearchResult{}
	}
	r.telemetry.ObserveRetrieval("keyword", len(out), time.Since(started))
	return out
}

func (r *HybridRetriever) SectionRestricted(
	ctx context.Context,
	documentID string,
	queryVector []float32,
	sections []domain.SectionType,
	topK int,
) ([]domain.SearchResult, error) {
	started := time.Now()
	out, err := r.index.SectionSearch(ctx, documentID, queryVector, sections, topK)
	if err != nil {
		return nil, fmt.Errorf("section search %v: %w", sections, err)
	}
	r.telemetry.ObserveRetrieval("section", len(out), time.Since(started))
	return out, nil
}

// Fused runs the semantic and keyword passes concurrently and merges them.
func (r *HybridRetriever) Fused(ctx context.Context, documentID, question string, queryVector []float32, topK int) ([]domain.SearchResult, error) {
	var semantic, keyword []domain.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semantic, err = r.Semantic(gctx, documentID, queryVector, r.opts.Candidates)
		return err
	})
	g.Go(func() error {
		keyword = r.Keyword(gctx, documentID, question, r.opts.Candidates)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return FuseRRF(semantic, keyword, r.opts.RRFK, topK), nil
}

// Gather runs the direct-answer, definitions and risk passes. The passes
// are independent and run concurrently.
func (r *HybridRetriever) Gather(ctx context.Context, documentID, question string, queryVector []float32) (Evidence, error) {
	var ev Evidence
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ev.Direct, err = r.Fused(gctx, documentID, question, queryVector, r.opts.FusedTopK)
		return err
	})
	g.Go(func() error {
		var err error
		ev.Definitions, err = r.SectionRestricted(gctx, documentID, queryVector, []domain.SectionType{domain.SectionDefinitions}, r.opts.SectionTopK)
		return err
	})
	g.Go(func() error {
		var err error
		ev.Risks, err = r.SectionRestricted(gctx, documentID, queryVector, domain.RiskSections, r.opts.SectionTopK)
		return err
	})
	if err := g.Wait(); err != nil {
		return Evidence{}, err
	}
	return ev, nil
}
