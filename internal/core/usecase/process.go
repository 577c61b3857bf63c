package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

const (
	defaultEmbedBatchSize = 100
	policyNameScanLines   = 15
	policyNameMinLen      = 10
	policyNameMaxLen      = 100
)

var policyNameKeywords = []string{"policy", "insurance", "medicare", "health", "care", "assure"}

type ProcessPolicyUseCase struct {
	documents      ports.UploadedPolicyStore
	extractor      ports.PageExtractor
	chunker        ports.DocumentChunker
	embedder       ports.Embedder
	index          ports.ChunkIndex
	embedBatchSize int
}

func NewProcessPolicyUseCase(
	documents ports.UploadedPolicyStore,
	extractor ports.PageExtractor,
	chunker ports.DocumentChunker,
	embedder ports.Embedder,
	index ports.ChunkIndex,
	embedBatchSize int,
) *ProcessPolicyUseCase {
	if embedBatchSize <= 0 {
		embedBatchSize = defaultEmbedBatchSize
	}
	return &ProcessPolicyUseCase{
		documents:      documents,
		extractor:      extractor,
		chunker:        chunker,
		embedder:       embedder,
		index:          index,
		embedBatchSize: embedBatchSize,
	}
}

// ProcessByID chunks, embeds and indexes one uploaded wording. Either all
// of its chunks end up in the index or none do.
func (uc *ProcessPolicyUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.documents.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	label, count, indexed, err := uc.processPipeline(ctx, documentID)
	if err == nil {
		if err = uc.documents.MarkReady(ctx, documentID, label, count); err != nil {
			err = fmt.Errorf("set status=ready: %w", err)
		}
	}
	if err == nil {
		return nil
	}

	if indexed {
		if delErr := uc.index.DeleteChunks(ctx, documentID); delErr != nil {
			slog.Warn("chunk_cleanup_failed", "document_id", documentID, "error", delErr)
		}
	}
	if failErr := uc.documents.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
		return fmt.Errorf("%w; mark failed status: %v", err, failErr)
	}
	return err
}

// processPipeline reports indexed=true once chunk insertion was attempted
// so the caller knows cleanup is needed.
func (uc *ProcessPolicyUseCase) processPipeline(ctx context.Context, documentID string) (string, int, bool, error) {
	doc, err := uc.documents.GetByID(ctx, documentID)
	if err != nil {
		return "", 0, false, fmt.Errorf("fetch document by id: %w", err)
	}

	pages, err := uc.extractor.PageTexts(ctx, doc)
	if err != nil {
		return "", 0, false, fmt.Errorf("extract pages: %w", err)
	}

	chunks := uc.chunker.Chunk(pages)
	if len(chunks) == 0 {
		return "", 0, false, domain.WrapError(domain.ErrNothingToProcess, "chunk document", errors.New("no text could be extracted"))
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return "", 0, false, err
	}

	if err := uc.index.InsertChunks(ctx, doc.ID, chunks, vectors); err != nil {
		return "", 0, true, fmt.Errorf("insert chunks: %w", err)
	}

	label := doc.Label
	if strings.TrimSpace(label) == "" {
		label = PolicyNameFromPages(pages)
	}
	return label, len(chunks), true, nil
}

// embed runs fixed-size batches one after another; the first failing
// batch aborts the document.
func (uc *ProcessPolicyUseCase) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += uc.embedBatchSize {
		end := min(start+uc.embedBatchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}

		batch, err := uc.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(batch) != len(texts) {
			return nil, domain.WrapError(
				domain.ErrInvalidInput,
				"embed chunks",
				fmt.Errorf("vectors/chunks mismatch: %d/%d", len(batch), len(texts)),
			)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// PolicyNameFromPages picks a display name from the first page: the first
// of its leading lines that mentions an insurance keyword, else its first
// substantial line.
func PolicyNameFromPages(pages []domain.PageText) string {
	if len(pages) == 0 {
		return "Unknown Policy"
	}
	first := pages[0]
	for _, p := range pages {
		if p.Number == 1 {
			first = p
			break
		}
	}

	var lines []string
	for _, line := range strings.Split(first.Text, "\n") {
		if line = strings.TrimSpace(line); len([]rune(line)) > policyNameMinLen {
			lines = append(lines, line)
		}
	}
	for i, line := range lines {
		if i == policyNameScanLines {
			break
		}
		lowered := strings.ToLower(line)
		for _, kw := range policyNameKeywords {
			if strings.Contains(lowered, kw) && len([]rune(line)) < policyNameMaxLen {
				return line
			}
		}
	}
	if len(lines) > 0 {
		return lines[0]
	}
	return "Unknown Policy"
}
