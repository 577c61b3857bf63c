package usecase

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/core/ports"
)

var pdfMagic = []byte("%PDF-")

const unknownInsurer = "unknown"

type IngestPolicyUseCase struct {
	documents ports.UploadedPolicyStore
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	processor ports.DocumentProcessor
}

func NewIngestPolicyUseCase(
	documents ports.UploadedPolicyStore,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	processor ports.DocumentProcessor,
) *IngestPolicyUseCase {
	return &IngestPolicyUseCase{
		documents: documents,
		storage:   storage,
		queue:     queue,
		processor: processor,
	}
}

// Upload stores a policy wording and queues it for processing. A filename
// that is already ready returns the existing record unchanged; one that
// never became ready is reset to uploaded and queued again. When the event
// for a new upload cannot be published the upload is rolled back so a
// retry with the same filename starts over.
func (uc *IngestPolicyUseCase) Upload(ctx context.Context, filename, insurer string, body io.Reader) (*domain.UploadedPolicy, error) {
	doc, created, err := uc.store(ctx, filename, insurer, body)
	if err != nil {
		return nil, err
	}
	if !created {
		if doc.Status == domain.StatusReady {
			return doc, nil
		}
		return uc.requeue(ctx, doc)
	}
	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		uc.rollback(ctx, doc)
		return nil, fmt.Errorf("publish upload event: %w", err)
	}
	return doc, nil
}

func (uc *IngestPolicyUseCase) requeue(ctx context.Context, doc *domain.UploadedPolicy) (*domain.UploadedPolicy, error) {
	slog.Info("upload_requeued", "document_id", doc.ID, "previous_status", doc.Status)
	if err := uc.documents.UpdateStatus(ctx, doc.ID, domain.StatusUploaded, ""); err != nil {
		return nil, fmt.Errorf("reset status=uploaded: %w", err)
	}
	if err := uc.queue.PublishDocumentUploaded(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish upload event: %w", err)
	}
	doc.Status = domain.StatusUploaded
	doc.Error = ""
	return doc, nil
}

func (uc *IngestPolicyUseCase) rollback(ctx context.Context, doc *domain.UploadedPolicy) {
	if err := uc.documents.Delete(ctx, doc.ID); err != nil {
		slog.Warn("upload_rollback_failed", "document_id", doc.ID, "error", err)
	}
	if err := uc.storage.Delete(ctx, doc.StoragePath); err != nil {
		slog.Warn("storage_cleanup_failed", "key", doc.StoragePath, "error", err)
	}
}

// IngestDirectory embeds every PDF under dir synchronously. The insurer
// is the name of the directory holding the file. Files already ready in
// the store are skipped; one failing file does not stop the run.
func (uc *IngestPolicyUseCase) IngestDirectory(ctx context.Context, dir string) (domain.IngestReport, error) {
	report := domain.IngestReport{}
	if uc.processor == nil {
		return report, errors.New("ingest directory: no document processor configured")
	}

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("walk %s: %w", dir, err)
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		filename := filepath.Base(path)
		insurer := filepath.Base(filepath.Dir(path))

		existing, err := uc.findByFilename(ctx, filename)
		if err != nil {
			return report, fmt.Errorf("lookup %s: %w", filename, err)
		}
		if existing != nil && existing.Status == domain.StatusReady {
			slog.Info("ingest_skip", "filename", filename, "document_id", existing.ID)
			report.Skipped++
			continue
		}

		if err := uc.ingestFile(ctx, path, filename, insurer, existing); err != nil {
			slog.Warn("ingest_failed", "filename", filename, "error", err)
			report.Failed++
			report.Failures = append(report.Failures, fmt.Sprintf("%s: %v", filename, err))
			continue
		}
		slog.Info("ingest_embedded", "filename", filename, "insurer", insurer)
		report.Embedded++
	}
	return report, nil
}

func (uc *IngestPolicyUseCase) ingestFile(ctx context.Context, path, filename, insurer string, existing *domain.UploadedPolicy) error {
	doc := existing
	if doc == nil {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open: %w", err)
		}
		defer f.Close()

		doc, _, err = uc.store(ctx, filename, insurer, f)
		if err != nil {
			return err
		}
	}
	return uc.processor.ProcessByID(ctx, doc.ID)
}

func (uc *IngestPolicyUseCase) store(ctx context.Context, filename, insurer string, body io.Reader) (*domain.UploadedPolicy, bool, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return nil, false, domain.WrapError(domain.ErrInvalidInput, "upload policy", fmt.Errorf("only PDF files are supported: %q", filename))
	}

	reader := bufio.NewReader(body)
	head, err := reader.Peek(len(pdfMagic))
	if err != nil || !bytes.Equal(head, pdfMagic) {
		return nil, false, domain.WrapError(domain.ErrInvalidInput, "upload policy", fmt.Errorf("%q is not a PDF document", filename))
	}

	existing, err := uc.findByFilename(ctx, filename)
	if err != nil {
		return nil, false, fmt.Errorf("lookup filename: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	insurer = strings.TrimSpace(insurer)
	if insurer == "" {
		insurer = unknownInsurer
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, reader); err != nil {
		return nil, false, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.UploadedPolicy{
		ID:          id,
		Filename:    filename,
		Insurer:     insurer,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.documents.Create(ctx, doc); err != nil {
		if delErr := uc.storage.Delete(ctx, storageKey); delErr != nil {
			slog.Warn("storage_cleanup_failed", "key", storageKey, "error", delErr)
		}
		return nil, false, fmt.Errorf("create policy metadata: %w", err)
	}
	return doc, true, nil
}

// findByFilename returns nil for a filename that was never uploaded.
func (uc *IngestPolicyUseCase) findByFilename(ctx context.Context, filename string) (*domain.UploadedPolicy, error) {
	doc, err := uc.documents.FindByFilename(ctx, filename)
	if domain.IsKind(err, domain.ErrDocumentNotFound) {
		return nil, nil
	}
	return doc, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "policy.pdf"
	}
	return base
}
