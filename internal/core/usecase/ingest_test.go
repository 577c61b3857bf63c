package usecase

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const samplePDF = "%PDF-1.7\nfake body"

type processorFake struct {
	processed []string
	failFor   map[string]bool
	docs      *uploadedStoreFake
}

func (f *processorFake) ProcessByID(ctx context.Context, documentID string) error {
	f.processed = append(f.processed, documentID)
	if f.failFor[documentID] {
		return errors.New("embedding backend unavailable")
	}
	return f.docs.MarkReady(ctx, documentID, "label", 1)
}

func TestIngestUploadSuccess(t *testing.T) {
	docs := newUploadedStoreFake()
	storage := &storageFake{}
	queue := &queueFake{}
	uc := NewIngestPolicyUseCase(docs, storage, queue, nil)

	doc, err := uc.Upload(context.Background(), "star comprehensive.pdf", "Star Health", bytes.NewBufferString(samplePDF))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID == "" || doc.Status != domain.StatusUploaded || doc.Insurer != "Star Health" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected queued doc id %s, got %v", doc.ID, queue.published)
	}
	if !strings.HasSuffix(doc.StoragePath, "_star_comprehensive.pdf") {
		t.Fatalf("expected sanitized key suffix, got %s", doc.StoragePath)
	}
	if storage.objects[doc.StoragePath] != samplePDF {
		t.Fatalf("stored body must include the peeked header, got %q", storage.objects[doc.StoragePath])
	}
}

func TestIngestUploadDeduplicatesByFilename(t *testing.T) {
	docs := newUploadedStoreFake(domain.UploadedPolicy{ID: "existing", Filename: "optima.pdf", Status: domain.StatusReady})
	queue := &queueFake{}
	uc := NewIngestPolicyUseCase(docs, &storageFake{}, queue, nil)

	doc, err := uc.Upload(context.Background(), "optima.pdf", "HDFC ERGO", bytes.NewBufferString(samplePDF))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if doc.ID != "existing" || len(queue.published) != 0 {
		t.Fatalf("expected existing record without a new event, got %+v / %v", doc, queue.published)
	}
}

func TestIngestUploadRequeuesUnfinishedDocument(t *testing.T) {
	for _, status := range []domain.DocumentStatus{domain.StatusFailed, domain.StatusUploaded} {
		t.Run(string(status), func(t *testing.T) {
			docs := newUploadedStoreFake(domain.UploadedPolicy{
				ID: "old", Filename: "optima.pdf", Status: status, Error: "embed batch 0-100: timeout", StoragePath: "old_optima.pdf",
			})
			storage := &storageFake{}
			queue := &queueFake{}
			uc := NewIngestPolicyUseCase(docs, storage, queue, nil)

			doc, err := uc.Upload(context.Background(), "optima.pdf", "HDFC ERGO", bytes.NewBufferString(samplePDF))
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if doc.ID != "old" || doc.Status != domain.StatusUploaded || doc.Error != "" {
				t.Fatalf("expected existing record reset to uploaded, got %+v", doc)
			}
			if len(queue.published) != 1 || queue.published[0] != "old" {
				t.Fatalf("expected the existing id to be queued again, got %v", queue.published)
			}
			stored, _ := docs.GetByID(context.Background(), "old")
			if stored.Status != domain.StatusUploaded {
				t.Fatalf("expected stored status uploaded, got %s", stored.Status)
			}
			if len(storage.objects) != 0 {
				t.Fatalf("requeue must not store a second copy, got %v", storage.objects)
			}
		})
	}
}

func TestIngestUploadRequeueKeepsRecordWhenPublishFails(t *testing.T) {
	docs := newUploadedStoreFake(domain.UploadedPolicy{ID: "old", Filename: "optima.pdf", Status: domain.StatusFailed})
	uc := NewIngestPolicyUseCase(docs, &storageFake{}, &queueFake{err: errors.New("queue down")}, nil)

	if _, err := uc.Upload(context.Background(), "optima.pdf", "", bytes.NewBufferString(samplePDF)); err == nil {
		t.Fatal("expected publish error")
	}
	if _, err := docs.GetByID(context.Background(), "old"); err != nil {
		t.Fatalf("existing record must survive a failed requeue: %v", err)
	}
}

func TestIngestUploadRejectsNonPDF(t *testing.T) {
	uc := NewIngestPolicyUseCase(newUploadedStoreFake(), &storageFake{}, &queueFake{}, nil)

	for name, tc := range map[string]struct{ filename, body string }{
		"extension": {filename: "notes.txt", body: samplePDF},
		"magic":     {filename: "fake.pdf", body: "hello world"},
		"empty":     {filename: "empty.pdf", body: ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Upload(context.Background(), tc.filename, "x", strings.NewReader(tc.body))
			if !domain.IsKind(err, domain.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	docs := newUploadedStoreFake()
	storage := &storageFake{}
	uc := NewIngestPolicyUseCase(docs, storage, &queueFake{err: errors.New("queue down")}, nil)

	_, err := uc.Upload(context.Background(), "report.pdf", "", bytes.NewBufferString(samplePDF))
	if err == nil || !strings.Contains(err.Error(), "publish upload event") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(docs.docs) != 0 || len(storage.objects) != 0 {
		t.Fatalf("expected upload to be rolled back, got docs=%v objects=%v", docs.docs, storage.objects)
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, body string) {
		t.Helper()
		path := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("star_health/comprehensive.pdf", samplePDF)
	write("hdfc_ergo/optima.pdf", samplePDF)
	write("hdfc_ergo/readme.txt", "ignored")
	write("care/broken.pdf", "not a pdf")

	docs := newUploadedStoreFake(domain.UploadedPolicy{ID: "done", Filename: "optima.pdf", Status: domain.StatusReady})
	processor := &processorFake{docs: docs}
	uc := NewIngestPolicyUseCase(docs, &storageFake{}, &queueFake{}, processor)

	report, err := uc.IngestDirectory(context.Background(), dir)
	if err != nil {
		t.Fatalf("IngestDirectory() error = %v", err)
	}
	if report.Embedded != 1 || report.Skipped != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(processor.processed) != 1 {
		t.Fatalf("expected one synchronous processing call, got %v", processor.processed)
	}
	stored, err := docs.GetByID(context.Background(), processor.processed[0])
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Insurer != "star_health" || stored.Filename != "comprehensive.pdf" {
		t.Fatalf("insurer should come from the parent directory, got %+v", stored)
	}
}
