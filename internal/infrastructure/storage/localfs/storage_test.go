package localfs

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

func TestSaveOpenDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "doc-1_star.pdf", strings.NewReader("%PDF-1.7 body")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := s.Open(ctx, "doc-1_star.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	raw, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(raw) != "%PDF-1.7 body" {
		t.Fatalf("content = %q", raw)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}

	if err := s.Delete(ctx, "doc-1_star.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "doc-1_star.pdf"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	if _, err := s.Open(ctx, "doc-1_star.pdf"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestRejectsPathTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"", "../escape.pdf", "nested/a.pdf", ".hidden"} {
		if err := s.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Errorf("Save(%q) error = %v, want ErrInvalidInput", key, err)
		}
	}
}
