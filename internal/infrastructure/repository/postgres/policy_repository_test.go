package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		_ = db.Close()
	})
	return db, mock
}

var uploadedPolicyRowColumns = []string{
	"id", "filename", "insurer", "label", "storage_path", "status", "chunk_count", "error_message", "created_at", "updated_at",
}

func TestUploadedPolicyGetByIDReturnsDomainNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)

	mock.ExpectQuery("SELECT id, filename, insurer").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUploadedPolicyFindReadyByInsurerScansRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`regexp_replace\(lower\(insurer\), '\[\^a-z0-9\]\+', '', 'g'\) AS insurer_key.*insurer_key LIKE \$1 \|\| '%' OR \$1 LIKE insurer_key \|\| '%'`).
		WithArgs("starhealth", "ready").
		WillReturnRows(sqlmock.NewRows(uploadedPolicyRowColumns).
			AddRow("doc-1", "star.pdf", "star_health", "Star Comprehensive", "doc-1_star.pdf", "ready", 42, "", now, now))

	doc, err := repo.FindReadyByInsurer(context.Background(), "Star Health")
	if err != nil {
		t.Fatalf("FindReadyByInsurer() error = %v", err)
	}
	if doc.ID != "doc-1" || doc.Status != domain.StatusReady || doc.ChunkCount != 42 || doc.Label != "Star Comprehensive" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestUploadedPolicyFindReadyByInsurerMissIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)

	mock.ExpectQuery("FROM uploaded_policies").
		WithArgs("careinsurance", "ready").
		WillReturnRows(sqlmock.NewRows(uploadedPolicyRowColumns))

	if _, err := repo.FindReadyByInsurer(context.Background(), "Care Insurance"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUploadedPolicyFindReadyByInsurerSkipsQueryForBlankKey(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)

	if _, err := repo.FindReadyByInsurer(context.Background(), " - "); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUploadedPolicyUpdateStatusReturnsNotFoundWhenNoRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)

	mock.ExpectExec("UPDATE uploaded_policies").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestUploadedPolicyMarkReadyStoresLabelAndCount(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)

	mock.ExpectExec("UPDATE uploaded_policies").
		WithArgs("doc-1", "ready", "Care Supreme", 17, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkReady(context.Background(), "doc-1", "Care Supreme", 17); err != nil {
		t.Fatalf("MarkReady() error = %v", err)
	}
}

func TestUploadedPolicyListDefaultsLimit(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUploadedPolicyRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(100).
		WillReturnRows(sqlmock.NewRows(uploadedPolicyRowColumns).
			AddRow("a", "a.pdf", "HDFC Ergo", "", "a_a.pdf", "uploaded", 0, "", now, now).
			AddRow("b", "b.pdf", "Niva Bupa", "", "b_b.pdf", "failed", 0, "no text", now, now))

	docs, err := repo.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[1].Error != "no text" || docs[1].Status != domain.StatusFailed {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}
