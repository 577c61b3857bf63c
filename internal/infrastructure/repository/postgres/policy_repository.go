package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const uploadedPolicyColumns = `id, filename, insurer, label, storage_path, status, chunk_count, error_message, created_at, updated_at`

// UploadedPolicyRepository stores metadata of uploaded policy wordings.
type UploadedPolicyRepository struct {
	db *sql.DB
}

func NewUploadedPolicyRepository(db *sql.DB) *UploadedPolicyRepository {
	return &UploadedPolicyRepository{db: db}
}

func (r *UploadedPolicyRepository) Create(ctx context.Context, doc *domain.UploadedPolicy) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO uploaded_policies (`+uploadedPolicyColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		doc.ID, doc.Filename, doc.Insurer, doc.Label, doc.StoragePath, string(doc.Status),
		doc.ChunkCount, doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert uploaded policy: %w", err)
	}
	return nil
}

func (r *UploadedPolicyRepository) GetByID(ctx context.Context, id string) (*domain.UploadedPolicy, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+uploadedPolicyColumns+` FROM uploaded_policies WHERE id = $1`, id)
	doc, err := scanUploadedPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapNotFound(domain.ErrDocumentNotFound, "get uploaded policy", id)
	}
	return doc, err
}

func (r *UploadedPolicyRepository) FindByFilename(ctx context.Context, filename string) (*domain.UploadedPolicy, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+uploadedPolicyColumns+` FROM uploaded_policies WHERE filename = $1`, filename)
	doc, err := scanUploadedPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapNotFound(domain.ErrDocumentNotFound, "find uploaded policy by filename", filename)
	}
	return doc, err
}

// FindReadyByInsurer returns the most recently updated ready wording of an
// insurer. Names are compared by domain.InsurerKey, either key being a
// prefix of the other.
func (r *UploadedPolicyRepository) FindReadyByInsurer(ctx context.Context, insurer string) (*domain.UploadedPolicy, error) {
	key := domain.InsurerKey(insurer)
	if key == "" {
		return nil, wrapNotFound(domain.ErrDocumentNotFound, "find ready policy by insurer", insurer)
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+uploadedPolicyColumns+`
FROM (
	SELECT `+uploadedPolicyColumns+`, regexp_replace(lower(insurer), '[^a-z0-9]+', '', 'g') AS insurer_key
	FROM uploaded_policies
	WHERE status = $2
) p
WHERE insurer_key <> '' AND (insurer_key LIKE $1 || '%' OR $1 LIKE insurer_key || '%')
ORDER BY updated_at DESC
LIMIT 1
`, key, string(domain.StatusReady))
	doc, err := scanUploadedPolicy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapNotFound(domain.ErrDocumentNotFound, "find ready policy by insurer", insurer)
	}
	return doc, err
}

func (r *UploadedPolicyRepository) List(ctx context.Context, limit int) ([]domain.UploadedPolicy, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+uploadedPolicyColumns+`
FROM uploaded_policies
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploaded policies: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UploadedPolicy, 0, limit)
	for rows.Next() {
		doc, err := scanUploadedPolicy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploaded policies: %w", err)
	}
	return out, nil
}

func (r *UploadedPolicyRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE uploaded_policies
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update uploaded policy status: %w", err)
	}
	return ensureAffected(res, domain.ErrDocumentNotFound, "update uploaded policy status", id)
}

func (r *UploadedPolicyRepository) MarkReady(ctx context.Context, id, label string, chunkCount int) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE uploaded_policies
SET status = $2, label = $3, chunk_count = $4, error_message = '', updated_at = $5
WHERE id = $1
`, id, string(domain.StatusReady), label, chunkCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark uploaded policy ready: %w", err)
	}
	return ensureAffected(res, domain.ErrDocumentNotFound, "mark uploaded policy ready", id)
}

func (r *UploadedPolicyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploaded_policies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete uploaded policy: %w", err)
	}
	return ensureAffected(res, domain.ErrDocumentNotFound, "delete uploaded policy", id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUploadedPolicy(row rowScanner) (*domain.UploadedPolicy, error) {
	var doc domain.UploadedPolicy
	var status string
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.Insurer, &doc.Label, &doc.StoragePath, &status,
		&doc.ChunkCount, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan uploaded policy: %w", err)
	}
	doc.Status = domain.DocumentStatus(status)
	return &doc, nil
}
