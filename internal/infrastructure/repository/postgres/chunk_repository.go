package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

const (
	defaultInsertBatchSize = 500
	chunkParamsPerRow      = 7
)

// ChunkRepository is the pgvector/tsvector implementation of the chunk
// index. Every query is scoped to one document.
type ChunkRepository struct {
	db              *sql.DB
	insertBatchSize int
}

func NewChunkRepository(db *sql.DB, insertBatchSize int) *ChunkRepository {
	if insertBatchSize <= 0 {
		insertBatchSize = defaultInsertBatchSize
	}
	return &ChunkRepository{db: db, insertBatchSize: insertBatchSize}
}

// ChunkID is stable for a (document, position) pair so re-ingestion
// overwrites instead of duplicating.
func ChunkID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+"#"+strconv.Itoa(chunkIndex))).String()
}

// InsertChunks writes all chunks in one transaction, in multi-row batches.
func (r *ChunkRepository) InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "insert chunks", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM policy_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("clear previous chunks: %w", err)
	}

	for start := 0; start < len(chunks); start += r.insertBatchSize {
		end := min(start+r.insertBatchSize, len(chunks))
		query, args := buildChunkInsert(documentID, chunks[start:end], vectors[start:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert chunk batch %d-%d: %w", start, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk tx: %w", err)
	}
	return nil
}

func buildChunkInsert(documentID string, chunks []domain.Chunk, vectors [][]float32) (string, []any) {
	var b strings.Builder
	b.WriteString(`INSERT INTO policy_chunks (id, document_id, chunk_index, page_number, section_type, content, embedding) VALUES `)
	args := make([]any, 0, len(chunks)*chunkParamsPerRow)
	for i, c := range chunks {
		if i > 0 {
			b.WriteString(",")
		}
		base := i * chunkParamsPerRow
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d,$%d::vector)", base+1, base+2, base+3, base+4, base+5, base+6, base+7)
		args = append(args,
			ChunkID(documentID, c.ChunkIndex), documentID, c.ChunkIndex, c.PageNumber,
			string(c.SectionType), c.Content, vectorLiteral(vectors[i]),
		)
	}
	return b.String(), args
}

func (r *ChunkRepository) DeleteChunks(ctx context.Context, documentID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM policy_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// SemanticSearch scores by cosine similarity, 1 - cosine distance.
func (r *ChunkRepository) SemanticSearch(ctx context.Context, documentID string, queryVector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, content, page_number, chunk_index, section_type, 1 - (embedding <=> $2::vector) AS score
FROM policy_chunks
WHERE document_id = $1
ORDER BY embedding <=> $2::vector
LIMIT $3
`, documentID, vectorLiteral(queryVector), topK)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	return scanSearchResults(rows, "semantic")
}

// KeywordSearch ranks full-text matches with ts_rank. Chunks without a
// lexical match are not returned.
func (r *ChunkRepository) KeywordSearch(ctx context.Context, documentID, queryText string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 || strings.TrimSpace(queryText) == "" {
		return []domain.SearchResult{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, content, page_number, chunk_index, section_type,
	ts_rank(content_tsv, plainto_tsquery('english', $2)) AS score
FROM policy_chunks
WHERE document_id = $1 AND content_tsv @@ plainto_tsquery('english', $2)
ORDER BY score DESC, chunk_index ASC
LIMIT $3
`, documentID, queryText, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	return scanSearchResults(rows, "keyword")
}

func (r *ChunkRepository) SectionSearch(ctx context.Context, documentID string, queryVector []float32, sections []domain.SectionType, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 || len(sections) == 0 {
		return []domain.SearchResult{}, nil
	}
	names := make([]string, 0, len(sections))
	for _, s := range sections {
		names = append(names, string(s))
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, content, page_number, chunk_index, section_type, 1 - (embedding <=> $2::vector) AS score
FROM policy_chunks
WHERE document_id = $1 AND section_type = ANY(string_to_array($3, ','))
ORDER BY embedding <=> $2::vector
LIMIT $4
`, documentID, vectorLiteral(queryVector), strings.Join(names, ","), topK)
	if err != nil {
		return nil, fmt.Errorf("section search: %w", err)
	}
	return scanSearchResults(rows, "section")
}

func scanSearchResults(rows *sql.Rows, pass string) ([]domain.SearchResult, error) {
	defer rows.Close()

	out := make([]domain.SearchResult, 0)
	for rows.Next() {
		var res domain.SearchResult
		var section string
		if err := rows.Scan(&res.ChunkID, &res.DocumentID, &res.Content, &res.PageNumber, &res.ChunkIndex, &section, &res.Score); err != nil {
			return nil, fmt.Errorf("scan %s result: %w", pass, err)
		}
		res.SectionType = domain.SectionType(section)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s results: %w", pass, err)
	}
	return out, nil
}

// vectorLiteral renders the pgvector text form, e.g. [0.1,0.2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
