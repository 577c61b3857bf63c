package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

// LanguageModel completes a system/user prompt pair.
type LanguageModel interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// CompleteJSON returns an empty map, not an error, when the model
	// output is not a JSON object.
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (map[string]any, error)
}

// Embedder builds fixed-length vectors for chunk and query text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkIndex stores document chunks and runs the three retrieval
// primitives, all scoped to a single document.
type ChunkIndex interface {
	InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error
	DeleteChunks(ctx context.Context, documentID string) error
	SemanticSearch(ctx context.Context, documentID string, queryVector []float32, topK int) ([]domain.SearchResult, error)
	KeywordSearch(ctx context.Context, documentID, queryText string, topK int) ([]domain.SearchResult, error)
	SectionSearch(ctx context.Context, documentID string, queryVector []float32, sections []domain.SectionType, topK int) ([]domain.SearchResult, error)
}

// CatalogStore reads and writes structured catalog policies.
type CatalogStore interface {
	ListPolicies(ctx context.Context) ([]domain.PolicyRecord, error)
	GetPolicy(ctx context.Context, id string) (*domain.PolicyRecord, error)
	UpsertPolicy(ctx context.Context, policy domain.PolicyRecord) error
}

// UploadedPolicyStore persists uploaded wording metadata and state.
type UploadedPolicyStore interface {
	Create(ctx context.Context, doc *domain.UploadedPolicy) error
	GetByID(ctx context.Context, id string) (*domain.UploadedPolicy, error)
	FindByFilename(ctx context.Context, filename string) (*domain.UploadedPolicy, error)
	FindReadyByInsurer(ctx context.Context, insurer string) (*domain.UploadedPolicy, error)
	List(ctx context.Context, limit int) ([]domain.UploadedPolicy, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	MarkReady(ctx context.Context, id, label string, chunkCount int) error
	Delete(ctx context.Context, id string) error
}

// SessionStore persists conversation sessions, their context and messages.
type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	// List returns sessions by most recent activity; an empty userID
	// matches every user.
	List(ctx context.Context, userID string, limit int) ([]domain.Session, error)
	// Delete removes a session and its messages.
	Delete(ctx context.Context, id string) error
	// SaveContext stores next only if the stored version still equals
	// next.Version and returns the stored value with the bumped version.
	SaveContext(ctx context.Context, sessionID string, next domain.SessionContext) (domain.SessionContext, error)
	AppendMessage(ctx context.Context, message domain.Message) error
	ListMessages(ctx context.Context, sessionID string, limit int) ([]domain.Message, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentUploaded(ctx context.Context, documentID string) error
	SubscribeDocumentUploaded(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor returns the ordered page texts of a stored document.
type PageExtractor interface {
	PageTexts(ctx context.Context, doc *domain.UploadedPolicy) ([]domain.PageText, error)
}

// ReportParser reads page texts from raw PDF bytes that were never stored,
// such as a medical report supplied for condition extraction.
type ReportParser interface {
	ParseReport(raw []byte) ([]domain.PageText, error)
}

// DocumentChunker splits page texts into section-tagged chunks.
type DocumentChunker interface {
	Chunk(pages []domain.PageText) []domain.Chunk
}

// Telemetry records engine-level observations.
type Telemetry interface {
	ObserveRetrieval(pass string, results int, duration time.Duration)
	RecordKeywordDegraded()
	RecordVerdict(verdict domain.CoverageVerdict)
	RecordTurn(mode domain.TurnMode)
}

type NoopTelemetry struct{}

func (NoopTelemetry) ObserveRetrieval(string, int, time.Duration) {}
func (NoopTelemetry) RecordKeywordDegraded()                      {}
func (NoopTelemetry) RecordVerdict(domain.CoverageVerdict)        {}
func (NoopTelemetry) RecordTurn(domain.TurnMode)                  {}
