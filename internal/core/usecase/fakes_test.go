package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
)

type llmCall struct {
	system string
	user   string
}

type llmFake struct {
	mu        sync.Mutex
	jsonBySys map[string]map[string]any
	textBySys map[string]string
	jsonErr   error
	calls     []llmCall
}

func (f *llmFake) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, llmCall{system: system, user: user})
	return f.textBySys[system], nil
}

func (f *llmFake) CompleteJSON(_ context.Context, system, user string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, llmCall{system: system, user: user})
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	if out, ok := f.jsonBySys[system]; ok {
		return out, nil
	}
	return map[string]any{}, nil
}

func (f *llmFake) callsFor(system string) []llmCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []llmCall
	for _, c := range f.calls {
		if c.system == system {
			out = append(out, c)
		}
	}
	return out
}

type embedderFake struct {
	mu         sync.Mutex
	err        error
	failBatch  int
	batchCalls int
}

func (f *embedderFake) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *embedderFake) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.batchCalls++
	call := f.batchCalls
	f.mu.Unlock()
	if f.err != nil || (f.failBatch > 0 && call == f.failBatch) {
		return nil, errors.New("embedding backend unavailable")
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		out = append(out, []float32{float32(len(t)), 1})
	}
	return out, nil
}

type chunkIndexFake struct {
	mu         sync.Mutex
	semantic   []domain.SearchResult
	keyword    []domain.SearchResult
	bySection  map[domain.SectionType][]domain.SearchResult
	keywordErr error
	searchErr  error
	insertErr  error

	inserted       map[string][]domain.Chunk
	deleted        []string
	sectionQueries [][]domain.SectionType
	searchedDocs   []string
}

func (f *chunkIndexFake) InsertChunks(_ context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	if len(chunks) != len(vectors) {
		return errors.New("chunks/vectors mismatch")
	}
	if f.inserted == nil {
		f.inserted = map[string][]domain.Chunk{}
	}
	f.inserted[documentID] = append(f.inserted[documentID], chunks...)
	return nil
}

func (f *chunkIndexFake) DeleteChunks(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, documentID)
	delete(f.inserted, documentID)
	return nil
}

func (f *chunkIndexFake) SemanticSearch(_ context.Context, documentID string, _ []float32, topK int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchedDocs = append(f.searchedDocs, documentID)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return trimResults(f.semantic, topK), nil
}

func (f *chunkIndexFake) KeywordSearch(_ context.Context, _ string, _ string, topK int) ([]domain.SearchResult, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return trimResults(f.keyword, topK), nil
}

func (f *chunkIndexFake) SectionSearch(_ context.Context, _ string, _ []float32, sections []domain.SectionType, topK int) ([]domain.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sectionQueries = append(f.sectionQueries, sections)
	var out []domain.SearchResult
	for _, s := range sections {
		out = append(out, f.bySection[s]...)
	}
	return trimResults(out, topK), nil
}

type uploadedStoreFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.UploadedPolicy
	statusCalls []domain.DocumentStatus
	readyLabel  string
	readyCount  int
}

func newUploadedStoreFake(docs ...domain.UploadedPolicy) *uploadedStoreFake {
	f := &uploadedStoreFake{docs: map[string]*domain.UploadedPolicy{}}
	for i := range docs {
		d := docs[i]
		f.docs[d.ID] = &d
	}
	return f
}

func (f *uploadedStoreFake) Create(_ context.Context, doc *domain.UploadedPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *uploadedStoreFake) GetByID(_ context.Context, id string) (*domain.UploadedPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get uploaded policy", errors.New(id))
	}
	copyDoc := *d
	return &copyDoc, nil
}

func (f *uploadedStoreFake) FindByFilename(_ context.Context, filename string) (*domain.UploadedPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.Filename == filename {
			copyDoc := *d
			return &copyDoc, nil
		}
	}
	return nil, domain.WrapError(domain.ErrDocumentNotFound, "find uploaded policy by filename", errors.New(filename))
}

// FindReadyByInsurer mirrors the postgres query: InsurerMatches on ready
// documents, most recently updated first.
func (f *uploadedStoreFake) FindReadyByInsurer(_ context.Context, insurer string) (*domain.UploadedPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *domain.UploadedPolicy
	for _, d := range f.docs {
		if d.Status != domain.StatusReady || !domain.InsurerMatches(d.Insurer, insurer) {
			continue
		}
		if best == nil || d.UpdatedAt.After(best.UpdatedAt) {
			best = d
		}
	}
	if best == nil {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "find ready policy by insurer", errors.New(insurer))
	}
	copyDoc := *best
	return &copyDoc, nil
}

func (f *uploadedStoreFake) List(context.Context, int) ([]domain.UploadedPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.UploadedPolicy, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, *d)
	}
	return out, nil
}

func (f *uploadedStoreFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, status)
	d, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", errors.New(id))
	}
	d.Status = status
	d.Error = errMessage
	return nil
}

func (f *uploadedStoreFake) MarkReady(_ context.Context, id, label string, chunkCount int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, domain.StatusReady)
	f.readyLabel = label
	f.readyCount = chunkCount
	if d, ok := f.docs[id]; ok {
		d.Status = domain.StatusReady
		d.Label = label
		d.ChunkCount = chunkCount
	}
	return nil
}

func (f *uploadedStoreFake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, id)
	return nil
}

type catalogFake struct {
	policies []domain.PolicyRecord
	err      error
}

func (f *catalogFake) ListPolicies(context.Context) ([]domain.PolicyRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.policies, nil
}

func (f *catalogFake) GetPolicy(_ context.Context, id string) (*domain.PolicyRecord, error) {
	for i := range f.policies {
		if f.policies[i].ID == id {
			p := f.policies[i]
			return &p, nil
		}
	}
	return nil, domain.WrapError(domain.ErrPolicyNotFound, "get policy", errors.New(id))
}

func (f *catalogFake) UpsertPolicy(_ context.Context, policy domain.PolicyRecord) error {
	f.policies = append(f.policies, policy)
	return nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return io.NopCloser(strings.NewReader(f.objects[key])), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentUploaded(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentUploaded(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
