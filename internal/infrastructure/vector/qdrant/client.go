package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/resilience"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "lexical"
	upsertBatchSize  = 256
)

// Client implements the chunk index on a Qdrant collection holding a
// named dense vector and a named sparse vector per chunk.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	ensureMu          sync.Mutex
	ensuredVectorSize int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  map[string]any `json:"vector"`
	Payload map[string]any `json:"payload"`
}

func pointID(documentID string, chunkIndex int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(documentID+"#"+strconv.Itoa(chunkIndex))).String()
}

// InsertChunks replaces the document's points. A failed batch removes
// whatever was written so the document is never partially indexed.
func (c *Client) InsertChunks(ctx context.Context, documentID string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant insert chunks", fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors)))
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}
	if err := c.DeleteChunks(ctx, documentID); err != nil {
		return err
	}

	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(chunks))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			ch := chunks[i]
			points = append(points, point{
				ID: pointID(documentID, ch.ChunkIndex),
				Vector: map[string]any{
					denseVectorName:  vectors[i],
					sparseVectorName: encodeSparse(ch.Content),
				},
				Payload: map[string]any{
					"document_id":  documentID,
					"chunk_index":  ch.ChunkIndex,
					"page_number":  ch.PageNumber,
					"section_type": string(ch.SectionType),
					"content":      ch.Content,
				},
			})
		}
		path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
		if err := c.do(ctx, http.MethodPut, path, map[string]any{"points": points}, nil, "upsert"); err != nil {
			if delErr := c.DeleteChunks(ctx, documentID); delErr != nil {
				return fmt.Errorf("%w; cleanup: %v", err, delErr)
			}
			return err
		}
	}
	return nil
}

func (c *Client) DeleteChunks(ctx context.Context, documentID string) error {
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", c.collection)
	err := c.do(ctx, http.MethodPost, path, map[string]any{"filter": documentFilter(documentID, nil)}, nil, "delete")
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		// collection not created yet
		return nil
	}
	return err
}

func (c *Client) SemanticSearch(ctx context.Context, documentID string, queryVector []float32, topK int) ([]domain.SearchResult, error) {
	return c.search(ctx, map[string]any{
		"vector": map[string]any{"name": denseVectorName, "vector": queryVector},
		"filter": documentFilter(documentID, nil),
	}, topK, "semantic")
}

// KeywordSearch scores chunks by sparse dot product with the query terms.
func (c *Client) KeywordSearch(ctx context.Context, documentID, queryText string, topK int) ([]domain.SearchResult, error) {
	sparse := encodeSparse(queryText)
	if len(sparse.Indices) == 0 {
		return []domain.SearchResult{}, nil
	}
	results, err := c.search(ctx, map[string]any{
		"vector": map[string]any{"name": sparseVectorName, "vector": sparse},
		"filter": documentFilter(documentID, nil),
	}, topK, "keyword")
	if err != nil {
		return nil, err
	}
	out := results[:0]
	for _, r := range results {
		if r.Score > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) SectionSearch(ctx context.Context, documentID string, queryVector []float32, sections []domain.SectionType, topK int) ([]domain.SearchResult, error) {
	if len(sections) == 0 {
		return []domain.SearchResult{}, nil
	}
	return c.search(ctx, map[string]any{
		"vector": map[string]any{"name": denseVectorName, "vector": queryVector},
		"filter": documentFilter(documentID, sections),
	}, topK, "section")
}

func (c *Client) search(ctx context.Context, body map[string]any, topK int, pass string) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return []domain.SearchResult{}, nil
	}
	body["limit"] = topK
	body["with_payload"] = true

	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", c.collection)
	if err := c.do(ctx, http.MethodPost, path, body, &resp, pass+" search"); err != nil {
		return nil, err
	}

	out := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.SearchResult{
			ChunkID:     fmt.Sprint(r.ID),
			DocumentID:  stringPayload(r.Payload, "document_id"),
			Content:     stringPayload(r.Payload, "content"),
			PageNumber:  intPayload(r.Payload, "page_number"),
			ChunkIndex:  intPayload(r.Payload, "chunk_index"),
			SectionType: domain.SectionType(stringPayload(r.Payload, "section_type")),
			Score:       r.Score,
		})
	}
	return out, nil
}

func documentFilter(documentID string, sections []domain.SectionType) map[string]any {
	must := []map[string]any{
		{"key": "document_id", "match": map[string]any{"value": documentID}},
	}
	if len(sections) > 0 {
		names := make([]string, 0, len(sections))
		for _, s := range sections {
			names = append(names, string(s))
		}
		must = append(must, map[string]any{"key": "section_type", "match": map[string]any{"any": names}})
	}
	return map[string]any{"must": must}
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	if c.ensuredVectorSize == vectorSize {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{"size": vectorSize, "distance": "Cosine"},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}
	err := c.do(ctx, http.MethodPut, "/collections/"+c.collection, body, nil, "ensure collection")
	var statusErr *StatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}
	c.ensuredVectorSize = vectorSize
	return nil
}

// StatusError is a non-2xx Qdrant response.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("qdrant %s status: %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("qdrant %s status: %d: %s", e.Operation, e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any, operation string) error {
	call := func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, payload, out, operation)
	}
	if c.executor == nil {
		return call(ctx)
	}
	err := c.executor.Execute(ctx, "qdrant."+strings.ReplaceAll(operation, " ", "_"), call, classifyQdrantError)
	if err != nil && (resilience.IsCircuitOpen(err) || classifyQdrantError(err).Retryable) {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func classifyQdrantError(err error) resilience.ErrorClassification {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		retry := statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
		return resilience.ErrorClassification{Retryable: retry, RecordFailure: retry}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

func stringPayload(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func intPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}
