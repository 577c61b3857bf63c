package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/policy-advisor/internal/core/domain"
	"github.com/kirillkom/policy-advisor/internal/infrastructure/resilience"
)

const defaultTemperature = 0.1

type Client struct {
	baseURL     string
	genModel    string
	embedModel  string
	temperature float64
	httpClient  *http.Client
	executor    *resilience.Executor
}

type Option func(*Client)

// WithExecutor routes every request through the given executor. Without
// one the client makes a single attempt per call.
func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithTemperature(t float64) Option {
	return func(c *Client) {
		c.temperature = t
	}
}

func New(baseURL, genModel, embedModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		genModel:    genModel,
		embedModel:  embedModel,
		temperature: defaultTemperature,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LanguageModel answers system/user prompt pairs with the generation model.
type LanguageModel struct {
	client *Client
}

func NewLanguageModel(client *Client) *LanguageModel {
	return &LanguageModel{client: client}
}

func (m *LanguageModel) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.client.generate(ctx, systemPrompt, userPrompt, false)
}

// CompleteJSON asks for JSON output and decodes the first object in the
// reply. Unparseable output yields an empty map.
func (m *LanguageModel) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (map[string]any, error) {
	text, err := m.client.generate(ctx, systemPrompt, userPrompt, true)
	if err != nil {
		return nil, err
	}

	out := map[string]any{}
	if err := json.Unmarshal([]byte(extractJSONObject(text)), &out); err != nil || out == nil {
		return map[string]any{}, nil
	}
	return out, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	if len(response.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed returned %d vectors for %d inputs", len(response.Embeddings), len(texts))
	}
	return response.Embeddings, nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, domain.WrapError(domain.ErrTemporary, "ollama embed", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

func (c *Client) generate(ctx context.Context, systemPrompt, userPrompt string, jsonFormat bool) (string, error) {
	reqBody := map[string]any{
		"model":   c.genModel,
		"prompt":  userPrompt,
		"stream":  false,
		"options": map[string]any{"temperature": c.temperature},
	}
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody["system"] = systemPrompt
	}
	if jsonFormat {
		reqBody["format"] = "json"
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

// call runs one request through the executor when configured and maps
// transient failures to domain.ErrTemporary.
func (c *Client) call(ctx context.Context, path string, payload any, out any, operation string) error {
	if c.executor == nil {
		return asTemporary("ollama "+operation, c.postJSON(ctx, path, payload, out, operation))
	}
	err := c.executor.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		return c.postJSON(ctx, path, payload, out, operation)
	}, classifyOllamaError)
	return asTemporary("ollama "+operation, err)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
