package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/receiptvault-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://generativelanguage.googleapis.com/v1beta"
	requestBodyReadLimit int64 = 1024
)

var errAPIKeyRequired = errors.New("gemini api key is required")

// Client wraps the Generative Language API endpoints used for embeddings and
// answer generation.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	apiKey          string
	embedModel      string
	generateModel   string
	embedTimeout    time.Duration
	generateTimeout time.Duration
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the Gemini client from configuration.
func NewClient(cfg config.GeminiConfig, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	client := &Client{
		httpClient:      &http.Client{},
		baseURL:         defaultBaseURL,
		apiKey:          apiKey,
		embedModel:      cfg.EmbedModel,
		generateModel:   cfg.GenerateModel,
		embedTimeout:    cfg.EmbedTimeout,
		generateTimeout: cfg.GenerateTimeout,
	}
	if trimmed := strings.TrimSpace(cfg.BaseURL); trimmed != "" {
		client.baseURL = trimmed
	}
	if client.embedModel == "" {
		client.embedModel = "text-embedding-004"
	}
	if client.generateModel == "" {
		client.generateModel = "gemini-1.5-flash"
	}
	if client.embedTimeout <= 0 {
		client.embedTimeout = 10 * time.Second
	}
	if client.generateTimeout <= 0 {
		client.generateTimeout = 30 * time.Second
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// EmbedText returns the embedding vector for the provided text.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeEmbedding, "gemini client not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "text to embed is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	body := map[string]any{
		"model":   "models/" + c.embedModel,
		"content": map[string]any{"parts": []map[string]any{{"text": text}}},
	}

	var apiResp struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := c.post(ctx, c.embedModel+":embedContent", body, &apiResp, pkgerrors.CodeEmbedding); err != nil {
		return nil, err
	}
	if len(apiResp.Embedding.Values) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmbedding, "embedding response contained no values")
	}

	return apiResp.Embedding.Values, nil
}

// Generate produces a completion for the prompt. A well-formed response with
// no candidates yields an empty string and no error; the caller decides how
// to degrade.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", pkgerrors.New(pkgerrors.CodeGeneration, "gemini client not configured")
	}
	if strings.TrimSpace(prompt) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "prompt is required")
	}

	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]any{{"text": prompt}}},
		},
	}

	var apiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := c.post(ctx, c.generateModel+":generateContent", body, &apiResp, pkgerrors.CodeGeneration); err != nil {
		return "", err
	}

	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var out strings.Builder
	for _, part := range apiResp.Candidates[0].Content.Parts {
		out.WriteString(part.Text)
	}
	return out.String(), nil
}

func (c *Client) post(ctx context.Context, modelCall string, body any, out any, code pkgerrors.Code) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return pkgerrors.Wrap(code, err, "marshal request")
	}

	endpoint := fmt.Sprintf(
		"%s/models/%s",
		strings.TrimRight(c.baseURL, "/"),
		url.PathEscape(modelCall),
	)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return pkgerrors.Wrap(code, err, "build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(code, err, "execute request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(code, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "request failed")
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.Wrap(code, err, "decode response")
	}
	return nil
}
