package qdrant

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

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/receiptvault-backend/pkg/errors"
)

const (
	requestBodyReadLimit int64 = 1024
)

var (
	errBaseURLRequired    = errors.New("qdrant base url is required")
	errCollectionRequired = errors.New("qdrant collection is required")
)

// Client wraps the Qdrant HTTP API used for receipt chunk retrieval.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	collection string
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

// NewClient builds the Qdrant client for a single collection.
func NewClient(baseURL, apiKey, collection string, timeout time.Duration, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimSpace(baseURL)
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedCollection := strings.TrimSpace(collection)
	if trimmedCollection == "" {
		return nil, errCollectionRequired
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    trimmedURL,
		apiKey:     strings.TrimSpace(apiKey),
		collection: trimmedCollection,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// ScoredChunk is one retrieval hit with its stored payload.
type ScoredChunk struct {
	ID        string
	Score     float64
	Text      string
	ReceiptID string
	OwnerID   string
}

// Search runs a vector similarity query scoped to a single owner. The owner
// filter is attached unconditionally; there is no unfiltered variant.
func (c *Client) Search(ctx context.Context, vector []float32, limit int, ownerID uuid.UUID) ([]ScoredChunk, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeRetrieval, "qdrant client not configured")
	}
	if len(vector) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "query vector is required")
	}
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner ID is required")
	}
	if limit <= 0 {
		limit = 5
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key":   "owner_id",
					"match": map[string]any{"value": ownerID.String()},
				},
			},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRetrieval, err, "marshal search request")
	}

	endpoint := fmt.Sprintf(
		"%s/collections/%s/points/search",
		strings.TrimRight(c.baseURL, "/"),
		url.PathEscape(c.collection),
	)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRetrieval, err, "build search request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRetrieval, err, "execute search request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeRetrieval, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "search request failed")
	}

	var apiResp struct {
		Result []struct {
			ID      any     `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				Content   string `json:"content"`
				ReceiptID string `json:"receipt_id"`
				OwnerID   string `json:"owner_id"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRetrieval, err, "decode search response")
	}

	chunks := make([]ScoredChunk, 0, len(apiResp.Result))
	for _, point := range apiResp.Result {
		chunks = append(chunks, ScoredChunk{
			ID:        fmt.Sprint(point.ID),
			Score:     point.Score,
			Text:      point.Payload.Content,
			ReceiptID: point.Payload.ReceiptID,
			OwnerID:   point.Payload.OwnerID,
		})
	}

	return chunks, nil
}
