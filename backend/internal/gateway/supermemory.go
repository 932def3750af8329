package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"go.uber.org/zap"
)

// SupermemoryClient talks to a Supermemory-style semantic memory service
type SupermemoryClient struct {
	client *jsonClient
	logger *zap.Logger
}

// NewSupermemoryClient creates a memory gateway for the given API base URL
func NewSupermemoryClient(baseURL, apiKey string, timeout time.Duration) *SupermemoryClient {
	log := logger.Named("supermemory")
	return &SupermemoryClient{
		client: newJSONClient("supermemory", baseURL, "Authorization", "Bearer "+apiKey, timeout, log),
		logger: log,
	}
}

type memoryAddRequest struct {
	Content  string                 `json:"content"`
	UserID   string                 `json:"userId"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type memorySearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"userId"`
	Limit  int    `json:"limit"`
}

type memorySearchResponse struct {
	Results []Snippet `json:"results"`
}

// Store writes one memory under the user's partition
func (s *SupermemoryClient) Store(ctx context.Context, userID, text string, metadata map[string]interface{}) error {
	if strings.TrimSpace(text) == "" {
		return apperrors.NewMalformedInput("text", "empty memory", nil)
	}
	if err := s.client.do(ctx, http.MethodPost, "/memories", memoryAddRequest{
		Content:  text,
		UserID:   userID,
		Metadata: metadata,
	}, nil); err != nil {
		return apperrors.NewSourceUnavailable("supermemory", err)
	}
	return nil
}

// Search returns snippets ranked by the service
func (s *SupermemoryClient) Search(ctx context.Context, userID, query string, limit int) ([]Snippet, error) {
	var resp memorySearchResponse
	err := s.client.do(ctx, http.MethodPost, "/memories/search", memorySearchRequest{
		Query:  query,
		UserID: userID,
		Limit:  limit,
	}, &resp)
	if err != nil {
		if statusCode(err) == http.StatusNotFound {
			return []Snippet{}, nil
		}
		return nil, apperrors.NewSourceUnavailable("supermemory", err)
	}

	out := make([]Snippet, 0, len(resp.Results))
	for _, r := range resp.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
