package gateway

import (
	"context"
	"net/http"
	"strings"
	"time"

	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ZepGraph talks to a Zep-style temporal knowledge-graph service
type ZepGraph struct {
	client *jsonClient
	logger *zap.Logger
}

// NewZepGraph creates a graph gateway for the given API base URL
func NewZepGraph(baseURL, apiKey string, timeout time.Duration) *ZepGraph {
	log := logger.Named("zep")
	return &ZepGraph{
		client: newJSONClient("zep", baseURL, "Authorization", "Api-Key "+apiKey, timeout, log),
		logger: log,
	}
}

type zepUserRequest struct {
	UserID    string            `json:"user_id"`
	Email     string            `json:"email,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type zepGraphRequest struct {
	UserID string `json:"user_id"`
	Type   string `json:"type"`
	Data   string `json:"data"`
}

type zepSearchRequest struct {
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Scope  string `json:"scope"`
}

type zepSearchResponse struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// EnsureSubject registers the user. An existing user is not an error.
func (z *ZepGraph) EnsureSubject(ctx context.Context, userID string, hints map[string]string) error {
	req := zepUserRequest{UserID: userID, Metadata: map[string]string{}}
	for k, v := range hints {
		switch k {
		case "email":
			req.Email = v
		case "first_name":
			req.FirstName = v
		case "last_name":
			req.LastName = v
		default:
			req.Metadata[k] = v
		}
	}

	err := z.client.do(ctx, http.MethodPost, "/users", req, nil)
	if err == nil || userExists(err) {
		return nil
	}
	return apperrors.NewSourceUnavailable("zep", err)
}

func userExists(err error) bool {
	switch statusCode(err) {
	case http.StatusConflict:
		return true
	case http.StatusBadRequest:
		se, _ := err.(*StatusError)
		return strings.Contains(strings.ToLower(se.Body), "already exists")
	}
	return false
}

// Append adds one JSON fact document to the user's graph
func (z *ZepGraph) Append(ctx context.Context, userID string, payload Payload) error {
	data, err := payload.MarshalData()
	if err != nil {
		return apperrors.NewMalformedInput("payload", "not serializable", err)
	}

	if err := z.client.do(ctx, http.MethodPost, "/graph", zepGraphRequest{
		UserID: userID,
		Type:   "json",
		Data:   data,
	}, nil); err != nil {
		return apperrors.NewSourceUnavailable("zep", err)
	}

	z.logger.Debug("Appended fact", zap.String("user_id", userID), zap.String("type", payload.Type))
	return nil
}

// Query runs node and edge searches side by side
func (z *ZepGraph) Query(ctx context.Context, userID, text string, limit int) (*GraphResult, error) {
	var nodes zepSearchResponse
	var edges zepSearchResponse

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return z.client.do(gctx, http.MethodPost, "/graph/search", zepSearchRequest{
			UserID: userID, Query: text, Limit: limit, Scope: "nodes",
		}, &nodes)
	})
	g.Go(func() error {
		return z.client.do(gctx, http.MethodPost, "/graph/search", zepSearchRequest{
			UserID: userID, Query: text, Limit: limit, Scope: "edges",
		}, &edges)
	})
	if err := g.Wait(); err != nil {
		// A user the service has never seen has no graph yet
		if statusCode(err) == http.StatusNotFound {
			return &GraphResult{Nodes: []GraphNode{}, Edges: []GraphEdge{}}, nil
		}
		return nil, apperrors.NewSourceUnavailable("zep", err)
	}

	result := &GraphResult{Nodes: nodes.Nodes, Edges: edges.Edges}
	if result.Nodes == nil {
		result.Nodes = []GraphNode{}
	}
	if result.Edges == nil {
		result.Edges = []GraphEdge{}
	}
	return result, nil
}
