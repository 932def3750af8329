// Package tools answers tool calls from the voice platform. Every call gets
// exactly one response carrying the caller's id; failures are spoken, never
// raised.
package tools

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"fractional-quest/backend/internal/constants"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/observability"
	"fractional-quest/backend/internal/relational"
	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ResponseType is the envelope type of every reply
const ResponseType = "tool_response"

// Outcomes recorded per call
const (
	OutcomeOK      = "ok"
	OutcomeUnknown = "unknown"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
)

// Catalogue reads the data the tools speak about
type Catalogue interface {
	Profile(ctx context.Context, userID string) (*relational.Profile, error)
	Skills(ctx context.Context, userID string) ([]relational.SkillRecord, error)
	SearchListings(ctx context.Context, f relational.ListingFilter) ([]relational.ListingRecord, error)
	ListingByID(ctx context.Context, id string) (*relational.ListingRecord, error)
	SearchArticles(ctx context.Context, topic string, limit int) ([]relational.Article, error)
}

// ProfileWriter persists a whitelisted profile field
type ProfileWriter interface {
	SaveProfileField(ctx context.Context, userID, field, value string) error
}

// Options tunes a Dispatcher
type Options struct {
	// SiteBaseURL prefixes spoken links, e.g. "parttime.quest"
	SiteBaseURL string
	// AppendTimeout bounds the background graph write after a save
	AppendTimeout time.Duration
}

// unavailable is spoken when a tool's backing store fails
var unavailable = map[string]string{
	ToolGetUserProfile:     "Unable to fetch profile at this time.",
	ToolGetUserSkills:      "Unable to fetch skills at this time.",
	ToolSearchJobs:         "Unable to search jobs at this time.",
	ToolSaveUserPreference: "Unable to save preference at this time.",
	ToolGetJobDetails:      "Unable to fetch job details at this time.",
	ToolSearchArticles:     "Unable to search articles at this time.",
	ToolConfirmPreference:  "Unable to confirm that right now.",
}

// Dispatcher routes tool calls to their handlers
type Dispatcher struct {
	catalogue Catalogue
	writer    ProfileWriter
	graph     gateway.GraphGateway
	validate  *validator.Validate
	opts      Options
	metrics   *observability.Collector
	logger    *zap.Logger

	background sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil graph gateway disables the
// background graph write after saves.
func NewDispatcher(c Catalogue, w ProfileWriter, g gateway.GraphGateway, opts Options, metrics *observability.Collector) *Dispatcher {
	if opts.SiteBaseURL == "" {
		opts.SiteBaseURL = "parttime.quest"
	}
	if opts.AppendTimeout <= 0 {
		opts.AppendTimeout = constants.DefaultGatewayTimeout
	}
	if g == nil {
		g = gateway.DisabledGraph{}
	}
	return &Dispatcher{
		catalogue: c,
		writer:    w,
		graph:     g,
		validate:  newValidator(),
		opts:      opts,
		metrics:   metrics,
		logger:    logger.Named("tools"),
	}
}

// Dispatch answers one tool call. It always returns a response whose id is
// the call's id, or the placeholder id when the call had none.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) (resp ToolResponse) {
	start := time.Now()
	resp = ToolResponse{Type: ResponseType, ToolCallID: call.CallID}
	if resp.ToolCallID == "" {
		resp.ToolCallID = constants.PlaceholderCallID
	}

	label, outcome := canonicalName(call.Name), OutcomeOK
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Tool handler panicked",
				zap.String("tool", call.Name),
				zap.String("call_id", resp.ToolCallID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			resp.Content = "Something went wrong while handling that request."
			outcome = OutcomePanic
		}
		d.metrics.RecordToolCall(label, outcome)
		d.logger.Info("Tool call handled",
			zap.String("tool", call.Name),
			zap.String("call_id", resp.ToolCallID),
			zap.String("outcome", outcome),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	params, err := decodeParams(d.validate, call.Name, call.Parameters)
	if stderrors.Is(err, errUnknownTool) {
		d.logger.Warn("Unknown tool", zap.String("tool", call.Name))
		// Keep metric labels bounded
		label, outcome = OutcomeUnknown, OutcomeUnknown
		resp.Content = fmt.Sprintf("Unknown tool: %s", call.Name)
		return resp
	}
	if err != nil {
		outcome = OutcomeInvalid
		resp.Content = fmt.Sprintf("Invalid parameters for %s: %s", call.Name, invalidReason(err))
		return resp
	}

	content, err := d.execute(ctx, params)
	if err != nil {
		outcome = OutcomeError
		d.logger.Error("Tool execution failed",
			zap.String("tool", params.ToolName()),
			zap.Error(apperrors.NewToolExecutionFailed(params.ToolName(), err)),
		)
		resp.Content = unavailable[params.ToolName()]
		return resp
	}

	resp.Content = content
	return resp
}

// Wait blocks until background graph writes have finished
func (d *Dispatcher) Wait() {
	d.background.Wait()
}

func (d *Dispatcher) execute(ctx context.Context, params Params) (string, error) {
	switch p := params.(type) {
	case *ProfileParams:
		return d.getUserProfile(ctx, p)
	case *SkillsParams:
		return d.getUserSkills(ctx, p)
	case *SearchJobsParams:
		return d.searchJobs(ctx, p)
	case *SavePreferenceParams:
		return d.saveUserPreference(ctx, p)
	case *JobDetailsParams:
		return d.getJobDetails(ctx, p)
	case *SearchArticlesParams:
		return d.searchArticles(ctx, p)
	case *ConfirmPreferenceParams:
		return d.confirmPreference(p)
	default:
		return "", fmt.Errorf("no handler for %T", params)
	}
}

func invalidReason(err error) string {
	var mi *apperrors.ErrMalformedInput
	if stderrors.As(err, &mi) {
		return mi.Reason
	}
	return err.Error()
}
