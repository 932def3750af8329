package server

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fractional-quest/backend/internal/extract"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/graph"
	"fractional-quest/backend/internal/memory"
	"fractional-quest/backend/internal/relational"
	"fractional-quest/backend/internal/tools"
	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxToolBody bounds a tool call request body
const maxToolBody = 1 << 20

func (s *Server) humeTool(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxToolBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	call, err := tools.ParseEnvelope(body)
	if err != nil {
		s.logger.Warn("Rejected tool call", zap.String("call_id", call.CallID), zap.Error(err))
		c.JSON(http.StatusBadRequest, tools.ToolResponse{
			Type:       tools.ResponseType,
			ToolCallID: call.CallID,
			Content:    "Invalid tool call: a tool name is required.",
		})
		return
	}

	c.JSON(http.StatusOK, s.deps.Dispatcher.Dispatch(c.Request.Context(), call))
}

func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"tools":  tools.Definitions(),
		"usage":  "POST a tool call: {\"tool_call_id\": \"...\", \"name\": \"...\", \"parameters\": {...}}",
	})
}

func (s *Server) assembleContext(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	res, err := s.deps.Assembler.Assemble(c.Request.Context(), userID, c.Query("query"))
	if err != nil {
		s.logger.Error("Failed to assemble context", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to assemble context", "retryable": apperrors.IsRetryable(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"context": res.Context,
		"stats":   res.Stats,
	})
}

type saveMemoryRequest struct {
	UserID     string                 `json:"userId" binding:"required"`
	Transcript string                 `json:"transcript"`
	Metadata   map[string]interface{} `json:"metadata"`
}

func (s *Server) saveMemory(c *gin.Context) {
	var req saveMemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	rec, err := s.deps.Recorder.Record(c.Request.Context(), req.UserID, req.Transcript, req.Metadata)
	switch {
	case stderrors.Is(err, memory.ErrTranscriptTooShort):
		c.JSON(http.StatusOK, gin.H{"saved": false, "reason": "Transcript too short"})
		return
	case err != nil && (rec == nil || !rec.Saved):
		s.logger.Error("Failed to save conversation", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"saved": false, "error": "Failed to save conversation", "retryable": apperrors.IsRetryable(err)})
		return
	case err != nil:
		// Transcript stored; only the graph mirror failed
		s.logger.Warn("Conversation saved with graph errors", zap.String("user_id", req.UserID), zap.Error(err))
	}

	resp := gin.H{
		"saved":            rec.Saved,
		"transcriptLength": rec.TranscriptLength,
		"extracted":        rec.Extracted,
		"graphFacts":       rec.GraphFacts,
	}
	if !rec.Saved {
		resp["reason"] = "Memory service not configured"
	}
	c.JSON(http.StatusOK, resp)
}

type extractRequest struct {
	Transcript string `json:"transcript"`
}

func (s *Server) extractPreferences(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.Transcript) == "" {
		c.JSON(http.StatusOK, &extract.Result{Preferences: []extract.Preference{}})
		return
	}

	res, err := s.deps.Extractor.Extract(c.Request.Context(), req.Transcript)
	if err != nil {
		s.logger.Error("Preference extraction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"preferences": []extract.Preference{}, "should_confirm": false, "error": "Extraction failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

type graphPreferenceRequest struct {
	UserID     string `json:"userId" binding:"required"`
	Preference struct {
		Type      string   `json:"type" binding:"required,oneof=role industry location availability day_rate skill"`
		Values    []string `json:"values" binding:"required,min=1,dive,required"`
		Validated bool     `json:"validated"`
		RawText   string   `json:"raw_text"`
	} `json:"preference" binding:"required"`
}

func (s *Server) graphPreference(c *gin.Context) {
	var req graphPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "userId and preference {type, values} required"})
		return
	}
	p := req.Preference
	ctx := c.Request.Context()

	verb := "mentioned"
	if p.Validated {
		verb = "confirmed"
	}
	payload := gateway.Payload{
		Type: "user_" + p.Type,
		Data: map[string]interface{}{
			"preference_type": p.Type,
			"values":          p.Values,
			"validated":       p.Validated,
			"raw_text":        p.RawText,
			"context":         fmt.Sprintf("User %s %s: %s", verb, p.Type, strings.Join(p.Values, ", ")),
		},
	}

	err := s.deps.Graph.EnsureSubject(ctx, req.UserID, nil)
	if err == nil {
		err = s.deps.Graph.Append(ctx, req.UserID, payload)
	}

	stored := false
	if p.Validated && s.deps.Preferences != nil {
		if perr := s.deps.Preferences.SavePreference(ctx, req.UserID, p.Type, p.Values); perr != nil {
			s.logger.Warn("Failed to store confirmed preference", zap.String("user_id", req.UserID), zap.Error(perr))
		} else {
			stored = true
		}
	}

	switch {
	case apperrors.IsDisabled(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "stored": stored, "error": "Graph service not configured"})
	case err != nil:
		s.logger.Error("Failed to append preference", zap.String("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "stored": stored, "error": "Failed to save preference to graph"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "stored": stored, "type": payload.Type})
	}
}

func (s *Server) graphUser(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	facts, err := s.deps.Facts.UserFacts(c.Request.Context(), userID)
	if err != nil && !stderrors.Is(err, relational.ErrUserNotFound) {
		s.logger.Error("Failed to build user graph", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build user graph"})
		return
	}

	g := graph.BuildGraph(userID, facts)
	c.JSON(http.StatusOK, gin.H{
		"graph": g,
		"stats": gin.H{
			"skillCount":      len(facts.Skills),
			"companyCount":    len(facts.Companies),
			"preferenceCount": len(facts.Preferences),
			"matchedJobCount": len(facts.Listings),
		},
	})
}
