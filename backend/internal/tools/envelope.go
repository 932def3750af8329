package tools

import (
	"bytes"
	"encoding/json"
	"strings"

	"fractional-quest/backend/internal/constants"
	apperrors "fractional-quest/backend/pkg/errors"
)

// ToolCall is one parsed request from the voice platform. Parameters is
// always a JSON document, never a JSON string holding one.
type ToolCall struct {
	CallID     string
	Name       string
	Parameters json.RawMessage
}

// ToolResponse is the reply shape the voice platform expects. Failures are
// reported in Content; the envelope looks the same either way.
type ToolResponse struct {
	Type       string `json:"type"`
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
}

// envelope is the wire format. The platform has sent the tool name under
// both "name" and "tool_name", and parameters both as an object and as a
// JSON-encoded string.
type envelope struct {
	Type       string          `json:"type"`
	ToolType   string          `json:"tool_type"`
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	ToolName   string          `json:"tool_name"`
	Parameters json.RawMessage `json:"parameters"`
}

// ParseEnvelope reads a tool call from a request body. It fails only when
// the body is not a JSON object or names no tool; the returned call still
// carries whatever id could be read, or the placeholder id.
func ParseEnvelope(body []byte) (ToolCall, error) {
	call := ToolCall{CallID: constants.PlaceholderCallID}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return call, apperrors.NewMalformedInput("body", "not a JSON object", err)
	}

	if id := strings.TrimSpace(env.ToolCallID); id != "" {
		call.CallID = id
	}

	call.Name = strings.TrimSpace(env.Name)
	if call.Name == "" {
		call.Name = strings.TrimSpace(env.ToolName)
	}
	if call.Name == "" {
		return call, apperrors.NewMalformedInput("name", "no tool name", nil)
	}

	call.Parameters = normalizeParameters(env.Parameters)
	return call, nil
}

// normalizeParameters unwraps string-encoded parameters and maps absent or
// null parameters to an empty object. The result is not validated here, so
// malformed JSON inside a string survives to be reported per tool.
func normalizeParameters(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}")
	}
	if trimmed[0] != '"' {
		return trimmed
	}

	var inner string
	if err := json.Unmarshal(trimmed, &inner); err != nil {
		return trimmed
	}
	if strings.TrimSpace(inner) == "" {
		return json.RawMessage("{}")
	}
	return json.RawMessage(inner)
}
