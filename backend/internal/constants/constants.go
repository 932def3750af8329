package constants

import "time"

// Context assembly constants
const (
	// DefaultQueryHint is used when the caller has no specific question
	DefaultQueryHint = "career skills experience preferences"

	// DefaultContextCharBudget caps the assembled context string
	DefaultContextCharBudget = 2000

	// DefaultGatewayTimeout bounds every external gateway call
	DefaultGatewayTimeout = 4 * time.Second

	// GraphSearchLimit is the number of ranked graph-service hits requested per assembly
	GraphSearchLimit = 10

	// MemorySearchLimit is the number of snippets requested from the memory service
	MemorySearchLimit = 5
)

// Transcript recording constants
const (
	// MinTranscriptLength is the shortest trimmed transcript worth storing
	MinTranscriptLength = 20
)

// Tool dispatch constants
const (
	// PlaceholderCallID is used when no call id could be read from the request
	PlaceholderCallID = "error"

	// VoiceDescriptionLimit truncates long listing descriptions for speech
	VoiceDescriptionLimit = 300

	// DefaultSearchLimit is used by search tools when the caller gives none
	DefaultSearchLimit = 5

	// MaxSearchLimit bounds any caller-supplied search limit
	MaxSearchLimit = 20
)

