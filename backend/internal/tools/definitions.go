package tools

// Profile and skill tools
const (
	ToolGetUserProfile = "get_user_profile"
	ToolGetUserSkills  = "get_user_skills"
	ToolGetUserFacts   = "get_user_facts"
)

// Job and article tools
const (
	ToolSearchJobs     = "search_jobs"
	ToolGetJobDetails  = "get_job_details"
	ToolSearchArticles = "search_articles"
)

// Preference tools
const (
	ToolSaveUserPreference = "save_user_preference"
	ToolSaveUserFact       = "save_user_fact"
	ToolConfirmPreference  = "confirm_preference"
)

// Definition describes one tool to the voice platform
type Definition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition is the callable part of a Definition
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

func userIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "The signed-in user's id",
	}
}

// Definitions returns the schemas of every canonical tool
func Definitions() []Definition {
	return []Definition{
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolGetUserProfile,
				Description: "Get the user's profile: name, location, interests, timeline, budget and the locations they are considering.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"user_id": userIDProperty(),
					},
					"required": []string{"user_id"},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolGetUserSkills,
				Description: "Get the user's recorded skills with years of experience and level.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"user_id": userIDProperty(),
					},
					"required": []string{"user_id"},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolSearchJobs,
				Description: "Search active fractional and part-time roles. Use when the user asks what roles are available.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"role_type": map[string]interface{}{
							"type":        "string",
							"description": "Role to search for, e.g. CFO, CTO, marketing",
						},
						"location": map[string]interface{}{
							"type":        "string",
							"description": "City or region, e.g. London",
						},
						"remote": map[string]interface{}{
							"type":        "boolean",
							"description": "Only return remote roles when true",
						},
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of roles (default 5, max 20)",
						},
					},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolSaveUserPreference,
				Description: "Save a profile detail the user has stated. Only interests, timeline, budget_monthly and current_country can be saved.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"user_id": userIDProperty(),
						"field": map[string]interface{}{
							"type":        "string",
							"enum":        []string{"interests", "timeline", "budget_monthly", "current_country"},
							"description": "Profile field to update",
						},
						"value": map[string]interface{}{
							"type":        "string",
							"description": "The new value",
						},
					},
					"required": []string{"user_id", "field", "value"},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolGetJobDetails,
				Description: "Get the full details of one role by its id.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"job_id": map[string]interface{}{
							"type":        "string",
							"description": "The role's id",
						},
					},
					"required": []string{"job_id"},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolSearchArticles,
				Description: "Search published articles and guides about fractional work.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"topic": map[string]interface{}{
							"type":        "string",
							"description": "Topic to search for",
						},
						"limit": map[string]interface{}{
							"type":        "integer",
							"description": "Maximum number of articles (default 5)",
						},
					},
				},
			},
		},
		{
			Type: "function",
			Function: FunctionDefinition{
				Name:        ToolConfirmPreference,
				Description: "Ask the user to confirm a preference heard in conversation before it is saved.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"preference_type": map[string]interface{}{
							"type":        "string",
							"description": "e.g. role, industry, location, availability, day_rate",
						},
						"extracted_values": map[string]interface{}{
							"type":        "array",
							"items":       map[string]interface{}{"type": "string"},
							"description": "Values heard, e.g. [\"CTO\", \"CFO\"]",
						},
						"user_id": userIDProperty(),
					},
					"required": []string{"preference_type", "extracted_values"},
				},
			},
		},
	}
}
