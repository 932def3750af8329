package tools

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// errUnknownTool routes a call to the unknown-tool reply
var errUnknownTool = stderrors.New("unknown tool")

// Params is the typed parameter set of one tool
type Params interface {
	ToolName() string
}

// ProfileParams are the get_user_profile parameters
type ProfileParams struct {
	UserID string `json:"user_id"`
}

// SkillsParams are the get_user_skills parameters
type SkillsParams struct {
	UserID string `json:"user_id"`
}

// SearchJobsParams are the search_jobs parameters
type SearchJobsParams struct {
	RoleType string `json:"role_type"`
	Location string `json:"location"`
	Remote   *bool  `json:"remote"`
	Limit    int    `json:"limit" validate:"gte=0"`
}

// SavePreferenceParams are the save_user_preference parameters
type SavePreferenceParams struct {
	UserID string `json:"user_id"`
	Field  string `json:"field"`
	Value  string `json:"value"`
}

// JobDetailsParams are the get_job_details parameters
type JobDetailsParams struct {
	JobID string `json:"job_id" validate:"required"`
}

// SearchArticlesParams are the search_articles parameters
type SearchArticlesParams struct {
	Topic string `json:"topic"`
	Limit int    `json:"limit" validate:"gte=0"`
}

// ConfirmPreferenceParams are the confirm_preference parameters
type ConfirmPreferenceParams struct {
	UserID          string     `json:"user_id,omitempty"`
	PreferenceType  string     `json:"preference_type" validate:"required"`
	ExtractedValues StringList `json:"extracted_values" validate:"required,min=1"`
}

func (*ProfileParams) ToolName() string           { return ToolGetUserProfile }
func (*SkillsParams) ToolName() string            { return ToolGetUserSkills }
func (*SearchJobsParams) ToolName() string        { return ToolSearchJobs }
func (*SavePreferenceParams) ToolName() string    { return ToolSaveUserPreference }
func (*JobDetailsParams) ToolName() string        { return ToolGetJobDetails }
func (*SearchArticlesParams) ToolName() string    { return ToolSearchArticles }
func (*ConfirmPreferenceParams) ToolName() string { return ToolConfirmPreference }

// StringList accepts either a JSON array of strings or one comma-separated string
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = cleanList(list)
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return fmt.Errorf("expected a string or a list of strings")
	}
	*s = cleanList(strings.Split(joined, ","))
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// aliases maps alternate names the platform uses to the canonical tool
var aliases = map[string]string{
	ToolGetUserFacts: ToolGetUserSkills,
	ToolSaveUserFact: ToolSaveUserPreference,
}

// canonicalName resolves aliases
func canonicalName(name string) string {
	if c, ok := aliases[name]; ok {
		return c
	}
	return name
}

func newParams(name string) (Params, error) {
	switch canonicalName(name) {
	case ToolGetUserProfile:
		return &ProfileParams{}, nil
	case ToolGetUserSkills:
		return &SkillsParams{}, nil
	case ToolSearchJobs:
		return &SearchJobsParams{}, nil
	case ToolSaveUserPreference:
		return &SavePreferenceParams{}, nil
	case ToolGetJobDetails:
		return &JobDetailsParams{}, nil
	case ToolSearchArticles:
		return &SearchArticlesParams{}, nil
	case ToolConfirmPreference:
		return &ConfirmPreferenceParams{}, nil
	}
	return nil, errUnknownTool
}

// decodeParams builds and validates the typed parameters for a tool
func decodeParams(v *validator.Validate, name string, raw json.RawMessage) (Params, error) {
	p, err := newParams(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, apperrors.NewMalformedInput("parameters", "not valid JSON", err)
	}
	if err := v.Struct(p); err != nil {
		return nil, apperrors.NewMalformedInput("parameters", describeValidation(err), err)
	}
	return p, nil
}

// describeValidation turns validator errors into a sentence naming the
// offending JSON fields
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "gte":
			parts = append(parts, fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s needs at least %s value", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(parts, "; ")
}

// newValidator reports JSON field names in validation errors
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
