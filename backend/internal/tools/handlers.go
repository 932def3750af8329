package tools

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"fractional-quest/backend/internal/constants"
	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/internal/relational"
	"go.uber.org/zap"
)

func (d *Dispatcher) getUserProfile(ctx context.Context, p *ProfileParams) (string, error) {
	if p.UserID == "" {
		return "No user ID provided. The user may not be logged in.", nil
	}

	profile, err := d.catalogue.Profile(ctx, p.UserID)
	if stderrors.Is(err, relational.ErrUserNotFound) {
		return "No profile found for this user. They appear to be new.", nil
	}
	if err != nil {
		return "", err
	}

	var parts []string
	if name := strings.TrimSpace(profile.FirstName + " " + profile.LastName); name != "" {
		parts = append(parts, "Name: "+name)
	}
	if profile.CurrentCountry != "" {
		parts = append(parts, "Location: "+profile.CurrentCountry)
	}
	if profile.Interests != "" {
		parts = append(parts, "Interests: "+profile.Interests)
	}
	if profile.Timeline != "" {
		parts = append(parts, "Timeline: "+profile.Timeline)
	}
	if profile.BudgetMonthly != "" {
		parts = append(parts, fmt.Sprintf("Budget: £%s/day", profile.BudgetMonthly))
	}
	if len(profile.DestinationCountries) > 0 {
		parts = append(parts, "Interested locations: "+strings.Join(profile.DestinationCountries, ", "))
	}

	if len(parts) == 0 {
		return "Profile exists but has no details filled in yet.", nil
	}
	return strings.Join(parts, ". "), nil
}

func (d *Dispatcher) getUserSkills(ctx context.Context, p *SkillsParams) (string, error) {
	if p.UserID == "" {
		return "No user ID provided.", nil
	}

	skills, err := d.catalogue.Skills(ctx, p.UserID)
	if stderrors.Is(err, relational.ErrUserNotFound) {
		return "User not found.", nil
	}
	if err != nil {
		return "", err
	}
	if len(skills) == 0 {
		return "No skills recorded yet. Ask them about their professional expertise.", nil
	}

	items := make([]string, 0, len(skills))
	for _, s := range skills {
		item := s.Name
		if s.YearsExperience != nil {
			item += fmt.Sprintf(" (%d years)", *s.YearsExperience)
		}
		if s.Level != "" {
			item += " - " + s.Level
		}
		items = append(items, item)
	}
	return "Skills: " + strings.Join(items, ", "), nil
}

func (d *Dispatcher) searchJobs(ctx context.Context, p *SearchJobsParams) (string, error) {
	listings, err := d.catalogue.SearchListings(ctx, relational.ListingFilter{
		RoleType: p.RoleType,
		Location: p.Location,
		Remote:   p.Remote,
		Limit:    clampLimit(p.Limit),
	})
	if err != nil {
		return "", err
	}

	if len(listings) == 0 {
		var b strings.Builder
		b.WriteString("No ")
		if p.RoleType != "" {
			b.WriteString(p.RoleType + " ")
		}
		b.WriteString("part-time roles found")
		if p.Location != "" {
			b.WriteString(" in " + p.Location)
		}
		b.WriteString(" currently. Try a broader search.")
		return b.String(), nil
	}

	items := make([]string, 0, len(listings))
	for _, l := range listings {
		item := l.Title
		if l.CompanyName != "" {
			item += " at " + l.CompanyName
		}
		if l.Location != "" {
			item += ", " + l.Location
		}
		if l.IsRemote {
			item += " (Remote)"
		}
		if l.SalaryMin != nil && l.SalaryMax != nil {
			item += " - " + dayRate(l.SalaryCurrency, l.SalaryMin, l.SalaryMax)
		}
		if l.Slug != "" {
			item += fmt.Sprintf(" - View at %s/job/%s", d.opts.SiteBaseURL, l.Slug)
		}
		items = append(items, item)
	}
	return fmt.Sprintf("Found %d roles: %s", len(listings), strings.Join(items, ". ")), nil
}

func (d *Dispatcher) saveUserPreference(ctx context.Context, p *SavePreferenceParams) (string, error) {
	if p.UserID == "" {
		return "Cannot save - no user ID provided.", nil
	}
	if strings.TrimSpace(p.Field) == "" || strings.TrimSpace(p.Value) == "" {
		return "Cannot save - field and value are required.", nil
	}
	if !allowedField(p.Field) {
		return fmt.Sprintf("Cannot update %s. Allowed fields: %s", p.Field, strings.Join(relational.AllowedProfileFields, ", ")), nil
	}

	err := d.writer.SaveProfileField(ctx, p.UserID, p.Field, p.Value)
	switch {
	case stderrors.Is(err, relational.ErrUserNotFound):
		return "Cannot save - user not found.", nil
	case stderrors.Is(err, relational.ErrFieldNotAllowed):
		return fmt.Sprintf("Cannot update %s. Allowed fields: %s", p.Field, strings.Join(relational.AllowedProfileFields, ", ")), nil
	case err != nil:
		return "", err
	}

	d.appendPreference(ctx, p.UserID, p.Field, p.Value)
	return fmt.Sprintf("Saved %s: %s", p.Field, p.Value), nil
}

// appendPreference mirrors a saved field into the graph service without
// holding up the reply. Failures are logged only.
func (d *Dispatcher) appendPreference(ctx context.Context, userID, field, value string) {
	payload := gateway.Payload{
		Type: gateway.PayloadJobPreferences,
		Data: map[string]interface{}{
			"preference_type": field,
			"values":          []string{value},
			"context":         fmt.Sprintf("User updated %s: %s", field, value),
			"source":          "voice",
		},
	}

	d.background.Add(1)
	go func() {
		defer d.background.Done()

		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.AppendTimeout)
		defer cancel()

		if err := d.graph.Append(actx, userID, payload); err != nil {
			d.logger.Warn("Failed to mirror preference to graph",
				zap.String("user_id", userID),
				zap.String("field", field),
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) getJobDetails(ctx context.Context, p *JobDetailsParams) (string, error) {
	l, err := d.catalogue.ListingByID(ctx, p.JobID)
	if stderrors.Is(err, relational.ErrListingNotFound) {
		return "Job not found.", nil
	}
	if err != nil {
		return "", err
	}

	parts := []string{l.Title}
	if l.CompanyName != "" {
		parts[0] += " at " + l.CompanyName
	}
	if l.Location != "" {
		parts = append(parts, "Location: "+l.Location)
	}
	if l.IsRemote {
		parts = append(parts, "Remote work available")
	}
	if l.SalaryMin != nil || l.SalaryMax != nil {
		parts = append(parts, "Salary: "+dayRate(l.SalaryCurrency, l.SalaryMin, l.SalaryMax))
	}
	if desc := forSpeech(plainText(l.Description), constants.VoiceDescriptionLimit); desc != "" {
		parts = append(parts, "Description: "+desc)
	}
	if l.Slug != "" {
		parts = append(parts, fmt.Sprintf("View at %s/job/%s", d.opts.SiteBaseURL, l.Slug))
	}
	return strings.Join(parts, ". "), nil
}

func (d *Dispatcher) searchArticles(ctx context.Context, p *SearchArticlesParams) (string, error) {
	articles, err := d.catalogue.SearchArticles(ctx, p.Topic, clampLimit(p.Limit))
	if err != nil {
		return "", err
	}

	if len(articles) == 0 {
		if p.Topic != "" {
			return fmt.Sprintf("No articles found about %s. Try a different topic.", p.Topic), nil
		}
		return "No articles available at the moment.", nil
	}

	items := make([]string, 0, len(articles))
	for _, a := range articles {
		item := a.Title
		if a.Category != "" {
			item += " (" + a.Category + ")"
		}
		if a.Slug != "" {
			item += fmt.Sprintf(" - Read at %s/articles/%s", d.opts.SiteBaseURL, a.Slug)
		}
		items = append(items, item)
	}
	return fmt.Sprintf("Found %d articles: %s", len(articles), strings.Join(items, ". ")), nil
}

// confirmation is embedded in the reply so the client can render a
// confirm/reject control before anything is saved
type confirmation struct {
	Action         string   `json:"action"`
	PreferenceType string   `json:"preference_type"`
	Values         []string `json:"values"`
	UserID         string   `json:"user_id,omitempty"`
}

var confirmPhrases = map[string]string{
	"role":         "roles like",
	"industry":     "the",
	"location":     "working in",
	"availability": "working",
	"day_rate":     "a day rate of",
}

func (d *Dispatcher) confirmPreference(p *ConfirmPreferenceParams) (string, error) {
	payload, err := json.Marshal(confirmation{
		Action:         "CONFIRM_PREFERENCE",
		PreferenceType: p.PreferenceType,
		Values:         p.ExtractedValues,
		UserID:         p.UserID,
	})
	if err != nil {
		return "", err
	}

	subject := strings.Join(p.ExtractedValues, ", ")
	if p.PreferenceType == "industry" {
		subject += " industry"
	}
	// Types without a phrase are read back as the bare values
	if phrase := confirmPhrases[p.PreferenceType]; phrase != "" {
		subject = phrase + " " + subject
	}
	return fmt.Sprintf("[CONFIRM_PREFERENCE:%s] I want to make sure I've got this right. You're interested in %s. Is that correct?",
		payload, subject), nil
}

func allowedField(field string) bool {
	for _, f := range relational.AllowedProfileFields {
		if f == field {
			return true
		}
	}
	return false
}

// clampLimit applies the default and maximum search sizes
func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return constants.DefaultSearchLimit
	case limit > constants.MaxSearchLimit:
		return constants.MaxSearchLimit
	}
	return limit
}
