package relational

import (
	"context"
	stderrors "errors"

	apperrors "fractional-quest/backend/pkg/errors"
	"github.com/jackc/pgx/v5"
)

// Profile is the user's self-described profile
type Profile struct {
	FirstName            string
	LastName             string
	Email                string
	CurrentCountry       string
	DestinationCountries []string
	BudgetMonthly        string
	Timeline             string
	Interests            string
}

// SkillRecord is a skill as the user stated it
type SkillRecord struct {
	Name            string
	Level           string
	YearsExperience *int32
}

// ListingRecord is a job listing row
type ListingRecord struct {
	ID             string
	Slug           string
	Title          string
	CompanyName    string
	Location       string
	IsRemote       bool
	SalaryMin      *int64
	SalaryMax      *int64
	SalaryCurrency string
	Description    string
	Requirements   string
	URL            string
}

// ListingFilter narrows a listing search. Empty strings match everything.
type ListingFilter struct {
	RoleType string
	Location string
	Remote   *bool
	Limit    int
}

// Article is a published article
type Article struct {
	ID       string
	Slug     string
	Title    string
	Summary  string
	Category string
}

func likePattern(s string) string {
	if s == "" {
		return "%"
	}
	return "%" + s + "%"
}

// Profile reads the user's profile; ErrUserNotFound when absent
func (s *Store) Profile(ctx context.Context, userID string) (*Profile, error) {
	var p Profile
	err := s.db.QueryRow(ctx, `
		SELECT
			COALESCE(first_name, ''),
			COALESCE(last_name, ''),
			COALESCE(email, ''),
			COALESCE(current_country, ''),
			COALESCE(destination_countries, '{}'),
			COALESCE(budget_monthly::text, ''),
			COALESCE(timeline, ''),
			COALESCE(relocation_motivation, '')
		FROM users
		WHERE neon_auth_id = $1
		LIMIT 1
	`, userID).Scan(
		&p.FirstName, &p.LastName, &p.Email, &p.CurrentCountry,
		&p.DestinationCountries, &p.BudgetMonthly, &p.Timeline, &p.Interests,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("profile", err)
	}
	return &p, nil
}

// Skills reads the user's ten most experienced skills
func (s *Store) Skills(ctx context.Context, userID string) ([]SkillRecord, error) {
	internalID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT skill_name, COALESCE(skill_level, ''), years_experience
		FROM user_skills
		WHERE user_id::text = $1
		ORDER BY years_experience DESC NULLS LAST
		LIMIT 10
	`, internalID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("skills", err)
	}
	skills, err := pgx.CollectRows(rows, pgx.RowToStructByPos[SkillRecord])
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("skills", err)
	}
	return skills, nil
}

const listingColumns = `
	id::text, COALESCE(slug, ''), title, COALESCE(company_name, ''),
	COALESCE(location, ''), COALESCE(is_remote, false),
	salary_min::bigint, salary_max::bigint, COALESCE(salary_currency, ''),
	COALESCE(description, ''), COALESCE(requirements, ''), COALESCE(url, '')
`

// SearchListings finds active part-time listings, newest first
func (s *Store) SearchListings(ctx context.Context, f ListingFilter) ([]ListingRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+listingColumns+`
		FROM jobs
		WHERE is_active = true
			AND (is_fractional = true OR LOWER(title) LIKE '%part-time%')
			AND LOWER(title) LIKE LOWER($1)
			AND LOWER(COALESCE(location, '')) LIKE LOWER($2)
			AND ($3::boolean IS NULL OR COALESCE(is_remote, false) = $3)
		ORDER BY posted_date DESC NULLS LAST, id
		LIMIT $4
	`, likePattern(f.RoleType), likePattern(f.Location), f.Remote, f.Limit)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("search listings", err)
	}
	listings, err := pgx.CollectRows(rows, pgx.RowToStructByPos[ListingRecord])
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("search listings", err)
	}
	return listings, nil
}

// ListingByID reads one listing; ErrListingNotFound when absent
func (s *Store) ListingByID(ctx context.Context, id string) (*ListingRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+listingColumns+`
		FROM jobs
		WHERE id::text = $1
		LIMIT 1
	`, id)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("listing", err)
	}
	listing, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[ListingRecord])
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("listing", err)
	}
	return listing, nil
}

// SearchArticles finds published articles whose title, summary or category
// mention the topic
func (s *Store) SearchArticles(ctx context.Context, topic string, limit int) ([]Article, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, COALESCE(slug, ''), title, COALESCE(summary, ''), COALESCE(category, '')
		FROM articles
		WHERE is_published = true
			AND (LOWER(title) LIKE LOWER($1)
				OR LOWER(COALESCE(summary, '')) LIKE LOWER($1)
				OR LOWER(COALESCE(category, '')) LIKE LOWER($1))
		ORDER BY published_date DESC NULLS LAST, id
		LIMIT $2
	`, likePattern(topic), limit)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("search articles", err)
	}
	articles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Article])
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("search articles", err)
	}
	return articles, nil
}
