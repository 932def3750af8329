// Package relational reads user facts and catalogue data from the Postgres
// system of record.
package relational

import (
	"context"
	stderrors "errors"
	"fmt"

	"fractional-quest/backend/internal/graph"
	apperrors "fractional-quest/backend/pkg/errors"
	"fractional-quest/backend/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrUserNotFound means the store is reachable but has no such user
var ErrUserNotFound = stderrors.New("user not found")

// ErrListingNotFound means no listing has the requested id
var ErrListingNotFound = stderrors.New("listing not found")

// querier is the subset of pgxpool.Pool the store uses
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store handles all Postgres operations
type Store struct {
	db     querier
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore opens a connection pool. The pool connects lazily, so an
// unreachable database surfaces on the first query, not here.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return &Store{
		db:     pool,
		pool:   pool,
		logger: logger.Named("relational"),
	}, nil
}

// Ping checks that the database answers
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if err := s.pool.Ping(ctx); err != nil {
		return apperrors.NewStoreUnavailable("ping", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// resolveUser maps the external auth id to the internal user id
func (s *Store) resolveUser(ctx context.Context, userID string) (string, error) {
	var internalID string
	err := s.db.QueryRow(ctx,
		`SELECT id::text FROM users WHERE neon_auth_id = $1 LIMIT 1`,
		userID,
	).Scan(&internalID)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", apperrors.NewStoreUnavailable("resolve user", err)
	}
	return internalID, nil
}

// UserFacts reads everything known about a user. It returns
// ErrUserNotFound when the user does not exist and a store error when any
// query fails.
func (s *Store) UserFacts(ctx context.Context, userID string) (graph.Facts, error) {
	internalID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return graph.Facts{}, err
	}

	var facts graph.Facts
	if facts.Skills, err = s.userSkills(ctx, internalID); err != nil {
		return graph.Facts{}, err
	}
	if facts.Companies, err = s.userCompanies(ctx, internalID); err != nil {
		return graph.Facts{}, err
	}
	if facts.Preferences, err = s.userPreferences(ctx, internalID); err != nil {
		return graph.Facts{}, err
	}
	if facts.Listings, err = s.matchedListings(ctx); err != nil {
		return graph.Facts{}, err
	}
	if facts.Relations, err = s.skillRelations(ctx, internalID); err != nil {
		return graph.Facts{}, err
	}

	s.logger.Debug("Read user facts",
		zap.String("user_id", userID),
		zap.Int("skills", len(facts.Skills)),
		zap.Int("companies", len(facts.Companies)),
		zap.Int("preferences", len(facts.Preferences)),
		zap.Int("listings", len(facts.Listings)),
		zap.Int("relations", len(facts.Relations)),
	)
	return facts, nil
}

func (s *Store) userSkills(ctx context.Context, internalID string) ([]graph.Skill, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, skill_name, COALESCE(category, ''), COALESCE(confidence, 0.8)::float8
		FROM user_skills
		WHERE user_id::text = $1
		ORDER BY confidence DESC NULLS LAST, years_experience DESC NULLS LAST
		LIMIT 20
	`, internalID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("user skills", err)
	}
	skills, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.Skill, error) {
		var sk graph.Skill
		err := row.Scan(&sk.ID, &sk.Name, &sk.Category, &sk.Confidence)
		return sk, err
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("user skills", err)
	}
	return skills, nil
}

func (s *Store) userCompanies(ctx context.Context, internalID string) ([]graph.Company, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT
			id::text,
			COALESCE(extracted_data->>'name', ''),
			COALESCE(extracted_data->>'role', '')
		FROM extraction_pending
		WHERE user_id::text = $1
			AND item_type = 'company'
			AND status = 'confirmed'
		ORDER BY 2
		LIMIT 10
	`, internalID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("user companies", err)
	}
	companies, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.Company, error) {
		var c graph.Company
		err := row.Scan(&c.ID, &c.Name, &c.Role)
		return c, err
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("user companies", err)
	}
	return companies, nil
}

func (s *Store) userPreferences(ctx context.Context, internalID string) ([]graph.Preference, error) {
	rows, err := s.db.Query(ctx, `
		SELECT preference_type, preference_value
		FROM user_preferences
		WHERE user_id::text = $1
		ORDER BY preference_type, preference_value
		LIMIT 10
	`, internalID)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("user preferences", err)
	}
	prefs, err := pgx.CollectRows(rows, pgx.RowToStructByPos[graph.Preference])
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("user preferences", err)
	}
	return prefs, nil
}

// skillRelations reads catalogue links between two skills the user holds.
// Skills are matched to the catalogue by name, and the relation is keyed by
// the user's own skill rows so it lands on their skill nodes. A database
// without the catalogue tables has no relations.
func (s *Store) skillRelations(ctx context.Context, internalID string) ([]graph.Relation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT
			us1.id::text,
			us2.id::text,
			COALESCE(r.relationship_type, 'related')
		FROM skill_relationships r
		JOIN skills s1 ON s1.id = r.skill_id_1
		JOIN skills s2 ON s2.id = r.skill_id_2
		JOIN user_skills us1 ON us1.user_id::text = $1 AND lower(us1.skill_name) = lower(s1.name)
		JOIN user_skills us2 ON us2.user_id::text = $1 AND lower(us2.skill_name) = lower(s2.name)
		WHERE us1.id <> us2.id
		ORDER BY 1, 2
		LIMIT 20
	`, internalID)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, apperrors.NewStoreUnavailable("skill relations", err)
	}
	relations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.Relation, error) {
		r := graph.Relation{FromKind: graph.KindSkill, ToKind: graph.KindSkill}
		err := row.Scan(&r.FromKey, &r.ToKey, &r.Label)
		return r, err
	})
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, apperrors.NewStoreUnavailable("skill relations", err)
	}
	return relations, nil
}

// isUndefinedTable reports a 42P01 error from Postgres
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// matchedListingScore is the fixed score given to recent active listings
const matchedListingScore = 0.85

func (s *Store) matchedListings(ctx context.Context) ([]graph.Listing, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, title, COALESCE(company_name, '')
		FROM jobs
		WHERE is_active = true AND is_fractional = true
		ORDER BY posted_date DESC NULLS LAST, id
		LIMIT 5
	`)
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("matched listings", err)
	}
	listings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (graph.Listing, error) {
		l := graph.Listing{Score: matchedListingScore}
		err := row.Scan(&l.ID, &l.Title, &l.Company)
		return l, err
	})
	if err != nil {
		return nil, apperrors.NewStoreUnavailable("matched listings", err)
	}
	return listings, nil
}
