package relational

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "fractional-quest/backend/pkg/errors"
	"go.uber.org/zap"
)

// ErrFieldNotAllowed means the caller tried to write a profile field outside
// the whitelist
var ErrFieldNotAllowed = stderrors.New("field not allowed")

// AllowedProfileFields lists the writable profile fields, in display order
var AllowedProfileFields = []string{"interests", "timeline", "budget_monthly", "current_country"}

// profileColumns maps each writable field to its column
var profileColumns = map[string]string{
	"interests":       "relocation_motivation",
	"timeline":        "timeline",
	"budget_monthly":  "budget_monthly",
	"current_country": "current_country",
}

// SaveProfileField updates one whitelisted field of the user's profile
func (s *Store) SaveProfileField(ctx context.Context, userID, field, value string) error {
	column, ok := profileColumns[field]
	if !ok {
		return fmt.Errorf("%w: %s (allowed: %s)", ErrFieldNotAllowed, field, strings.Join(AllowedProfileFields, ", "))
	}

	// column comes from the whitelist above, never from input
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`UPDATE users SET %s = $1 WHERE neon_auth_id = $2`, column),
		value, userID,
	)
	if err != nil {
		return apperrors.NewStoreUnavailable("save profile field", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	s.logger.Info("Saved profile field",
		zap.String("user_id", userID),
		zap.String("field", field),
	)
	return nil
}

// SavePreference records a confirmed preference; repeated values are kept once
func (s *Store) SavePreference(ctx context.Context, userID, prefType string, values []string) error {
	internalID, err := s.resolveUser(ctx, userID)
	if err != nil {
		return err
	}

	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, err := s.db.Exec(ctx, `
			INSERT INTO user_preferences (user_id, preference_type, preference_value)
			SELECT id, $2, $3 FROM users WHERE id::text = $1
			ON CONFLICT DO NOTHING
		`, internalID, prefType, v); err != nil {
			return apperrors.NewStoreUnavailable("save preference", err)
		}
	}
	return nil
}
