package gateway

import (
	"context"

	apperrors "fractional-quest/backend/pkg/errors"
)

// DisabledGraph stands in for a graph service with no credentials
type DisabledGraph struct{}

func (DisabledGraph) EnsureSubject(context.Context, string, map[string]string) error {
	return apperrors.ErrSourceDisabled
}

func (DisabledGraph) Append(context.Context, string, Payload) error {
	return apperrors.ErrSourceDisabled
}

func (DisabledGraph) Query(context.Context, string, string, int) (*GraphResult, error) {
	return nil, apperrors.ErrSourceDisabled
}

// DisabledMemory stands in for a memory service with no credentials
type DisabledMemory struct{}

func (DisabledMemory) Store(context.Context, string, string, map[string]interface{}) error {
	return apperrors.ErrSourceDisabled
}

func (DisabledMemory) Search(context.Context, string, string, int) ([]Snippet, error) {
	return nil, apperrors.ErrSourceDisabled
}
