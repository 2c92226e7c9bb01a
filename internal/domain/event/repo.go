package event

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("event not found")

// Repository lookups are scoped by owner: another owner's event is
// indistinguishable from a missing one.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, ownerID string, id uuid.UUID) (*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, ownerID string, id uuid.UUID) error
	ListByOwner(ctx context.Context, ownerID string, activeOnly bool, limit, offset int) ([]*Event, int, error)
}
