package schedule

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("schedule not found")

type Repository interface {
	// GetByOwner returns ErrNotFound when the owner has never saved a schedule.
	GetByOwner(ctx context.Context, ownerID string) (*Schedule, error)
	// Save upserts the schedule on owner and replaces its availability set
	// atomically. ID, CreatedAt and UpdatedAt are filled in on success.
	Save(ctx context.Context, s *Schedule) error
}
