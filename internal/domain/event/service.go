package event

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalid wraps validation failures.
var ErrInvalid = errors.New("invalid event")

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateEvent(ctx context.Context, e *Event) error {
	if e.DurationMinutes == 0 {
		e.DurationMinutes = DefaultDurationMinutes
	}
	if e.IsActive == nil {
		active := true
		e.IsActive = &active
	}
	if err := validate(e); err != nil {
		return err
	}
	return s.repo.Create(ctx, e)
}

func (s *Service) GetEvent(ctx context.Context, ownerID string, id uuid.UUID) (*Event, error) {
	return s.repo.GetByID(ctx, ownerID, id)
}

// GetActiveEvent returns ErrNotFound for events that are missing, owned by
// someone else, or inactive.
func (s *Service) GetActiveEvent(ctx context.Context, ownerID string, id uuid.UUID) (*Event, error) {
	e, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !e.Active() {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *Service) UpdateEvent(ctx context.Context, e *Event) error {
	if e.IsActive == nil {
		active := true
		e.IsActive = &active
	}
	if err := validate(e); err != nil {
		return err
	}
	return s.repo.Update(ctx, e)
}

func (s *Service) DeleteEvent(ctx context.Context, ownerID string, id uuid.UUID) error {
	return s.repo.Delete(ctx, ownerID, id)
}

func (s *Service) ListEvents(ctx context.Context, ownerID string, activeOnly bool, limit, offset int) ([]*Event, int, error) {
	return s.repo.ListByOwner(ctx, ownerID, activeOnly, limit, offset)
}

func validate(e *Event) error {
	if e.OwnerID == "" {
		return fmt.Errorf("%w: owner_id is required", ErrInvalid)
	}
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(e.Name) > MaxNameLength {
		return fmt.Errorf("%w: name must be at most %d characters", ErrInvalid, MaxNameLength)
	}
	if e.DurationMinutes < 1 || e.DurationMinutes > MaxDurationMinutes {
		return fmt.Errorf("%w: duration_minutes must be between 1 and %d", ErrInvalid, MaxDurationMinutes)
	}
	return nil
}
