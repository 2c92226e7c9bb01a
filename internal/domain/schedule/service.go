package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

// ErrInvalid wraps every validation failure from SaveSchedule.
var ErrInvalid = errors.New("invalid schedule")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "schedule").Logger()}
}

// GetSchedule returns ErrNotFound when the owner has no schedule.
func (s *Service) GetSchedule(ctx context.Context, ownerID string) (*Schedule, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalid)
	}
	return s.repo.GetByOwner(ctx, ownerID)
}

// SaveSchedule replaces the owner's whole schedule.
func (s *Service) SaveSchedule(ctx context.Context, ownerID, timezone string, blocks []Availability) (*Schedule, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner_id is required", ErrInvalid)
	}
	if _, err := zonedtime.LoadLocation(timezone); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i, b := range blocks {
		if err := ValidateAvailability(b); err != nil {
			return nil, fmt.Errorf("%w: availabilities[%d]: %v", ErrInvalid, i, err)
		}
	}

	sorted := make([]Availability, len(blocks))
	copy(sorted, blocks)
	SortAvailabilities(sorted)

	sched := &Schedule{OwnerID: ownerID, Timezone: timezone, Availabilities: sorted}
	if err := s.repo.Save(ctx, sched); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("owner_id", ownerID).
		Str("timezone", timezone).
		Int("blocks", len(sorted)).
		Msg("schedule saved")
	return sched, nil
}

// ValidateAvailability checks a single block. Blocks never wrap midnight.
func ValidateAvailability(a Availability) error {
	if !a.DayOfWeek.Valid() {
		return fmt.Errorf("%w: %q", zonedtime.ErrInvalidDay, a.DayOfWeek)
	}
	if !a.StartTime.Valid() || !a.EndTime.ValidEnd() {
		return zonedtime.ErrInvalidTimeOfDay
	}
	if !a.StartTime.Before(a.EndTime) {
		return fmt.Errorf("start_time %s must be before end_time %s", a.StartTime, a.EndTime)
	}
	return nil
}
