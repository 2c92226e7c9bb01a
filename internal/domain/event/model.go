package event

import (
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDurationMinutes = 30
	MaxDurationMinutes     = 12 * 60
	MaxNameLength          = 255
)

// Event is a bookable session type offered by an owner.
type Event struct {
	ID              uuid.UUID `db:"id" json:"id"`
	OwnerID         string    `db:"owner_id" json:"owner_id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsActive        *bool     `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the event accepts bookings.
func (e *Event) Active() bool {
	return e.IsActive != nil && *e.IsActive
}

// Duration is DurationMinutes as a time.Duration.
func (e *Event) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}
