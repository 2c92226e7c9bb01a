package booking

import (
	"time"

	"github.com/google/uuid"

	"github.com/Jereck/tarot-time/internal/platform/calendar"
	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

const (
	// MaxCandidates bounds one resolution request.
	MaxCandidates = 10000

	maxGuestNameLength  = 255
	maxGuestNotesLength = 2000
)

// SessionRequest asks which of Candidates can start a session of
// EventDurationMinutes with OwnerID. Output keeps the candidates' order.
type SessionRequest struct {
	OwnerID              string
	EventDurationMinutes int
	Candidates           []time.Time
}

func (r SessionRequest) Duration() time.Duration {
	return time.Duration(r.EventDurationMinutes) * time.Minute
}

// GuestInfo identifies the person booking.
type GuestInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes,omitempty"`
}

func (g GuestInfo) attendee() calendar.Attendee {
	return calendar.Attendee{Name: g.Name, Email: g.Email, Notes: g.Notes}
}

// CommitRequest is a guest's chosen wall-clock start, read in Timezone.
type CommitRequest struct {
	OwnerID  string
	EventID  uuid.UUID
	Start    zonedtime.WallClock
	Timezone string
	Guest    GuestInfo
}

// ResolvedMeeting is a booking that has been validated and written to the
// owner's calendar.
type ResolvedMeeting struct {
	OwnerID         string    `json:"owner_id"`
	EventID         uuid.UUID `json:"event_id"`
	BookedEventID   string    `json:"booked_event_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	EventName       string    `json:"event_name"`
	Guest           GuestInfo `json:"guest"`
}
