// Package calendar holds the external-calendar collaborators of the booking
// engine: providers of busy time and committers of booked events.
package calendar

import (
	"context"
	"crypto/sha256"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidSpan = errors.New("range end must be after start")

// ErrEventConflict means the event id for a booking is held by a live event
// that belongs to a different booking.
var ErrEventConflict = errors.New("event id already holds a different booking")

// BusyInterval is an externally booked span [Start, End).
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether [start, end) intersects the interval. Spans that
// only touch at an endpoint do not overlap.
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return start.Before(b.End) && b.Start.Before(end)
}

// Attendee is the guest added to a booked event.
type Attendee struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Notes string `json:"notes,omitempty"`
}

// NewEvent describes one event to create on an owner's calendar.
type NewEvent struct {
	OwnerID         string
	Start           time.Time
	DurationMinutes int
	EventName       string
	Guest           Attendee
	// IdempotencyKey is stable for an (owner, start) pair. Committers use it
	// to make a replayed create return the original event. An existing event
	// only counts as the original when it describes the same booking.
	IdempotencyKey string
}

func (e NewEvent) End() time.Time {
	return e.Start.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// SameBooking reports whether o books the same guest into the same slot.
func (e NewEvent) SameBooking(o NewEvent) bool {
	return e.OwnerID == o.OwnerID &&
		e.Start.Equal(o.Start) &&
		e.DurationMinutes == o.DurationMinutes &&
		e.Summary() == o.Summary() &&
		strings.EqualFold(e.Guest.Email, o.Guest.Email)
}

// Summary is the title shown on both calendars.
func (e NewEvent) Summary() string {
	return e.Guest.Name + " + " + e.EventName
}

// BusyProvider returns the busy intervals of an owner that intersect
// [start, end). Intervals may be unsorted and may overlap each other.
type BusyProvider interface {
	BusyIntervals(ctx context.Context, ownerID string, start, end time.Time) ([]BusyInterval, error)
}

// Committer creates the booked event and returns its external id.
type Committer interface {
	CreateBookedEvent(ctx context.Context, ev NewEvent) (string, error)
}

// BookingKey is the idempotency key for a booking of ownerID at start.
func BookingKey(ownerID string, start time.Time) string {
	return "booking:" + ownerID + ":" + start.UTC().Format(time.RFC3339)
}

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// EventID derives an external event id from an idempotency key. The output
// uses only [0-9a-v], the alphabet Google Calendar accepts for client ids.
func EventID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return strings.ToLower(eventIDEncoding.EncodeToString(sum[:20]))
}

// MaxEventIDAttempts bounds the ids tried for one idempotency key when
// earlier ids are held by cancelled events.
const MaxEventIDAttempts = 5

// AttemptEventID is the event id for the given attempt at key. Attempt 0 is
// EventID(key).
func AttemptEventID(key string, attempt int) string {
	if attempt == 0 {
		return EventID(key)
	}
	return EventID(fmt.Sprintf("%s#%d", key, attempt))
}
