package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Google reads free/busy data from and books events into Google Calendar.
type Google struct {
	svc        *gcal.Service
	calendarID func(ownerID string) string
}

// NewGoogle builds the adapter. calendarID maps an owner to the calendar to
// use; nil means the owner id is itself the calendar id (the owner's primary
// calendar address).
func NewGoogle(ctx context.Context, calendarID func(ownerID string) string, opts ...option.ClientOption) (*Google, error) {
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create google calendar service: %w", err)
	}
	if calendarID == nil {
		calendarID = func(ownerID string) string { return ownerID }
	}
	return &Google{svc: svc, calendarID: calendarID}, nil
}

func (g *Google) BusyIntervals(ctx context.Context, ownerID string, start, end time.Time) ([]BusyInterval, error) {
	if !end.After(start) {
		return nil, ErrInvalidSpan
	}
	calID := g.calendarID(ownerID)

	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google freebusy: %w", err)
	}

	fb, ok := resp.Calendars[calID]
	if !ok {
		return nil, fmt.Errorf("google freebusy: calendar %q missing from response", calID)
	}
	if len(fb.Errors) > 0 {
		return nil, fmt.Errorf("google freebusy: calendar %q: %s", calID, fb.Errors[0].Reason)
	}

	out := make([]BusyInterval, 0, len(fb.Busy))
	for _, p := range fb.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("google freebusy: parse start %q: %w", p.Start, err)
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("google freebusy: parse end %q: %w", p.End, err)
		}
		out = append(out, BusyInterval{Start: s, End: e})
	}
	return out, nil
}

// CreateBookedEvent inserts the event with a client-supplied id derived from
// the idempotency key. A 409 means the id is taken. The existing event is
// returned when it is live and describes the same booking, so a replay is
// idempotent. When it was cancelled the next attempt id is tried, and a live
// event for a different booking fails with ErrEventConflict.
func (g *Google) CreateBookedEvent(ctx context.Context, ev NewEvent) (string, error) {
	calID := g.calendarID(ev.OwnerID)
	body := &gcal.Event{
		Summary:     ev.Summary(),
		Description: ev.Guest.Notes,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: ev.End().UTC().Format(time.RFC3339)},
		Attendees: []*gcal.EventAttendee{{
			Email:       ev.Guest.Email,
			DisplayName: ev.Guest.Name,
		}},
	}

	for attempt := 0; attempt < MaxEventIDAttempts; attempt++ {
		body.Id = AttemptEventID(ev.IdempotencyKey, attempt)

		created, err := g.svc.Events.Insert(calID, body).SendUpdates("all").Context(ctx).Do()
		if err == nil {
			return created.Id, nil
		}
		var apiErr *googleapi.Error
		if !errors.As(err, &apiErr) || apiErr.Code != http.StatusConflict {
			return "", fmt.Errorf("google insert event: %w", err)
		}

		existing, err := g.svc.Events.Get(calID, body.Id).Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("google get existing event: %w", err)
		}
		if existing.Status == "cancelled" {
			continue
		}
		if !sameGoogleEvent(existing, ev) {
			return "", fmt.Errorf("google insert event %s: %w", body.Id, ErrEventConflict)
		}
		return existing.Id, nil
	}
	return "", fmt.Errorf("google insert event: %d cancelled events hold key %q: %w",
		MaxEventIDAttempts, ev.IdempotencyKey, ErrEventConflict)
}

func sameGoogleEvent(existing *gcal.Event, ev NewEvent) bool {
	if existing.Summary != ev.Summary() || existing.Start == nil || existing.End == nil {
		return false
	}
	start, err := time.Parse(time.RFC3339, existing.Start.DateTime)
	if err != nil || !start.Equal(ev.Start) {
		return false
	}
	end, err := time.Parse(time.RFC3339, existing.End.DateTime)
	if err != nil || !end.Equal(ev.End()) {
		return false
	}
	for _, a := range existing.Attendees {
		if strings.EqualFold(a.Email, ev.Guest.Email) {
			return true
		}
	}
	return false
}
