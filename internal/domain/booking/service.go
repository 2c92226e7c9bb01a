// Package booking resolves which start times an owner can be booked at and
// commits a guest's chosen time to the owner's calendar.
package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Jereck/tarot-time/internal/domain/event"
	"github.com/Jereck/tarot-time/internal/domain/schedule"
	"github.com/Jereck/tarot-time/internal/platform/calendar"
	"github.com/Jereck/tarot-time/internal/platform/idempotency"
	"github.com/Jereck/tarot-time/internal/platform/telemetry"
	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

// ScheduleSource returns schedule.ErrNotFound for owners without a schedule.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, ownerID string) (*schedule.Schedule, error)
}

// EventDirectory returns event.ErrNotFound for missing or inactive events.
type EventDirectory interface {
	GetActiveEvent(ctx context.Context, ownerID string, id uuid.UUID) (*event.Event, error)
}

type Config struct {
	FetchTimeout  time.Duration
	CreateTimeout time.Duration
	GuardTTL      time.Duration
	Step          time.Duration
	Horizon       time.Duration
}

func (c *Config) applyDefaults() {
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	if c.CreateTimeout <= 0 {
		c.CreateTimeout = 10 * time.Second
	}
	if c.GuardTTL <= 0 {
		c.GuardTTL = 15 * time.Minute
	}
	if c.Step <= 0 {
		c.Step = 15 * time.Minute
	}
	if c.Horizon <= 0 {
		c.Horizon = 60 * 24 * time.Hour
	}
}

// Deps are the collaborators the service reads from and writes to.
type Deps struct {
	Schedules ScheduleSource
	Events    EventDirectory
	Busy      calendar.BusyProvider
	Committer calendar.Committer
	Guard     idempotency.Guard
	Metrics   *telemetry.BookingMetrics
}

type Service struct {
	schedules ScheduleSource
	events    EventDirectory
	busy      calendar.BusyProvider
	committer calendar.Committer
	guard     idempotency.Guard
	metrics   *telemetry.BookingMetrics
	cfg       Config
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(deps Deps, cfg Config, logger zerolog.Logger) *Service {
	cfg.applyDefaults()
	guard := deps.Guard
	if guard == nil {
		guard = idempotency.NewMemoryGuard()
	}
	return &Service{
		schedules: deps.Schedules,
		events:    deps.Events,
		busy:      deps.Busy,
		committer: deps.Committer,
		guard:     guard,
		metrics:   deps.Metrics,
		cfg:       cfg,
		logger:    logger.With().Str("component", "booking").Logger(),
		tracer:    otel.Tracer("tarot-time.internal.domain.booking"),
		now:       time.Now,
	}
}

// Resolve returns the subsequence of req.Candidates that the owner can be
// booked at for the requested duration. The schedule is read once and busy
// time is fetched once for the span covering every candidate. An owner
// without a schedule has no bookable times.
func (s *Service) Resolve(ctx context.Context, req SessionRequest) ([]time.Time, error) {
	ctx, span := s.tracer.Start(ctx, "booking.resolve", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.Int("candidates", len(req.Candidates)),
	))
	defer span.End()

	out, err := s.resolve(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
		s.metrics.ObserveResolution(outcomeOf(err), len(req.Candidates), 0)
		return nil, err
	}
	span.SetAttributes(attribute.Int("available", len(out)))
	s.metrics.ObserveResolution("ok", len(req.Candidates), len(out))
	return out, nil
}

func (s *Service) resolve(ctx context.Context, req SessionRequest) ([]time.Time, error) {
	if err := validateSession(req); err != nil {
		return nil, &Error{Op: OpValidate, Kind: ErrInvalidInput, OwnerID: req.OwnerID, Err: err}
	}
	if len(req.Candidates) == 0 {
		return []time.Time{}, nil
	}

	sched, loc, err := s.fetchSchedule(ctx, req.OwnerID)
	if err != nil {
		return nil, err
	}
	if sched == nil || len(sched.Availabilities) == 0 {
		return []time.Time{}, nil
	}

	start, end := span(req.Candidates, req.Duration())
	busy, err := s.fetchBusy(ctx, req.OwnerID, start, end)
	if err != nil {
		return nil, err
	}
	return Resolve(req.Candidates, req.Duration(), sched, loc, busy), nil
}

// fetchSchedule returns a nil schedule when the owner has none.
func (s *Service) fetchSchedule(ctx context.Context, ownerID string) (*schedule.Schedule, *time.Location, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	started := time.Now()
	sched, err := s.schedules.GetSchedule(ctx, ownerID)
	if errors.Is(err, schedule.ErrNotFound) {
		err = nil
		sched = nil
	}
	s.metrics.ObserveCollaborator("schedule", err, time.Since(started).Seconds())
	if err != nil {
		return nil, nil, &Error{Op: OpGetSchedule, Kind: ErrCollaborator, OwnerID: ownerID, Err: err}
	}
	if sched == nil {
		return nil, nil, nil
	}

	loc, err := sched.Location()
	if err != nil {
		return nil, nil, &Error{Op: OpGetSchedule, Kind: ErrCollaborator, OwnerID: ownerID, Err: err}
	}
	return sched, loc, nil
}

func (s *Service) fetchBusy(ctx context.Context, ownerID string, start, end time.Time) ([]calendar.BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	started := time.Now()
	busy, err := s.busy.BusyIntervals(ctx, ownerID, start, end)
	s.metrics.ObserveCollaborator("busy", err, time.Since(started).Seconds())
	if err != nil {
		return nil, &Error{Op: OpBusyIntervals, Kind: ErrCollaborator, OwnerID: ownerID, Instant: start, Err: err}
	}
	return busy, nil
}

// ResolveForEvent resolves candidates for the duration of one of the owner's
// active events. Candidates are checked before the event is looked up.
func (s *Service) ResolveForEvent(ctx context.Context, ownerID string, eventID uuid.UUID, candidates []time.Time) (*event.Event, []time.Time, error) {
	if err := validateCandidates(candidates); err != nil {
		return nil, nil, &Error{Op: OpValidate, Kind: ErrInvalidInput, OwnerID: ownerID, EventID: eventID.String(), Err: err}
	}
	ev, err := s.activeEvent(ctx, ownerID, eventID)
	if err != nil {
		return nil, nil, err
	}
	out, err := s.Resolve(ctx, SessionRequest{
		OwnerID:              ownerID,
		EventDurationMinutes: ev.DurationMinutes,
		Candidates:           candidates,
	})
	if err != nil {
		return nil, nil, err
	}
	return ev, out, nil
}

// AvailableTimes resolves the step grid between from and to. The range is
// clipped to start no earlier than now and to end within the booking horizon.
// A zero to means the full horizon.
func (s *Service) AvailableTimes(ctx context.Context, ownerID string, eventID uuid.UUID, from, to time.Time) (*event.Event, []time.Time, error) {
	now := s.now()
	if from.Before(now) {
		from = now
	}
	limit := now.Add(s.cfg.Horizon)
	if to.IsZero() || to.After(limit) {
		to = limit
	}
	if !to.After(from) {
		return nil, nil, &Error{Op: OpValidate, Kind: ErrInvalidInput, OwnerID: ownerID, EventID: eventID.String(),
			Err: errors.New("range is empty or outside the booking horizon")}
	}
	return s.ResolveForEvent(ctx, ownerID, eventID, Candidates(from, to, s.cfg.Step))
}

func (s *Service) activeEvent(ctx context.Context, ownerID string, eventID uuid.UUID) (*event.Event, error) {
	if ownerID == "" || eventID == uuid.Nil {
		return nil, &Error{Op: OpValidate, Kind: ErrInvalidInput, OwnerID: ownerID, EventID: eventID.String(),
			Err: errors.New("owner and event are required")}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	started := time.Now()
	ev, err := s.events.GetActiveEvent(ctx, ownerID, eventID)
	notFound := errors.Is(err, event.ErrNotFound)
	if notFound {
		err = nil
	}
	s.metrics.ObserveCollaborator("event", err, time.Since(started).Seconds())
	if notFound {
		return nil, &Error{Op: OpGetEvent, Kind: ErrEventNotFound, OwnerID: ownerID, EventID: eventID.String()}
	}
	if err != nil {
		return nil, &Error{Op: OpGetEvent, Kind: ErrCollaborator, OwnerID: ownerID, EventID: eventID.String(), Err: err}
	}
	return ev, nil
}

// Commit books req.Start, read in the guest's zone, for the event's configured
// duration. The time is re-resolved against freshly fetched schedule and busy
// data, then claimed for the owner so a concurrent commit of the same instant
// fails. Nothing is written to the calendar unless every check passes, and
// the claim is released if the write fails.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (*ResolvedMeeting, error) {
	ctx, span := s.tracer.Start(ctx, "booking.commit", trace.WithAttributes(
		attribute.String("owner_id", req.OwnerID),
		attribute.String("event_id", req.EventID.String()),
		attribute.String("wall_clock", req.Start.String()),
		attribute.String("timezone", req.Timezone),
	))
	defer span.End()

	m, err := s.commit(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		s.metrics.ObserveCommit(outcomeOf(err))
		s.logger.Info().Err(err).
			Str("owner_id", req.OwnerID).
			Str("event_id", req.EventID.String()).
			Str("wall_clock", req.Start.String()).
			Msg("booking rejected")
		return nil, err
	}
	span.SetAttributes(attribute.String("booked_event_id", m.BookedEventID))
	s.metrics.ObserveCommit("booked")
	s.logger.Info().
		Str("owner_id", m.OwnerID).
		Str("event_id", m.EventID.String()).
		Time("instant", m.Start).
		Str("booked_event_id", m.BookedEventID).
		Msg("booking committed")
	return m, nil
}

func (s *Service) commit(ctx context.Context, req CommitRequest) (*ResolvedMeeting, error) {
	loc, err := validateCommit(req)
	if err != nil {
		return nil, &Error{Op: OpValidate, Kind: ErrInvalidInput, OwnerID: req.OwnerID, EventID: req.EventID.String(), Err: err}
	}

	ev, err := s.activeEvent(ctx, req.OwnerID, req.EventID)
	if err != nil {
		return nil, err
	}

	instant := zonedtime.InstantOf(req.Start, loc).UTC()
	fail := func(op string, kind, cause error) error {
		return &Error{Op: op, Kind: kind, OwnerID: req.OwnerID, EventID: req.EventID.String(), Instant: instant, Err: cause}
	}

	if !instant.After(s.now()) {
		return nil, fail(OpValidate, ErrTimeUnavailable, errors.New("start is in the past"))
	}

	available, err := s.resolve(ctx, SessionRequest{
		OwnerID:              req.OwnerID,
		EventDurationMinutes: ev.DurationMinutes,
		Candidates:           []time.Time{instant},
	})
	if err != nil {
		var be *Error
		if errors.As(err, &be) {
			be.EventID = req.EventID.String()
			be.Instant = instant
		}
		return nil, err
	}
	if len(available) == 0 {
		return nil, fail(OpValidate, ErrTimeUnavailable, nil)
	}

	key := calendar.BookingKey(req.OwnerID, instant)
	claimed, err := s.guard.Claim(ctx, key, s.cfg.GuardTTL)
	if err != nil {
		return nil, fail(OpClaim, ErrCollaborator, err)
	}
	if !claimed {
		return nil, fail(OpClaim, ErrTimeUnavailable, errors.New("another booking for this time is in progress"))
	}

	createCtx, cancel := context.WithTimeout(ctx, s.cfg.CreateTimeout)
	defer cancel()

	started := time.Now()
	bookedID, err := s.committer.CreateBookedEvent(createCtx, calendar.NewEvent{
		OwnerID:         req.OwnerID,
		Start:           instant,
		DurationMinutes: ev.DurationMinutes,
		EventName:       ev.Name,
		Guest:           req.Guest.attendee(),
		IdempotencyKey:  key,
	})
	s.metrics.ObserveCollaborator("calendar_create", err, time.Since(started).Seconds())
	if err != nil {
		if rerr := s.guard.Release(context.WithoutCancel(ctx), key); rerr != nil {
			s.logger.Warn().Err(rerr).Str("key", key).Msg("release booking claim")
		}
		if errors.Is(err, calendar.ErrEventConflict) {
			return nil, fail(OpCreateEvent, ErrTimeUnavailable, err)
		}
		return nil, fail(OpCreateEvent, ErrCollaborator, err)
	}

	return &ResolvedMeeting{
		OwnerID:         req.OwnerID,
		EventID:         ev.ID,
		BookedEventID:   bookedID,
		Start:           instant,
		End:             instant.Add(ev.Duration()),
		DurationMinutes: ev.DurationMinutes,
		EventName:       ev.Name,
		Guest:           req.Guest,
	}, nil
}

func validateSession(req SessionRequest) error {
	if req.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	if req.EventDurationMinutes <= 0 || req.EventDurationMinutes > event.MaxDurationMinutes {
		return fmt.Errorf("duration must be between 1 and %d minutes", event.MaxDurationMinutes)
	}
	return validateCandidates(req.Candidates)
}

func validateCandidates(candidates []time.Time) error {
	if len(candidates) > MaxCandidates {
		return fmt.Errorf("at most %d candidates per request", MaxCandidates)
	}
	for i, c := range candidates {
		if c.IsZero() {
			return fmt.Errorf("candidates[%d] is empty", i)
		}
	}
	return nil
}

func validateCommit(req CommitRequest) (*time.Location, error) {
	if req.OwnerID == "" {
		return nil, errors.New("owner_id is required")
	}
	if req.EventID == uuid.Nil {
		return nil, errors.New("event_id is required")
	}
	if req.Start.Date.Year == 0 || !req.Start.Time.Valid() {
		return nil, errors.New("start_time is required")
	}
	loc, err := zonedtime.LoadLocation(req.Timezone)
	if err != nil {
		return nil, err
	}
	if err := validateGuest(req.Guest); err != nil {
		return nil, err
	}
	return loc, nil
}

func validateGuest(g GuestInfo) error {
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return errors.New("guest_name is required")
	}
	if len(name) > maxGuestNameLength {
		return fmt.Errorf("guest_name exceeds %d characters", maxGuestNameLength)
	}
	if g.Email == "" {
		return errors.New("guest_email is required")
	}
	addr, err := mail.ParseAddress(g.Email)
	if err != nil || addr.Address != g.Email {
		return fmt.Errorf("guest_email %q is not a valid address", g.Email)
	}
	if len(g.Notes) > maxGuestNotesLength {
		return fmt.Errorf("guest_notes exceeds %d characters", maxGuestNotesLength)
	}
	return nil
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrEventNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
