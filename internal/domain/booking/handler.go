package booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jereck/tarot-time/internal/platform/zonedtime"
)

const retryAfterSeconds = "5"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the guest-facing booking endpoints. They need no
// owner authentication.
func (h *Handler) RegisterRoutes(public *echo.Group) {
	public.GET("/book/:ownerId/:eventId/times", h.ListTimes)
	public.POST("/book/:ownerId/:eventId/resolve", h.ResolveTimes)
	public.POST("/book/:ownerId/:eventId", h.Book)
}

type timesResponse struct {
	OwnerID         string      `json:"owner_id"`
	EventID         uuid.UUID   `json:"event_id"`
	EventName       string      `json:"event_name"`
	DurationMinutes int         `json:"duration_minutes"`
	Times           []time.Time `json:"times"`
}

type resolveRequest struct {
	Candidates []time.Time `json:"candidates"`
}

type bookRequest struct {
	StartTime  string `json:"start_time"`
	Timezone   string `json:"timezone"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	GuestNotes string `json:"guest_notes"`
}

func eventParam(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("eventId"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid event id")
	}
	return id, nil
}

func timeParam(c echo.Context, name string) (time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, echo.NewHTTPError(http.StatusBadRequest, name+" must be an RFC 3339 timestamp")
	}
	return t, nil
}

// mapError translates booking errors into HTTP errors. Failed reads carry
// Retry-After; a failed calendar write does not.
func mapError(c echo.Context, err error) error {
	var be *Error
	if !errors.As(err, &be) {
		return err
	}
	switch be.Kind {
	case ErrInvalidInput:
		msg := be.Kind.Error()
		if be.Err != nil {
			msg = be.Err.Error()
		}
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	case ErrEventNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	case ErrTimeUnavailable:
		return echo.NewHTTPError(http.StatusConflict, "that time is no longer available, please pick another")
	case ErrCollaborator:
		if be.Retryable() {
			c.Response().Header().Set("Retry-After", retryAfterSeconds)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "calendar temporarily unavailable").SetInternal(err)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "could not create the calendar event").SetInternal(err)
	default:
		return err
	}
}

func (h *Handler) ListTimes(c echo.Context) error {
	eventID, err := eventParam(c)
	if err != nil {
		return err
	}
	from, err := timeParam(c, "from")
	if err != nil {
		return err
	}
	to, err := timeParam(c, "to")
	if err != nil {
		return err
	}

	ownerID := c.Param("ownerId")
	ev, times, err := h.svc.AvailableTimes(c.Request().Context(), ownerID, eventID, from, to)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, timesResponse{
		OwnerID:         ownerID,
		EventID:         ev.ID,
		EventName:       ev.Name,
		DurationMinutes: ev.DurationMinutes,
		Times:           times,
	})
}

func (h *Handler) ResolveTimes(c echo.Context) error {
	eventID, err := eventParam(c)
	if err != nil {
		return err
	}
	var req resolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ownerID := c.Param("ownerId")
	ev, times, err := h.svc.ResolveForEvent(c.Request().Context(), ownerID, eventID, req.Candidates)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, timesResponse{
		OwnerID:         ownerID,
		EventID:         ev.ID,
		EventName:       ev.Name,
		DurationMinutes: ev.DurationMinutes,
		Times:           times,
	})
}

func (h *Handler) Book(c echo.Context) error {
	eventID, err := eventParam(c)
	if err != nil {
		return err
	}
	var req bookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	start, err := zonedtime.ParseWallClock(req.StartTime)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "start_time must look like "+zonedtime.WallClockLayout)
	}

	m, err := h.svc.Commit(c.Request().Context(), CommitRequest{
		OwnerID:  c.Param("ownerId"),
		EventID:  eventID,
		Start:    start,
		Timezone: req.Timezone,
		Guest: GuestInfo{
			Name:  req.GuestName,
			Email: req.GuestEmail,
			Notes: req.GuestNotes,
		},
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}
