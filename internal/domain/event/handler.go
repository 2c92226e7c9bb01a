package event

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Jereck/tarot-time/internal/platform/auth"
	"github.com/Jereck/tarot-time/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts owner-scoped CRUD on owner (authenticated) and the
// read-only booking-page listing on public.
func (h *Handler) RegisterRoutes(owner, public *echo.Group) {
	owner.POST("/events", h.CreateEvent)
	owner.GET("/events", h.ListEvents)
	owner.GET("/events/:id", h.GetEvent)
	owner.PUT("/events/:id", h.UpdateEvent)
	owner.DELETE("/events/:id", h.DeleteEvent)

	public.GET("/public/:ownerId/events", h.ListPublicEvents)
	public.GET("/public/:ownerId/events/:id", h.GetPublicEvent)
}

func ownerFrom(c echo.Context) (string, error) {
	ownerID := auth.OwnerIDFromContext(c.Request().Context())
	if ownerID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing owner")
	}
	return ownerID, nil
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}

func (h *Handler) CreateEvent(c echo.Context) error {
	ownerID, err := ownerFrom(c)
	if err != nil {
		return err
	}
	var e Event
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.OwnerID = ownerID
	if err := h.svc.CreateEvent(c.Request().Context(), &e); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) GetEvent(c echo.Context) error {
	ownerID, err := ownerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetEvent(c.Request().Context(), ownerID, id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) ListEvents(c echo.Context) error {
	ownerID, err := ownerFrom(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEvents(c.Request().Context(), ownerID, false, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(pg, c.Request().URL.Path))
}

func (h *Handler) UpdateEvent(c echo.Context) error {
	ownerID, err := ownerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var e Event
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = id
	e.OwnerID = ownerID
	if err := h.svc.UpdateEvent(c.Request().Context(), &e); err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) DeleteEvent(c echo.Context) error {
	ownerID, err := ownerFrom(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteEvent(c.Request().Context(), ownerID, id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPublicEvents(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListEvents(c.Request().Context(), c.Param("ownerId"), true, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(pg, c.Request().URL.Path))
}

func (h *Handler) GetPublicEvent(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e, err := h.svc.GetActiveEvent(c.Request().Context(), c.Param("ownerId"), id)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, e)
}
