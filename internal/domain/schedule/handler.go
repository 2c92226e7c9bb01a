package schedule

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Jereck/tarot-time/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the owner's schedule endpoints. The group must
// already carry the authentication middleware.
func (h *Handler) RegisterRoutes(owner *echo.Group) {
	owner.GET("/schedule", h.GetSchedule)
	owner.PUT("/schedule", h.SaveSchedule)
}

type saveScheduleRequest struct {
	Timezone       string         `json:"timezone"`
	Availabilities []Availability `json:"availabilities"`
}

func (h *Handler) GetSchedule(c echo.Context) error {
	ownerID := auth.OwnerIDFromContext(c.Request().Context())
	if ownerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing owner")
	}
	sched, err := h.svc.GetSchedule(c.Request().Context(), ownerID)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "schedule not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sched)
}

func (h *Handler) SaveSchedule(c echo.Context) error {
	ownerID := auth.OwnerIDFromContext(c.Request().Context())
	if ownerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing owner")
	}
	var req saveScheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sched, err := h.svc.SaveSchedule(c.Request().Context(), ownerID, req.Timezone, req.Availabilities)
	if errors.Is(err, ErrInvalid) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sched)
}
