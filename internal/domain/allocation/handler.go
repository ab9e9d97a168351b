package allocation

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/regula/regula/internal/domain/queue"
	"github.com/regula/regula/internal/platform/auth"
	"github.com/regula/regula/pkg/pagination"
)

type Handler struct {
	matcher *Matcher
}

func NewHandler(matcher *Matcher) *Handler {
	return &Handler{matcher: matcher}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/allocations", h.List)

	writeGroup := api.Group("", auth.RequireRole("admin", "nurse"))
	writeGroup.POST("/allocations/match", h.Match)
	writeGroup.POST("/allocations/:patientId/confirm", h.Confirm)
	writeGroup.POST("/allocations/:patientId/cancel", h.Cancel)
	writeGroup.POST("/tick", h.Tick)
}

func (h *Handler) Match(c echo.Context) error {
	made, err := h.matcher.Match(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if made == nil {
		made = []Assignment{}
	}
	return c.JSON(http.StatusOK, made)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	all := h.matcher.Assignments()
	total := len(all)

	start := pg.Offset
	if start > total {
		start = total
	}
	end := start + pg.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(all[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) Confirm(c echo.Context) error {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	a, err := h.matcher.ConfirmAdmission(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoActiveAssignment), errors.Is(err, queue.ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "no active assignment for patient")
		case errors.Is(err, queue.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.matcher.Cancel(c.Request().Context(), id, req); err != nil {
		switch {
		case errors.Is(err, ErrConfirmationRequired):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrPatientNotFound), errors.Is(err, ErrNoActiveAssignment):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		case errors.Is(err, queue.ErrInvalidTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Tick lets external schedulers drive escalation and matching.
func (h *Handler) Tick(c echo.Context) error {
	made, err := h.matcher.Tick(c.Request().Context(), time.Now())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if made == nil {
		made = []Assignment{}
	}
	return c.JSON(http.StatusOK, made)
}
