package reclass

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/regula/regula/internal/domain/queue"
	"github.com/regula/regula/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	writeGroup := api.Group("", auth.RequireRole("admin", "physician"))
	writeGroup.POST("/queue/:id/reclassify", h.Reclassify)

	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/queue/:id/reclassifications", h.History)
}

type ReclassifyRequest struct {
	NewScore      int    `json:"new_score"`
	Justification string `json:"justification"`
}

func (h *Handler) Reclassify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req ReclassifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.ActorFromContext(c)
	e, err := h.svc.Reclassify(c.Request().Context(), id, req.NewScore, req.Justification, actor)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyJustification), errors.Is(err, ErrInvalidScoreRange):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, queue.ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) History(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	events, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if events == nil {
		events = []*Event{}
	}
	return c.JSON(http.StatusOK, events)
}
