package queue

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/regula/regula/internal/domain/scoring"
	"github.com/regula/regula/internal/platform/auth"
	"github.com/regula/regula/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/queue", h.ListQueue)
	readGroup.GET("/queue/:id", h.GetEntry)

	writeGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	writeGroup.POST("/queue", h.Enqueue)
	writeGroup.DELETE("/queue/:id", h.RemoveEntry)
}

// EnqueueRequest is the triage/registration payload for a new queue entry.
type EnqueueRequest struct {
	Name              string   `json:"name"`
	Age               int      `json:"age"`
	Gender            string   `json:"gender"`
	Diagnosis         string   `json:"diagnosis"`
	Comorbidities     []string `json:"comorbidities"`
	RequestedSector   string   `json:"requested_sector"`
	Risk              string   `json:"risk"`
	IsolationRequired bool     `json:"isolation_required"`
	OriginFacility    string   `json:"origin_facility"`
}

func (h *Handler) Enqueue(c echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.RequestedSector == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "requested_sector is required")
	}
	risk, err := scoring.ParseRiskLevel(req.Risk)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Age < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "age must not be negative")
	}

	p := Patient{
		Name:              req.Name,
		Age:               req.Age,
		Gender:            req.Gender,
		Diagnosis:         req.Diagnosis,
		Comorbidities:     req.Comorbidities,
		RequestedSector:   req.RequestedSector,
		Risk:              risk,
		IsolationRequired: req.IsolationRequired,
		OriginFacility:    req.OriginFacility,
	}
	if err := h.svc.Enqueue(c.Request().Context(), &p); err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEnqueue):
			return echo.NewHTTPError(http.StatusConflict, "patient already enqueued")
		case errors.Is(err, scoring.ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) ListQueue(c echo.Context) error {
	pg := pagination.FromContext(c)
	snap := h.svc.Snapshot()
	total := len(snap)

	start := pg.Offset
	if start > total {
		start = total
	}
	end := start + pg.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(snap[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) GetEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	p, err := h.svc.Get(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

// RemoveEntry handles external deletion (patient left, transferred out).
// Destructive: requires an explicit confirm flag rather than a UI dialog.
func (h *Handler) RemoveEntry(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if c.QueryParam("confirm") != "true" {
		return echo.NewHTTPError(http.StatusBadRequest, "confirm=true is required to remove a queue entry")
	}
	if err := h.svc.Remove(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
