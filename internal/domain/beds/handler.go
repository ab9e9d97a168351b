package beds

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/regula/regula/internal/platform/auth"
)

type Handler struct {
	svc       *Service
	onRelease func()
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// SetOnRelease registers a callback fired after a status change that
// can free beds, so waiting patients are matched right away instead of
// on the next tick.
func (h *Handler) SetOnRelease(fn func()) {
	h.onRelease = fn
}

func (h *Handler) notifyRelease() {
	if h.onRelease != nil {
		h.onRelease()
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	readGroup.GET("/sectors", h.ListSectors)
	readGroup.GET("/sectors/:name", h.GetSector)

	writeGroup := api.Group("", auth.RequireRole("admin", "nurse"))
	writeGroup.PATCH("/sectors/:name", h.UpdateSectorStatus)
	writeGroup.POST("/sectors/:name/clean-complete", h.FinishCleaning)
}

func (h *Handler) ListSectors(c echo.Context) error {
	sectors := h.svc.Snapshot()
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].Name < sectors[j].Name })
	return c.JSON(http.StatusOK, sectors)
}

func (h *Handler) GetSector(c echo.Context) error {
	sec, err := h.svc.Get(c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "sector not found")
	}
	return c.JSON(http.StatusOK, sec)
}

func (h *Handler) UpdateSectorStatus(c echo.Context) error {
	var d StatusDelta
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	sec, err := h.svc.ApplyDelta(c.Request().Context(), c.Param("name"), d)
	switch {
	case errors.Is(err, ErrSectorUnknown):
		return echo.NewHTTPError(http.StatusNotFound, "sector not found")
	case errors.Is(err, ErrInvalidDelta):
		return echo.NewHTTPError(http.StatusBadRequest, "delta would violate bed inventory invariant")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.notifyRelease()
	return c.JSON(http.StatusOK, sec)
}

func (h *Handler) FinishCleaning(c echo.Context) error {
	sec, err := h.svc.FinishCleaning(c.Request().Context(), c.Param("name"))
	switch {
	case errors.Is(err, ErrSectorUnknown):
		return echo.NewHTTPError(http.StatusNotFound, "sector not found")
	case errors.Is(err, ErrInvalidDelta):
		return echo.NewHTTPError(http.StatusBadRequest, "no beds in cleaning")
	case err != nil:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.notifyRelease()
	return c.JSON(http.StatusOK, sec)
}
