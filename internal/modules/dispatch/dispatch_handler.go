package dispatch

import (
	"errors"
	"net/http"

	"poolcare-platform/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler exposes route optimization and ETA recalculation over HTTP.
type Handler struct {
	svc      ServiceInterface
	validate *validator.Validate
}

func NewHandler(svc ServiceInterface) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the dispatch routes on a group that already
// carries auth middleware.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/jobs/dispatch/optimize", h.Optimize)
	g.POST("/jobs/dispatch/apply", h.Apply)
	g.POST("/jobs/:id/recalculate-eta", h.RecalculateOne)
	g.POST("/jobs/recalculate-etas", h.RecalculateForCarer)
}

func (h *Handler) Optimize(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.OptimizeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Optimize(c.Request().Context(), orgID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Carer not found"})
		case errors.Is(err, models.ErrInvalidRequest):
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Optimize: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to optimize route"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Apply(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.ApplyRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Apply(c.Request().Context(), orgID, req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidRequest) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: err.Error()})
		}
		c.Logger().Error("Handler.Apply: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to apply route changes"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) RecalculateOne(c echo.Context) error {
	orgID := c.Get("orgID").(string)
	jobID := c.Param("id")

	eta, err := h.svc.RecalculateOne(c.Request().Context(), orgID, jobID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Job not found"})
		}
		c.Logger().Error("Handler.RecalculateOne: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to recalculate ETA"})
	}
	return c.JSON(http.StatusOK, map[string]any{"job_id": jobID, "eta_minutes": eta})
}

func (h *Handler) RecalculateForCarer(c echo.Context) error {
	orgID := c.Get("orgID").(string)
	carerID := c.QueryParam("carerId")
	if carerID == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "carerId query parameter is required"})
	}

	updated, err := h.svc.RecalculateForCarerToday(c.Request().Context(), orgID, carerID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Carer not found"})
		}
		c.Logger().Error("Handler.RecalculateForCarer: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Failed to recalculate ETAs"})
	}
	return c.JSON(http.StatusOK, models.RecalcResponse{CarerID: carerID, Updated: updated})
}
