package pools

import (
	"errors"
	"net/http"
	"strconv"

	"poolcare-platform/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

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

// RegisterRoutes mounts the pool CRUD routes. Writes are expected to sit
// behind an elevated-role guard.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/pools", h.Create)
	g.GET("/pools", h.List)
	g.GET("/pools/:id", h.Get)
	g.PATCH("/pools/:id", h.Update)
	g.DELETE("/pools/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.CreatePoolRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	pool, err := h.svc.Create(c.Request().Context(), orgID, req)
	if err != nil {
		return h.writeError(c, "Handler.Create pool", err)
	}
	return c.JSON(http.StatusCreated, pool)
}

func (h *Handler) Get(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	pool, err := h.svc.Get(c.Request().Context(), orgID, c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Get pool", err)
	}
	return c.JSON(http.StatusOK, pool)
}

func (h *Handler) List(c echo.Context) error {
	orgID := c.Get("orgID").(string)
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, total, err := h.svc.List(c.Request().Context(), orgID, c.QueryParam("clientId"), page, limit)
	if err != nil {
		return h.writeError(c, "Handler.List pools", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"pools": list, "total": total})
}

func (h *Handler) Update(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.UpdatePoolRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	pool, err := h.svc.Update(c.Request().Context(), orgID, c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Update pool", err)
	}
	return c.JSON(http.StatusOK, pool)
}

func (h *Handler) Delete(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	if err := h.svc.Delete(c.Request().Context(), orgID, c.Param("id")); err != nil {
		return h.writeError(c, "Handler.Delete pool", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) writeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrConflict):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrProviderUnavailable):
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: "Geocoding is temporarily unavailable"})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Internal server error"})
}
