package clients

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

// RegisterRoutes mounts the client CRUD routes. The group is expected to be
// restricted to elevated roles.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/clients", h.Create)
	g.GET("/clients", h.List)
	g.GET("/clients/:id", h.Get)
	g.PATCH("/clients/:id", h.Update)
	g.DELETE("/clients/:id", h.Delete)
}

func (h *Handler) Create(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.CreateClientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	client, err := h.svc.Create(c.Request().Context(), orgID, req)
	if err != nil {
		return h.writeError(c, "Handler.Create client", err)
	}
	return c.JSON(http.StatusCreated, client)
}

func (h *Handler) Get(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	client, err := h.svc.Get(c.Request().Context(), orgID, c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Get client", err)
	}
	return c.JSON(http.StatusOK, client)
}

func (h *Handler) List(c echo.Context) error {
	orgID := c.Get("orgID").(string)
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, total, err := h.svc.List(c.Request().Context(), orgID, page, limit)
	if err != nil {
		return h.writeError(c, "Handler.List clients", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"clients": list, "total": total})
}

func (h *Handler) Update(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.UpdateClientRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	client, err := h.svc.Update(c.Request().Context(), orgID, c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Update client", err)
	}
	return c.JSON(http.StatusOK, client)
}

func (h *Handler) Delete(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	if err := h.svc.Delete(c.Request().Context(), orgID, c.Param("id")); err != nil {
		return h.writeError(c, "Handler.Delete client", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) writeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Client not found"})
	case errors.Is(err, models.ErrConflict):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Internal server error"})
}
