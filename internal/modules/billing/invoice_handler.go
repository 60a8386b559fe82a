package billing

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

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/invoices", h.List)
	g.GET("/invoices/:id", h.Get)
	g.POST("/invoices/:id/pay", h.Pay)
}

func (h *Handler) Get(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	invoice, err := h.svc.Get(c.Request().Context(), orgID, c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Get invoice", err)
	}
	if !h.mayView(c, invoice) {
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Forbidden"})
	}
	return c.JSON(http.StatusOK, invoice)
}

func (h *Handler) List(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	clientID := c.QueryParam("clientId")
	// Client accounts are pinned to their own invoices regardless of query.
	if role, _ := c.Get("userRole").(string); role == models.RoleClient {
		own, _ := c.Get("clientID").(string)
		clientID = own
	}
	if clientID == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "clientId query parameter is required"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	list, total, err := h.svc.ListByClient(c.Request().Context(), orgID, clientID, page, limit)
	if err != nil {
		return h.writeError(c, "Handler.List invoices", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"invoices": list, "total": total})
}

func (h *Handler) Pay(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.PayInvoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	invoice, err := h.svc.Get(c.Request().Context(), orgID, c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Pay invoice", err)
	}
	if !h.mayView(c, invoice) {
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Forbidden"})
	}

	paid, err := h.svc.Pay(c.Request().Context(), orgID, c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Pay invoice", err)
	}
	return c.JSON(http.StatusOK, paid)
}

// mayView allows elevated roles and the invoice's own client.
func (h *Handler) mayView(c echo.Context, invoice *models.Invoice) bool {
	role, _ := c.Get("userRole").(string)
	if models.ElevatedRole(role) {
		return true
	}
	own, _ := c.Get("clientID").(string)
	return role == models.RoleClient && own == invoice.ClientID
}

func (h *Handler) writeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Invoice not found"})
	case errors.Is(err, models.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Internal server error"})
}
