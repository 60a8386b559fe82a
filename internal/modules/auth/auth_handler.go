package auth

import (
	"errors"
	"net/http"

	"poolcare-platform/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
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

// RegisterRoutes mounts the unauthenticated auth routes.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
	g.POST("/auth/register", h.Register)
	g.GET("/auth/google/login", h.GoogleLogin)
	g.GET("/auth/google/callback", h.GoogleCallback)
}

func (h *Handler) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Invalid email or password"})
		}
		c.Logger().Error("Handler.Login: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Login failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	resp, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return c.JSON(http.StatusConflict, models.ErrorResponse{Message: "Email already registered"})
		}
		c.Logger().Error("Handler.Register: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Registration failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (h *Handler) GoogleLogin(c echo.Context) error {
	state := uuid.NewString()
	// TODO: persist state in a short-lived cookie and verify it on callback.
	return c.Redirect(http.StatusTemporaryRedirect, h.svc.GoogleLoginURL(state))
}

func (h *Handler) GoogleCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Missing authorization code"})
	}

	resp, err := h.svc.GoogleCallback(c.Request().Context(), code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{Message: "Google sign-in failed"})
		}
		c.Logger().Error("Handler.GoogleCallback: ", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Google sign-in failed"})
	}
	return c.JSON(http.StatusOK, resp)
}
