package jobs

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"poolcare-platform/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Handler exposes the job lifecycle over HTTP.
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

// RegisterRoutes mounts the job routes on a group that already carries
// auth middleware.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/jobs", h.Create)
	g.GET("/jobs", h.List)
	g.GET("/jobs/:id", h.Get)

	g.POST("/jobs/:id/assign", h.Assign)
	g.POST("/jobs/:id/unassign", h.Unassign)
	g.POST("/jobs/:id/reschedule", h.Reschedule)

	g.POST("/jobs/:id/start", h.Start)
	g.POST("/jobs/:id/arrive", h.Arrive)
	g.POST("/jobs/:id/complete", h.Complete)
	g.POST("/jobs/:id/fail", h.Fail)
	g.POST("/jobs/:id/cancel", h.Cancel)
	g.POST("/jobs/:id/weather-report", h.ReportWeather)

	g.POST("/jobs/:id/readings", h.AddReading)

	g.POST("/carers/location", h.UpdateMyLocation)
}

func actorFrom(c echo.Context) Actor {
	a := Actor{
		UserID: c.Get("userID").(string),
		Role:   c.Get("userRole").(string),
	}
	if id, ok := c.Get("carerID").(string); ok && id != "" {
		a.CarerID = &id
	}
	if id, ok := c.Get("clientID").(string); ok && id != "" {
		a.ClientID = &id
	}
	return a
}

func (h *Handler) Create(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.Create(c.Request().Context(), orgID, actorFrom(c), req)
	if err != nil {
		return h.writeError(c, "Handler.Create", err)
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *Handler) Get(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	job, err := h.svc.Get(c.Request().Context(), orgID, actorFrom(c), c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Get", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) List(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	f := ListFilter{
		Status:  c.QueryParam("status"),
		CarerID: c.QueryParam("carerId"),
		PoolID:  c.QueryParam("poolId"),
	}
	if raw := c.QueryParam("date"); raw != "" {
		day, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "date must be YYYY-MM-DD"})
		}
		f.Date = &day
	}
	f.Page, _ = strconv.Atoi(c.QueryParam("page"))
	f.Limit, _ = strconv.Atoi(c.QueryParam("limit"))

	jobsList, total, err := h.svc.List(c.Request().Context(), orgID, actorFrom(c), f)
	if err != nil {
		return h.writeError(c, "Handler.List", err)
	}
	return c.JSON(http.StatusOK, map[string]any{"jobs": jobsList, "total": total})
}

func (h *Handler) Assign(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.AssignJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.Assign(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Assign", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Unassign(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	job, err := h.svc.Unassign(c.Request().Context(), orgID, actorFrom(c), c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Unassign", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Reschedule(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.RescheduleJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.Reschedule(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Reschedule", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Start(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.StartJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.Start(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Start", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Arrive(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.ArriveJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}

	job, err := h.svc.Arrive(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Arrive", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Complete(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	job, err := h.svc.Complete(c.Request().Context(), orgID, actorFrom(c), c.Param("id"))
	if err != nil {
		return h.writeError(c, "Handler.Complete", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Fail(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.FailJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.Fail(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Fail", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) Cancel(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.CancelJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.Cancel(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.Cancel", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) ReportWeather(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.WeatherReportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	job, err := h.svc.ReportWeather(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.ReportWeather", err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) AddReading(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.CreateReadingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	reading, err := h.svc.AddReading(c.Request().Context(), orgID, actorFrom(c), c.Param("id"), req)
	if err != nil {
		return h.writeError(c, "Handler.AddReading", err)
	}
	return c.JSON(http.StatusCreated, reading)
}

func (h *Handler) UpdateMyLocation(c echo.Context) error {
	orgID := c.Get("orgID").(string)

	var req models.UpdateLocationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Invalid request body"})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: "Validation failed: " + err.Error()})
	}

	if err := h.svc.UpdateMyLocation(c.Request().Context(), orgID, actorFrom(c), req); err != nil {
		return h.writeError(c, "Handler.UpdateMyLocation", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// writeError maps domain errors to HTTP statuses. Guard violations on the
// state machine surface as 409 so clients can distinguish them from
// malformed input.
func (h *Handler) writeError(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return c.JSON(http.StatusNotFound, models.ErrorResponse{Message: "Not found"})
	case errors.Is(err, models.ErrForbidden):
		return c.JSON(http.StatusForbidden, models.ErrorResponse{Message: "Forbidden"})
	case errors.Is(err, models.ErrInvalidWindow),
		errors.Is(err, models.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrDuplicateJob),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrJobNotToday),
		errors.Is(err, models.ErrOutsideGeofence),
		errors.Is(err, models.ErrLocationRequired),
		errors.Is(err, models.ErrReadingsIncomplete):
		return c.JSON(http.StatusConflict, models.ErrorResponse{Message: err.Error()})
	case errors.Is(err, models.ErrProviderUnavailable):
		return c.JSON(http.StatusBadGateway, models.ErrorResponse{Message: err.Error()})
	}
	c.Logger().Error(op+": ", err)
	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Message: "Internal server error"})
}
