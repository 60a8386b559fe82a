package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"poolcare-platform/internal/config"
	appmw "poolcare-platform/internal/middleware"
	"poolcare-platform/internal/models"
	"poolcare-platform/internal/modules/auth"
	"poolcare-platform/internal/modules/billing"
	"poolcare-platform/internal/modules/clients"
	"poolcare-platform/internal/modules/dispatch"
	"poolcare-platform/internal/modules/jobs"
	"poolcare-platform/internal/modules/pools"
	"poolcare-platform/pkg/notification"
	"poolcare-platform/pkg/payment"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(ctx); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	// Repositories.
	dispatchRepo := dispatch.NewRepository(db)
	jobRepo := jobs.NewRepository(db)
	clientRepo := clients.NewRepository(db)
	poolRepo := pools.NewRepository(db)
	invoiceRepo := billing.NewRepository(db)
	authRepo := auth.NewRepository(db)

	// Distance provider: per-org key overrides live in the dispatch
	// repository; cfg.MapsAPIKey is the system fallback.
	mapsProvider := dispatch.NewGoogleMapsProvider(cfg.MapsAPIKey, dispatchRepo)

	// Notifications degrade to log-only when no sender address is configured.
	var notifier jobs.NotifierInterface = notification.LogNotifier{}
	if cfg.EmailSender != "" {
		sender, err := notification.NewSESEmailSender(ctx, cfg.AWSRegion, cfg.EmailSender)
		if err != nil {
			log.Fatalf("init email sender: %v", err)
		}
		sms, err := notification.NewSNSSMSSender(ctx, cfg.AWSRegion)
		if err != nil {
			log.Fatalf("init sms sender: %v", err)
		}
		notifier = notification.NewEmailNotifier(sender, sms, jobRepo)
	}

	// Services.
	dispatchService := dispatch.NewService(dispatchRepo, mapsProvider)
	billingService := billing.NewService(invoiceRepo, payment.NewStripeService(cfg.StripeAPIKey))
	jobService := jobs.NewService(jobRepo, dispatchService, mapsProvider, notifier, billingService, cfg.GeofenceRadiusMeters)
	clientService := clients.NewService(clientRepo)
	poolService := pools.NewService(poolRepo, mapsProvider)
	authService := auth.NewService(authRepo, cfg)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.ClientOrigin},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	auth.NewHandler(authService).RegisterRoutes(api)

	protected := api.Group("", appmw.JWT(cfg.JWTSecret))
	jobs.NewHandler(jobService).RegisterRoutes(protected)
	billing.NewHandler(billingService).RegisterRoutes(protected)

	elevated := protected.Group("", appmw.RequireRoles(models.RoleAdmin, models.RoleManager))
	dispatch.NewHandler(dispatchService).RegisterRoutes(elevated)
	clients.NewHandler(clientService).RegisterRoutes(elevated)
	pools.NewHandler(poolService).RegisterRoutes(elevated)

	go func() {
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}
