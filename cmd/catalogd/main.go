package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/datapulse/catalog/cmd/catalogd/container"
	"github.com/datapulse/catalog/cmd/catalogd/routes"
	"github.com/datapulse/catalog/common/bootstrap"
	"github.com/datapulse/catalog/common/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bootstrap common components (config, logger, stores, redis, queue)
	components, err := bootstrap.Setup(ctx, "catalogd")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap catalogd: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Start the ingest workers before accepting traffic
	if err := serviceContainer.StartWorkers(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start ingest workers: %v\n", err)
		os.Exit(1)
	}
	defer serviceContainer.Pool.Close()

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e, components)
	registerRoutes(e, serviceContainer)

	// Graceful shutdown: the wrapper handles the HTTP side, the signal
	// context drains the workers.
	srv := server.New("catalogd", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo, components *bootstrap.Components) {
	e.GET("/health", func(c echo.Context) error {
		if err := components.Health(c.Request().Context()); err != nil {
			return c.JSON(503, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "catalogd",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterPlatformRoutes(e, serviceContainer)
	routes.RegisterDatasetRoutes(e, serviceContainer)
	routes.RegisterVersionRoutes(e, serviceContainer)
}
