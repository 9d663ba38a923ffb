package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lyzr/workflowverify/internal/telemetry/logger"
)

func main() {
	ctx := context.Background()

	c, err := NewContainer(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize verifyd: %v\n", err)
		os.Exit(1)
	}
	defer c.Shutdown()

	if c.Queue != nil {
		workerCtx, cancelWorker := context.WithCancel(ctx)
		c.cleanup = append(c.cleanup, cancelWorker)
		go runWorker(workerCtx, c)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)
	registerRoutes(e, c)

	startServer(e, c)
}

func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(attachRequestIDToContext)
}

// attachRequestIDToContext stores the request id middleware.RequestID()
// generated onto the request's context, so handlers can recover it via
// logger.Logger.WithContext without threading it through every call.
func attachRequestIDToContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		reqID := c.Response().Header().Get(echo.HeaderXRequestID)
		ctx := logger.WithRequestID(c.Request().Context(), reqID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "verifyd",
		})
	})
}

func startServer(e *echo.Echo, c *Container) {
	port := c.Config.Service.Port
	c.Logger.Info("starting verifyd", "port", port)

	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil {
		c.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
