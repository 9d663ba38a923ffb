package main

import "github.com/labstack/echo/v4"

// registerRoutes wires the verification service's HTTP surface, mirroring
// the teacher's routes/run.go group-per-resource layout.
func registerRoutes(e *echo.Echo, c *Container) {
	api := newAPI(c)

	nets := e.Group("/api/v1/nets")
	{
		nets.POST("/compile", api.CompileNet)   // POST /api/v1/nets/compile
		nets.POST("/:id/verify", api.VerifyNet) // POST /api/v1/nets/{id}/verify
		nets.POST("/:id/verify/async", api.EnqueueVerify)
		nets.POST("/:id/simulate", api.SimulateNet)
		nets.POST("/:id/project", api.ProjectNet)
	}

	runs := e.Group("/api/v1/runs")
	{
		runs.GET("/:id", api.GetRun) // GET /api/v1/runs/{id}
	}
}
