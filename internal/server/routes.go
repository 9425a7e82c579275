package server

import (
	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Evidence routes
	apiRoutes.POST("/notes", routes.CreateNoteHandler, middleware.RequirePermission("notes.create"))
	apiRoutes.POST("/ingest", routes.IngestHandler, middleware.RequirePermission("notes.ingest"))

	// People routes
	apiRoutes.GET("/people", routes.GetPeopleHandler, middleware.RequirePermission("people.view"))
	apiRoutes.GET("/people/:id", routes.GetPersonHandler, middleware.RequirePermission("people.view"))
	apiRoutes.PATCH("/people/:id", routes.EditPersonHandler, middleware.RequirePermission("people.update"))
	apiRoutes.POST("/people/:id/merge", routes.MergePersonHandler, middleware.RequirePermission("people.merge"))
	apiRoutes.POST("/people/:id/rescore", routes.RescorePersonHandler, middleware.RequirePermission("people.update"))

	// Conflict review routes
	apiRoutes.GET("/conflicts", routes.GetConflictsHandler, middleware.RequirePermission("conflicts.view"))
	apiRoutes.POST("/conflicts/:id/decision", routes.DecideConflictHandler, middleware.RequirePermission("conflicts.resolve"))

	// Search routes
	apiRoutes.POST("/search", routes.SearchHandler, middleware.RequirePermission("search.query"))
}
