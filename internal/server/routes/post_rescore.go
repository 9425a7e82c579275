package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/queue"
	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

// RescorePersonHandler enqueues a metrics recompute for one person.
// Recency and momentum drift as time passes without new evidence, so
// clients refresh scores out of band instead of on every read.
func RescorePersonHandler(c echo.Context) error {
	type rescoreResponse struct {
		Message string `json:"message"`
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	personID := c.Param("id")

	if _, err := app.Store.GetPerson(ctx, user.OwnerID, personID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, rescoreResponse{
				Message: "Person not found",
			})
		}
		logger.Error("Failed to get person", "owner_id", user.OwnerID, "person_id", personID, "err", err)
		return c.JSON(http.StatusInternalServerError, rescoreResponse{
			Message: "Internal server error",
		})
	}

	err := queue.PublishMetricsJob(app.Queue, queue.MetricsJob{
		OwnerID:  user.OwnerID,
		PersonID: personID,
	})
	if err != nil {
		logger.Error("Failed to enqueue metrics job", "owner_id", user.OwnerID, "person_id", personID, "err", err)
		return c.JSON(http.StatusInternalServerError, rescoreResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, rescoreResponse{
		Message: "Rescore queued",
	})
}
