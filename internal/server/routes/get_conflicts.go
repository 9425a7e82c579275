package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
)

func GetConflictsHandler(c echo.Context) error {
	type conflictsResponse struct {
		Message   string            `json:"message,omitempty"`
		Conflicts []common.Conflict `json:"conflicts"`
	}

	status := common.ConflictStatus(c.QueryParam("status"))
	switch status {
	case "", common.ConflictPending, common.ConflictMerged, common.ConflictRejected, common.ConflictAutoMerged:
	default:
		return c.JSON(http.StatusBadRequest, conflictsResponse{
			Message: "Invalid status filter",
		})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	conflicts, err := app.Store.ListConflicts(ctx, user.OwnerID, status)
	if err != nil {
		logger.Error("Failed to list conflicts", "owner_id", user.OwnerID, "err", err)
		return c.JSON(http.StatusInternalServerError, conflictsResponse{
			Message: "Internal server error",
		})
	}
	if conflicts == nil {
		conflicts = []common.Conflict{}
	}

	return c.JSON(http.StatusOK, conflictsResponse{Conflicts: conflicts})
}
