package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/graph"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

// DecideConflictHandler resolves a pending conflict. Confirming a merge
// folds the suspected duplicate into the first person of the pair;
// rejecting keeps both and closes the record.
func DecideConflictHandler(c echo.Context) error {
	type decisionBody struct {
		Decision string `json:"decision" validate:"required,oneof=confirm_merge reject"`
	}

	type decisionResponse struct {
		Message string             `json:"message,omitempty"`
		Result  *graph.MergeResult `json:"result,omitempty"`
	}

	data := new(decisionBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, decisionResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, decisionResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	conflictID := c.Param("id")

	conflict, err := app.Store.GetConflict(ctx, user.OwnerID, conflictID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, decisionResponse{
				Message: "Conflict not found",
			})
		}
		logger.Error("Failed to get conflict", "owner_id", user.OwnerID, "conflict_id", conflictID, "err", err)
		return c.JSON(http.StatusInternalServerError, decisionResponse{
			Message: "Internal server error",
		})
	}

	if conflict.Status != common.ConflictPending {
		return c.JSON(http.StatusConflict, decisionResponse{
			Message: "Conflict is already resolved",
		})
	}

	if data.Decision == "reject" {
		err := app.Store.ResolveConflict(ctx, user.OwnerID, conflictID, common.ConflictRejected, time.Now())
		if err != nil {
			logger.Error("Failed to resolve conflict", "owner_id", user.OwnerID, "conflict_id", conflictID, "err", err)
			return c.JSON(http.StatusInternalServerError, decisionResponse{
				Message: "Internal server error",
			})
		}
		return c.JSON(http.StatusOK, decisionResponse{Message: "Conflict rejected"})
	}

	// The merge settles this conflict and any other pending conflicts
	// pairing the same two people.
	result, err := app.Merger.Merge(ctx, user.OwnerID, conflict.PersonID, conflict.OtherPersonID)
	if err != nil {
		if errors.Is(err, graph.ErrAlreadyMerged) {
			return c.JSON(http.StatusConflict, decisionResponse{
				Message: "Person is already merged",
			})
		}
		logger.Error("Conflict merge failed", "owner_id", user.OwnerID, "conflict_id", conflictID, "err", err)
		return c.JSON(http.StatusInternalServerError, decisionResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, decisionResponse{
		Message: "Conflict resolved by merge",
		Result:  &result,
	})
}
