package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/graph"
	"github.com/rolohq/rolo/pkg/logger"
)

// MergePersonHandler folds the person named in the body into the person
// named in the path. The path person survives.
func MergePersonHandler(c echo.Context) error {
	type mergeBody struct {
		MergeID string `json:"merge_id" validate:"required"`
	}

	type mergeResponse struct {
		Message string             `json:"message,omitempty"`
		Result  *graph.MergeResult `json:"result,omitempty"`
	}

	data := new(mergeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, mergeResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	keepID := c.Param("id")

	result, err := app.Merger.Merge(ctx, user.OwnerID, keepID, data.MergeID)
	if err != nil {
		switch {
		case errors.Is(err, graph.ErrSelfMerge):
			return c.JSON(http.StatusBadRequest, mergeResponse{
				Message: "Cannot merge a person into itself",
			})
		case errors.Is(err, graph.ErrPersonNotFound):
			return c.JSON(http.StatusNotFound, mergeResponse{
				Message: "Person not found",
			})
		case errors.Is(err, graph.ErrAlreadyMerged):
			return c.JSON(http.StatusConflict, mergeResponse{
				Message: "Person is already merged",
			})
		}
		logger.Error("Merge failed", "owner_id", user.OwnerID, "keep_id", keepID, "merge_id", data.MergeID, "err", err)
		return c.JSON(http.StatusInternalServerError, mergeResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, mergeResponse{
		Message: "Persons merged",
		Result:  &result,
	})
}
