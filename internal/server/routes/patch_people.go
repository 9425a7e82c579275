package routes

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

// EditPersonHandler updates display name or summary. Empty fields keep
// their current values.
func EditPersonHandler(c echo.Context) error {
	type editPersonBody struct {
		DisplayName string `json:"display_name"`
		Summary     string `json:"summary"`
	}

	type editPersonResponse struct {
		Message string         `json:"message,omitempty"`
		Person  *common.Person `json:"person,omitempty"`
	}

	data := new(editPersonBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, editPersonResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	personID := c.Param("id")

	person, err := app.Store.UpdatePerson(ctx, user.OwnerID, personID, data.DisplayName, data.Summary)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, editPersonResponse{
				Message: "Person not found",
			})
		}
		logger.Error("Failed to update person", "owner_id", user.OwnerID, "person_id", personID, "err", err)
		return c.JSON(http.StatusInternalServerError, editPersonResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, editPersonResponse{Person: &person})
}
