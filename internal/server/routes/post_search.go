package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/query"
)

func SearchHandler(c echo.Context) error {
	type searchBody struct {
		Query string `json:"query" validate:"required"`
		Limit int    `json:"limit"`
	}

	type searchResponse struct {
		Message string                `json:"message,omitempty"`
		Result  *query.SearchResponse `json:"result,omitempty"`
	}

	data := new(searchBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, searchResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	result, err := app.Engine.Search(ctx, user.OwnerID, data.Query, data.Limit)
	if err != nil {
		logger.Error("Search failed", "owner_id", user.OwnerID, "err", err)
		return c.JSON(http.StatusInternalServerError, searchResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, searchResponse{Result: &result})
}
