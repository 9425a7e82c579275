package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/logger"
	"github.com/rolohq/rolo/pkg/store"
)

func GetPeopleHandler(c echo.Context) error {
	type peopleResponse struct {
		Message string          `json:"message,omitempty"`
		People  []common.Person `json:"people"`
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	people, err := app.Store.ListPersons(ctx, user.OwnerID, limit, offset)
	if err != nil {
		logger.Error("Failed to list people", "owner_id", user.OwnerID, "err", err)
		return c.JSON(http.StatusInternalServerError, peopleResponse{
			Message: "Internal server error",
		})
	}
	if people == nil {
		people = []common.Person{}
	}

	return c.JSON(http.StatusOK, peopleResponse{People: people})
}

// GetPersonHandler returns one person with identities, assertions, edges
// and relationship metrics. A merged person is followed to its survivor so
// stale links keep working.
func GetPersonHandler(c echo.Context) error {
	type personResponse struct {
		Message    string                      `json:"message,omitempty"`
		Person     *common.Person              `json:"person,omitempty"`
		Identities []common.Identity           `json:"identities,omitempty"`
		Assertions []common.Assertion          `json:"assertions,omitempty"`
		Edges      []common.Edge               `json:"edges,omitempty"`
		Metrics    *common.RelationshipMetrics `json:"metrics,omitempty"`
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()
	personID := c.Param("id")

	person, err := app.Store.GetPerson(ctx, user.OwnerID, personID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, personResponse{
				Message: "Person not found",
			})
		}
		logger.Error("Failed to get person", "owner_id", user.OwnerID, "person_id", personID, "err", err)
		return c.JSON(http.StatusInternalServerError, personResponse{
			Message: "Internal server error",
		})
	}

	// Follow merge redirects, bounded against a broken chain.
	for hops := 0; person.Status == common.PersonMerged && person.MergedInto != "" && hops < 10; hops++ {
		person, err = app.Store.GetPerson(ctx, user.OwnerID, person.MergedInto)
		if err != nil {
			return c.JSON(http.StatusNotFound, personResponse{
				Message: "Person not found",
			})
		}
	}

	identities, err := app.Store.ListIdentities(ctx, user.OwnerID, person.ID)
	if err != nil {
		logger.Error("Failed to list identities", "owner_id", user.OwnerID, "person_id", person.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, personResponse{
			Message: "Internal server error",
		})
	}

	assertions, err := app.Store.ListAssertions(ctx, user.OwnerID, person.ID)
	if err != nil {
		logger.Error("Failed to list assertions", "owner_id", user.OwnerID, "person_id", person.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, personResponse{
			Message: "Internal server error",
		})
	}

	edges, err := app.Store.ListEdges(ctx, user.OwnerID, person.ID)
	if err != nil {
		logger.Error("Failed to list edges", "owner_id", user.OwnerID, "person_id", person.ID, "err", err)
		return c.JSON(http.StatusInternalServerError, personResponse{
			Message: "Internal server error",
		})
	}

	resp := personResponse{
		Person:     &person,
		Identities: identities,
		Assertions: assertions,
		Edges:      edges,
	}

	metrics, err := app.Store.GetMetrics(ctx, user.OwnerID, person.ID)
	if err == nil {
		resp.Metrics = &metrics
	} else if !errors.Is(err, store.ErrNotFound) {
		logger.Error("Failed to get metrics", "owner_id", user.OwnerID, "person_id", person.ID, "err", err)
	}

	return c.JSON(http.StatusOK, resp)
}
