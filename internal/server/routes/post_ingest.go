package routes

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/pkg/common"
	"github.com/rolohq/rolo/pkg/graph"
	"github.com/rolohq/rolo/pkg/logger"
)

// IngestHandler commits a pre-extracted evidence document synchronously.
// This is the path for structured imports where the caller already knows
// the people and facts and does not need the model in the loop.
func IngestHandler(c echo.Context) error {
	type ingestResponse struct {
		Message string             `json:"message"`
		Stats   *graph.IngestStats `json:"stats,omitempty"`
	}

	data := new(common.ExtractionResult)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "Invalid request body",
		})
	}
	if len(data.People) == 0 {
		return c.JSON(http.StatusBadRequest, ingestResponse{
			Message: "At least one person is required",
		})
	}
	if data.EvidenceID == "" {
		data.EvidenceID = gonanoid.Must()
	}
	if data.ObservedAt.IsZero() {
		data.ObservedAt = time.Now()
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	stats, err := app.Pipeline.Ingest(ctx, user.OwnerID, *data)
	if err != nil {
		logger.Error("Failed to ingest evidence", "owner_id", user.OwnerID, "evidence_id", data.EvidenceID, "err", err)
		return c.JSON(http.StatusInternalServerError, ingestResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusOK, ingestResponse{
		Message: "Evidence ingested",
		Stats:   &stats,
	})
}
