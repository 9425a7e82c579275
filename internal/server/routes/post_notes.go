package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/rolohq/rolo/internal/queue"
	"github.com/rolohq/rolo/internal/server/middleware"
	"github.com/rolohq/rolo/internal/storage"
	"github.com/rolohq/rolo/internal/util"
	"github.com/rolohq/rolo/pkg/logger"
)

// CreateNoteHandler archives a raw note and enqueues it for extraction.
// The response returns before the graph changes; clients poll the people
// and conflict endpoints for the outcome.
func CreateNoteHandler(c echo.Context) error {
	type createNoteBody struct {
		Text       string    `json:"text" validate:"required"`
		ObservedAt time.Time `json:"observed_at"`
	}

	type createNoteResponse struct {
		Message    string `json:"message"`
		EvidenceID string `json:"evidence_id,omitempty"`
	}

	data := new(createNoteBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createNoteResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createNoteResponse{
			Message: "Invalid request body",
		})
	}

	user := c.(*middleware.AppContext).User
	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	evidenceID := gonanoid.Must()
	observedAt := data.ObservedAt
	if observedAt.IsZero() {
		observedAt = time.Now()
	}

	if _, err := storage.PutEvidence(ctx, app.S3, user.OwnerID, evidenceID, data.Text); err != nil {
		logger.Error("Failed to archive note", "owner_id", user.OwnerID, "err", err)
		return c.JSON(http.StatusInternalServerError, createNoteResponse{
			Message: "Internal server error",
		})
	}

	err := queue.PublishIngestJob(app.Queue, queue.IngestJob{
		OwnerID:    user.OwnerID,
		EvidenceID: evidenceID,
		ObservedAt: observedAt,
	})
	if err != nil {
		logger.Error("Failed to enqueue ingest job", "owner_id", user.OwnerID, "evidence_id", evidenceID, "err", err)
		// No job will ever reference this blob, so clean it up rather
		// than leave it orphaned.
		cleanupErr := util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
			return storage.DeleteEvidence(ctx, app.S3, user.OwnerID, evidenceID)
		})
		if cleanupErr != nil {
			logger.Error("Failed to delete orphaned evidence", "evidence_id", evidenceID, "err", cleanupErr)
		}
		return c.JSON(http.StatusInternalServerError, createNoteResponse{
			Message: "Internal server error",
		})
	}

	return c.JSON(http.StatusAccepted, createNoteResponse{
		Message:    "Note accepted for processing",
		EvidenceID: evidenceID,
	})
}
