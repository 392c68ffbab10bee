package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campuscycle/rentalengine-backend/checkpoint"
	"github.com/campuscycle/rentalengine-backend/internal/middleware"
)

type checkpointResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Capacity       int       `json:"capacity"`
	AvailableUnits int       `json:"availableUnits"`
}

func toCheckpointResponse(cp checkpoint.Checkpoint) checkpointResponse {
	return checkpointResponse{
		ID:             cp.ID,
		Name:           cp.Name,
		Capacity:       cp.Capacity,
		AvailableUnits: cp.AvailableUnits,
	}
}

type attendantResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CheckpointID uuid.UUID `json:"checkpointId"`
}

func (a *API) checkpointsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	checkpoints, err := a.deps.Checkpoints.GetCheckpoints(c)
	if err != nil {
		logger.ErrorContext(c, "failed to get checkpoints", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]checkpointResponse, 0, len(checkpoints))
	for _, cp := range checkpoints {
		responses = append(responses, toCheckpointResponse(cp))
	}

	c.JSON(http.StatusOK, responses)
}

// checkpointAttendantsHandler lists who can issue tokens at a
// checkpoint, for the kiosk's attendant picker.
func (a *API) checkpointAttendantsHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	checkpointID, err := uuid.Parse(c.Param("checkpointId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid checkpointId"})
		return
	}

	if _, err := a.deps.Checkpoints.GetCheckpoint(c, checkpointID); err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "CHECKPOINT_NOT_FOUND", "message": "Checkpoint not found"})
			return
		}
		logger.ErrorContext(c, "failed to get checkpoint", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	attendants, err := a.deps.Attendants.GetByCheckpoint(c, checkpointID)
	if err != nil {
		logger.ErrorContext(c, "failed to get attendants", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]attendantResponse, 0, len(attendants))
	for _, at := range attendants {
		responses = append(responses, attendantResponse{
			ID:           at.ID,
			Name:         at.Name,
			CheckpointID: at.CheckpointID,
		})
	}

	c.JSON(http.StatusOK, responses)
}
