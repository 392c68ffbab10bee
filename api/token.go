package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campuscycle/rentalengine-backend/internal/middleware"
	"github.com/campuscycle/rentalengine-backend/token"
)

type issueTokenRequest struct {
	AttendantID  string `json:"attendantId" binding:"required"`
	CheckpointID string `json:"checkpointId" binding:"required"`
}

type tokenResponse struct {
	ID           uuid.UUID `json:"id"`
	Token        string    `json:"token"`
	AttendantID  uuid.UUID `json:"attendantId"`
	CheckpointID uuid.UUID `json:"checkpointId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// issueTokenHandler mints a scannable credential for the attendant's
// checkpoint. The plaintext value is only ever returned here.
func (a *API) issueTokenHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	attendantID, err := uuid.Parse(req.AttendantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid attendantId"})
		return
	}
	checkpointID, err := uuid.Parse(req.CheckpointID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid checkpointId"})
		return
	}

	t, err := a.deps.Tokens.Issue(c, attendantID, checkpointID)
	if err != nil {
		if errors.Is(err, token.ErrAttendantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "ATTENDANT_NOT_FOUND", "message": "Attendant not found"})
			return
		}
		if errors.Is(err, token.ErrCheckpointNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "CHECKPOINT_NOT_FOUND", "message": "Checkpoint not found"})
			return
		}
		if errors.Is(err, token.ErrAssignmentMismatch) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "ASSIGNMENT_MISMATCH", "message": "Attendant not assigned to this checkpoint"})
			return
		}
		logger.ErrorContext(c, "failed to issue token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		ID:           t.ID,
		Token:        t.Value,
		AttendantID:  t.AttendantID,
		CheckpointID: t.CheckpointID,
		ExpiresAt:    t.ExpiresAt,
	})
}
