package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campuscycle/rentalengine-backend/internal/middleware"
	"github.com/campuscycle/rentalengine-backend/payment"
	"github.com/campuscycle/rentalengine-backend/session"
)

type sessionResponse struct {
	ID                uuid.UUID      `json:"id"`
	RiderID           uuid.UUID      `json:"riderId"`
	StartCheckpointID uuid.UUID      `json:"startCheckpointId"`
	StartAttendantID  uuid.UUID      `json:"startAttendantId"`
	EndCheckpointID   *uuid.UUID     `json:"endCheckpointId,omitempty"`
	EndAttendantID    *uuid.UUID     `json:"endAttendantId,omitempty"`
	StartTime         *time.Time     `json:"startTime,omitempty"`
	EndTime           *time.Time     `json:"endTime,omitempty"`
	BilledAmount      *string        `json:"billedAmount,omitempty"`
	Status            session.Status `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
}

type paymentResponse struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"sessionId"`
	Amount    string         `json:"amount"`
	Method    string         `json:"method"`
	Status    payment.Status `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

func toSessionResponse(s session.Session) sessionResponse {
	resp := sessionResponse{
		ID:                s.ID,
		RiderID:           s.RiderID,
		StartCheckpointID: s.StartCheckpointID,
		StartAttendantID:  s.StartAttendantID,
		Status:            s.Status,
		CreatedAt:         s.CreatedAt,
	}
	if s.EndCheckpointID.Valid {
		resp.EndCheckpointID = &s.EndCheckpointID.UUID
	}
	if s.EndAttendantID.Valid {
		resp.EndAttendantID = &s.EndAttendantID.UUID
	}
	if s.StartTime.Valid {
		resp.StartTime = &s.StartTime.Time
	}
	if s.EndTime.Valid {
		resp.EndTime = &s.EndTime.Time
	}
	if s.BilledAmount.Valid {
		amount := s.BilledAmount.Decimal.StringFixed(2)
		resp.BilledAmount = &amount
	}
	return resp
}

func toPaymentResponse(p payment.Payment) paymentResponse {
	return paymentResponse{
		ID:        p.ID,
		SessionID: p.SessionID,
		Amount:    p.Amount.StringFixed(2),
		Method:    p.Method,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}

type bookSessionRequest struct {
	RiderID      string `json:"riderId" binding:"required"`
	AttendantID  string `json:"attendantId" binding:"required"`
	CheckpointID string `json:"checkpointId" binding:"required"`
	Token        string `json:"token" binding:"required"`
}

func (a *API) bookSessionHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req bookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	riderID, err := uuid.Parse(req.RiderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid riderId"})
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

	s, err := a.deps.Sessions.Book(c, riderID, attendantID, checkpointID, req.Token)
	middleware.CountTransition("book", err)
	if err != nil {
		if errors.Is(err, session.ErrRiderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RIDER_NOT_FOUND", "message": "Rider not found"})
			return
		}
		if errors.Is(err, session.ErrActiveSessionExists) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "ACTIVE_SESSION_EXISTS", "message": "You already have an active ride in progress"})
			return
		}
		if errors.Is(err, session.ErrDuesBlocked) {
			c.JSON(http.StatusForbidden, gin.H{"code": "DUES_BLOCKED", "message": "Please clear your dues before booking new rides"})
			return
		}
		if errors.Is(err, session.ErrNoValidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "NO_VALID_TOKEN", "message": "No valid token for this attendant and checkpoint"})
			return
		}
		logger.ErrorContext(c, "failed to book session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, toSessionResponse(s))
}

type confirmStartRequest struct {
	SessionID   string `json:"sessionId" binding:"required"`
	AttendantID string `json:"attendantId" binding:"required"`
}

func (a *API) confirmStartHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req confirmStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid sessionId"})
		return
	}
	attendantID, err := uuid.Parse(req.AttendantID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid attendantId"})
		return
	}

	s, err := a.deps.Sessions.ConfirmStart(c, sessionID, attendantID)
	middleware.CountTransition("confirm_start", err)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "SESSION_NOT_FOUND", "message": "Session not found"})
			return
		}
		if errors.Is(err, session.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"code": "INVALID_TRANSITION", "message": "Ride can only be started if status = PENDING"})
			return
		}
		if errors.Is(err, session.ErrAttendantMismatch) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "ATTENDANT_MISMATCH", "message": "Attendant not assigned to the session's start checkpoint"})
			return
		}
		logger.ErrorContext(c, "failed to confirm start", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(s))
}

type confirmEndRequest struct {
	SessionID    string `json:"sessionId" binding:"required"`
	AttendantID  string `json:"attendantId" binding:"required"`
	CheckpointID string `json:"checkpointId" binding:"required"`
	Token        string `json:"token" binding:"required"`
}

type confirmEndResponse struct {
	Session sessionResponse `json:"session"`
	Payment paymentResponse `json:"payment"`
}

func (a *API) confirmEndHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req confirmEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid sessionId"})
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

	s, p, err := a.deps.Sessions.ConfirmEnd(c, sessionID, attendantID, checkpointID, req.Token)
	middleware.CountTransition("confirm_end", err)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "SESSION_NOT_FOUND", "message": "Session not found"})
			return
		}
		if errors.Is(err, session.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"code": "INVALID_TRANSITION", "message": "Ride can only be ended if status = ONGOING"})
			return
		}
		if errors.Is(err, session.ErrNoValidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"code": "NO_VALID_TOKEN", "message": "No valid token for this attendant and checkpoint"})
			return
		}
		logger.ErrorContext(c, "failed to confirm end", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, confirmEndResponse{
		Session: toSessionResponse(s),
		Payment: toPaymentResponse(p),
	})
}

type cancelSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

func (a *API) cancelSessionHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req cancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	sessionID, err := uuid.Parse(req.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid sessionId"})
		return
	}

	s, err := a.deps.Sessions.Cancel(c, sessionID)
	middleware.CountTransition("cancel", err)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "SESSION_NOT_FOUND", "message": "Session not found"})
			return
		}
		if errors.Is(err, session.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"code": "INVALID_TRANSITION", "message": "Only a PENDING ride can be cancelled"})
			return
		}
		logger.ErrorContext(c, "failed to cancel session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(s))
}

func (a *API) activeSessionHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	riderID, err := uuid.Parse(c.Param("riderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid riderId"})
		return
	}

	s, err := a.deps.Sessions.GetActive(c, riderID)
	if err != nil {
		logger.ErrorContext(c, "failed to get active session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "NO_ACTIVE_SESSION", "message": "No active ride found"})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(*s))
}

func (a *API) historySessionHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	riderID, err := uuid.Parse(c.Param("riderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid riderId"})
		return
	}

	sessions, err := a.deps.Sessions.GetHistory(c, riderID)
	if err != nil {
		logger.ErrorContext(c, "failed to get session history", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	responses := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		responses = append(responses, toSessionResponse(s))
	}

	c.JSON(http.StatusOK, responses)
}
