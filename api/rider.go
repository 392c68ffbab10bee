package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/campuscycle/rentalengine-backend/internal/middleware"
	"github.com/campuscycle/rentalengine-backend/rider"
)

type riderResponse struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"externalId"`
	Name       string    `json:"name,omitempty"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toRiderResponse(rd rider.Rider) riderResponse {
	return riderResponse{
		ID:         rd.ID,
		ExternalID: rd.ExternalID,
		Name:       rd.Name.String,
		Email:      rd.Email.String,
		CreatedAt:  rd.CreatedAt,
	}
}

// syncRiderHandler upserts the rider record from the identity
// provider's verified view of the caller. Called right after login.
func (a *API) syncRiderHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	subject, ok := middleware.GetSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	accessToken := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	info, err := a.deps.Identity.GetUserInfo(c, accessToken)
	if err != nil {
		logger.ErrorContext(c, "failed to fetch user info", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "identity provider unavailable"})
		return
	}
	if info.Sub != subject {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Token subject mismatch"})
		return
	}

	rd, err := a.deps.Riders.Upsert(c, info.Sub, info.Name, info.Email)
	if err != nil {
		logger.ErrorContext(c, "failed to upsert rider", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, toRiderResponse(rd))
}

type meResponse struct {
	riderResponse
	UnpaidRides int    `json:"unpaidRides"`
	CanBook     bool   `json:"canBook"`
	Message     string `json:"message"`
}

func (a *API) meHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	subject, ok := middleware.GetSubject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": "Authentication required"})
		return
	}

	rd, err := a.deps.Riders.GetByExternalID(c, subject)
	if err != nil {
		if errors.Is(err, rider.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RIDER_NOT_FOUND", "message": "Rider not found"})
			return
		}
		logger.ErrorContext(c, "failed to get rider", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	unpaid, err := a.deps.Riders.UnpaidCompletedCount(c, rd.ID)
	if err != nil {
		logger.ErrorContext(c, "failed to count unpaid sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := meResponse{
		riderResponse: toRiderResponse(rd),
		UnpaidRides:   unpaid,
		CanBook:       unpaid < rider.DuesBlockThreshold,
		Message:       "Eligible for new booking",
	}
	if !resp.CanBook {
		resp.Message = "Please clear your dues before booking new rides"
	}

	c.JSON(http.StatusOK, resp)
}
