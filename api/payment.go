package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/campuscycle/rentalengine-backend/internal/middleware"
	"github.com/campuscycle/rentalengine-backend/payment"
	"github.com/campuscycle/rentalengine-backend/rider"
)

type createCheckoutRequest struct {
	RiderID string `json:"riderId" binding:"required"`
}

// createCheckoutHandler aggregates the rider's outstanding payments into
// one hosted checkout. The stripe session's metadata records exactly
// which payment rows it covers so the callback can settle those and
// nothing else.
func (a *API) createCheckoutHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	riderID, err := uuid.Parse(req.RiderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Invalid riderId"})
		return
	}

	if _, err := a.deps.Riders.GetRider(c, riderID); err != nil {
		if errors.Is(err, rider.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "RIDER_NOT_FOUND", "message": "Rider not found"})
			return
		}
		logger.ErrorContext(c, "failed to get rider", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	pending, err := a.deps.Payments.ListPendingByRider(c, riderID)
	if err != nil {
		logger.ErrorContext(c, "failed to list pending payments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if len(pending) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": "NO_PENDING_PAYMENTS", "message": "No pending payments!"})
		return
	}

	total := decimal.Zero
	ids := make([]string, 0, len(pending))
	for _, p := range pending {
		total = total.Add(p.Amount)
		ids = append(ids, p.ID.String())
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String("inr"),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Cycle Rental Ride Payments"),
						Description: stripe.String(fmt.Sprintf("%d unpaid rides", len(pending))),
					},
					// Minor units; the decimal total is exact so this cannot drift.
					UnitAmount: stripe.Int64(total.Mul(decimal.NewFromInt(100)).IntPart()),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(a.deps.CheckoutSuccessURL),
		CancelURL:  stripe.String(a.deps.CheckoutCancelURL),
	}
	params.AddMetadata("rider_id", riderID.String())
	params.AddMetadata("payment_ids", strings.Join(ids, ","))

	cs, err := checkoutsession.New(params)
	if err != nil {
		logger.ErrorContext(c, "failed to create checkout session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": cs.ID, "url": cs.URL})
}

// gatewayCallbackHandler receives signed gateway events. The signature
// check fails closed: an unverifiable body is rejected before any state
// is read, so forged events cannot mark payments PAID. Verified events
// are handed to the reconciler, which is idempotent under the gateway's
// at-least-once delivery.
func (a *API) gatewayCallbackHandler(c *gin.Context) {
	logger := middleware.GetLogger(c)

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, 1<<16))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Cannot read body"})
		return
	}

	event, err := webhook.ConstructEvent(body, c.GetHeader("Stripe-Signature"), a.deps.WebhookSecret)
	if err != nil {
		logger.WarnContext(c, "rejected gateway event with bad signature", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "SIGNATURE_INVALID", "message": "Webhook signature verification failed"})
		return
	}

	if event.Type != "checkout.session.completed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		logger.ErrorContext(c, "failed to decode checkout session", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": "Malformed event payload"})
		return
	}

	ev, err := completedEventFromMetadata(cs.Metadata)
	if err != nil {
		logger.ErrorContext(c, "gateway event carries no usable metadata", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "INVALID_REQUEST", "message": err.Error()})
		return
	}

	if err := a.deps.Reconciler.HandleCompleted(c, ev); err != nil {
		logger.ErrorContext(c, "failed to reconcile payment event", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func completedEventFromMetadata(metadata map[string]string) (payment.CompletedEvent, error) {
	riderID, err := uuid.Parse(metadata["rider_id"])
	if err != nil {
		return payment.CompletedEvent{}, errors.New("missing or invalid rider_id metadata")
	}

	ev := payment.CompletedEvent{RiderID: riderID}
	if raw := metadata["payment_ids"]; raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(part))
			if err != nil {
				return payment.CompletedEvent{}, errors.New("invalid payment_ids metadata")
			}
			ev.PaymentIDs = append(ev.PaymentIDs, id)
		}
	}
	return ev, nil
}
