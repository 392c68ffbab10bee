package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campuscycle/rentalengine-backend/attendant"
	"github.com/campuscycle/rentalengine-backend/checkpoint"
	"github.com/campuscycle/rentalengine-backend/internal/identity"
	"github.com/campuscycle/rentalengine-backend/internal/middleware"
	"github.com/campuscycle/rentalengine-backend/internal/o11y"
	"github.com/campuscycle/rentalengine-backend/payment"
	"github.com/campuscycle/rentalengine-backend/rider"
	"github.com/campuscycle/rentalengine-backend/session"
	"github.com/campuscycle/rentalengine-backend/token"
)

type Deps struct {
	Tokens      *token.Repository
	Sessions    *session.Repository
	Payments    *payment.Repository
	Riders      *rider.Repository
	Checkpoints *checkpoint.Repository
	Attendants  *attendant.Repository
	Reconciler  *payment.Reconciler
	Identity    identity.Client
	Obs         *o11y.Observability

	Auth0Domain string
	Audience    string

	WebhookSecret      string
	CheckoutSuccessURL string
	CheckoutCancelURL  string

	MetricsUsername string
	MetricsPassword string
}

type API struct {
	r    *gin.Engine
	deps Deps
}

func New(deps Deps) (*API, error) {
	a := &API{
		r:    gin.New(),
		deps: deps,
	}

	a.r.Use(gin.Recovery())
	a.r.Use(middleware.Tracing())
	a.r.Use(middleware.Logging(deps.Obs.Logger))
	a.r.Use(middleware.Metrics(deps.Obs.Registry))

	a.r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	metrics := a.r.Group("/metrics")
	if deps.MetricsUsername != "" {
		metrics.Use(gin.BasicAuth(gin.Accounts{deps.MetricsUsername: deps.MetricsPassword}))
	}
	metrics.GET("", gin.WrapH(promhttp.HandlerFor(deps.Obs.Registry, promhttp.HandlerOpts{})))

	// Attendant/kiosk surface and the gateway callback authenticate out
	// of band; rider-facing routes require the identity provider's JWT
	// when one is configured.
	a.r.POST("/token/issue", a.issueTokenHandler)
	a.r.POST("/session/book", a.bookSessionHandler)
	a.r.PATCH("/session/start", a.confirmStartHandler)
	a.r.PATCH("/session/end", a.confirmEndHandler)
	a.r.PATCH("/session/cancel", a.cancelSessionHandler)
	a.r.GET("/session/active/:riderId", a.activeSessionHandler)
	a.r.GET("/session/history/:riderId", a.historySessionHandler)
	a.r.GET("/checkpoints", a.checkpointsHandler)
	a.r.GET("/checkpoints/:checkpointId/attendants", a.checkpointAttendantsHandler)
	a.r.POST("/payments/checkout", a.createCheckoutHandler)
	a.r.POST("/payments/callback", a.gatewayCallbackHandler)

	riders := a.r.Group("/riders")
	if deps.Auth0Domain != "" {
		jwt, err := middleware.RequireJWT(deps.Auth0Domain, deps.Audience)
		if err != nil {
			return nil, err
		}
		riders.Use(jwt)
	}
	riders.POST("/sync", a.syncRiderHandler)
	riders.GET("/me", a.meHandler)

	return a, nil
}

func (a *API) Router() *gin.Engine {
	return a.r
}
