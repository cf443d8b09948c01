package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-vinyl-storefront/internal/auth"
	"github.com/imrishuroy/go-vinyl-storefront/internal/cart"
	"github.com/imrishuroy/go-vinyl-storefront/internal/catalog"
	"github.com/imrishuroy/go-vinyl-storefront/internal/checkout"
	"github.com/imrishuroy/go-vinyl-storefront/internal/events"
	"github.com/imrishuroy/go-vinyl-storefront/internal/mail"
	"github.com/imrishuroy/go-vinyl-storefront/internal/metrics"
	"github.com/imrishuroy/go-vinyl-storefront/internal/orders"
	"github.com/imrishuroy/go-vinyl-storefront/internal/payment"
	"github.com/imrishuroy/go-vinyl-storefront/internal/users"
	"github.com/imrishuroy/go-vinyl-storefront/internal/validation"
	"github.com/imrishuroy/go-vinyl-storefront/internal/verification"
)

// HandlerConfig groups dependencies for the API handlers.
type HandlerConfig struct {
	Users        *users.Store
	Vinyls       *catalog.Store
	Orders       *orders.Store
	Carts        *cart.Store
	Payments     *payment.Service
	Checkout     *checkout.Service
	Verification *verification.Service
	Issuer       *auth.Issuer
	Mailer       mail.Sender
	MailFrom     string
	Events       events.Publisher

	Logger         *zap.Logger
	Metrics        *metrics.Prometheus
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
}

type api struct {
	HandlerConfig
	v *validatorv10.Validate
}

// NewRouter builds the gin engine with middleware and every route registered.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	a := &api{HandlerConfig: cfg, v: validation.New()}

	r := gin.New()
	r.Use(gin.Recovery(), RequestContext(cfg.Logger, cfg.RequestTimeout), AccessLog(cfg.Metrics), auth.Authenticate(cfg.Issuer))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	g := r.Group("/api")
	a.registerAuthRoutes(g.Group("/auth"))
	a.registerMailRoutes(g.Group("/mail"))
	a.registerVinylRoutes(g.Group("/vinyls"))
	a.registerUserRoutes(g.Group("/users"))
	a.registerCartRoutes(g.Group("/cart", auth.RequireAuth()))
	a.registerOrderRoutes(g.Group("/orders", auth.RequireAuth()))
	a.registerCheckoutRoutes(g.Group("/checkout", auth.RequireAuth()))

	return r
}
