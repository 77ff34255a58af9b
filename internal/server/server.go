package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"docview-paywall/internal/handler"
	appmiddleware "docview-paywall/internal/middleware"
	"docview-paywall/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const ShareKeyHeader = "X-Share-Key"

type Options struct {
	Logger           echo.Logger
	PaymentRateLimit float64

	// ShareKey guards share-link minting; the route is not mounted without it.
	ShareKey string
}

type Server struct {
	echo           *echo.Echo
	accessHandler  *handler.AccessHandler
	paywallHandler *handler.PaywallHandler
	paymentLimiter echo.MiddlewareFunc
	shareKey       string
}

func NewServer(accessHandler *handler.AccessHandler, paywallService service.PaywallService, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	if opts.Logger != nil {
		e.Logger = opts.Logger
	}

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		ExposeHeaders: []string{appmiddleware.VisitorHeader},
	}))
	e.Use(appmiddleware.VisitorMiddleware())

	s := &Server{
		echo:           e,
		accessHandler:  accessHandler,
		paywallHandler: handler.NewPaywallHandler(paywallService),
		paymentLimiter: func(next echo.HandlerFunc) echo.HandlerFunc { return next },
		shareKey:       opts.ShareKey,
	}
	if opts.PaymentRateLimit > 0 {
		s.paymentLimiter = middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(opts.PaymentRateLimit)))
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- visitor / grant access --------
	api.GET("/access/:id", s.accessHandler.GetAccess)
	api.GET("/access/:id/countdown", s.accessHandler.StreamCountdown)
	api.GET("/grants/:token", s.accessHandler.GetGrant)
	if s.shareKey != "" {
		api.POST("/documents/:id/links", s.accessHandler.CreateVisitorLink, middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:" + ShareKeyHeader,
			Validator: func(key string, c echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(s.shareKey)) == 1, nil
			},
		}))
	}

	// -------- paywall flow --------
	pw := api.Group("/paywall/sessions")
	pw.POST("", s.paywallHandler.StartSession)
	pw.GET("/:id", s.paywallHandler.GetSession)
	pw.DELETE("/:id", s.paywallHandler.CloseSession)
	pw.POST("/:id/package", s.paywallHandler.SelectPackage)
	pw.POST("/:id/confirm", s.paywallHandler.Confirm)
	pw.POST("/:id/back", s.paywallHandler.Back)
	pw.POST("/:id/paypal-order", s.paywallHandler.CreatePaypalOrder, s.paymentLimiter)
	pw.POST("/:id/payment", s.paywallHandler.SubmitPayment, s.paymentLimiter)
	pw.GET("/:id/attempts", s.paywallHandler.ListAttempts)
	pw.POST("/:id/retry", s.paywallHandler.Retry)
	pw.POST("/:id/view", s.paywallHandler.ViewDocument)
}

func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
