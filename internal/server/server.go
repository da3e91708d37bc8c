package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/railbook/internal/booking"
	bookingdomain "github.com/smallbiznis/railbook/internal/booking/domain"
	"github.com/smallbiznis/railbook/internal/commerce/square"
	"github.com/smallbiznis/railbook/internal/config"
	"github.com/smallbiznis/railbook/internal/events"
	"github.com/smallbiznis/railbook/internal/identity"
	"github.com/smallbiznis/railbook/internal/lock"
	"github.com/smallbiznis/railbook/internal/observability"
	obsmiddleware "github.com/smallbiznis/railbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/railbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/railbook/internal/observability/tracing"
	"github.com/smallbiznis/railbook/internal/ratelimit"
	"github.com/smallbiznis/railbook/internal/webhook"
	"github.com/smallbiznis/railbook/pkg/redisclient"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	redisclient.Module,
	square.Module,
	identity.Module,
	lock.Module,
	events.Module,
	ratelimit.Module,
	booking.Module,
	webhook.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware(obsCfg.Debug()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	port := strings.TrimSpace(cfg.ServerPort)
	if port == "" {
		port = "3000"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	policy     *config.PolicyHolder
	bookingSvc bookingdomain.Service
	webhooks   webhook.Ingester
	identity   identity.Validator
	hub        *events.Hub
	limiter    ratelimit.Limiter
	location   *square.LocationHolder
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	Policy     *config.PolicyHolder
	BookingSvc bookingdomain.Service
	Webhooks   webhook.Ingester
	Identity   identity.Validator
	Hub        *events.Hub
	Limiter    ratelimit.Limiter      `optional:"true"`
	Location   *square.LocationHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        log.Named("http.server"),
		policy:     p.Policy,
		bookingSvc: p.BookingSvc,
		webhooks:   p.Webhooks,
		identity:   p.Identity,
		hub:        p.Hub,
		limiter:    p.Limiter,
		location:   p.Location,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) webhookPath() string {
	path := strings.TrimSpace(s.cfg.WebhookPath)
	if path == "" {
		return "/api/events"
	}
	return path
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST(s.webhookPath(), s.RateLimit(), s.HandleEvent)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.RateLimit())

	api.GET("/location", s.GetLocation)

	api.GET("/events/ws", s.StreamEventsWebSocket)
	api.GET("/events/stream", s.StreamEvents)

	api.POST("/customer/search", s.SearchCustomer)

	bookings := api.Group("/customer/booking", s.IdentityRequired())
	{
		bookings.GET("", s.ListBookings)
		bookings.POST("", s.CreateBooking)
		bookings.GET("/:bookingId", s.GetBooking)
		bookings.PUT("/:bookingId", s.UpdateBooking)
		bookings.DELETE("/:bookingId", s.CancelBooking)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.RateLimit(), s.AdminRequired())

	admin.POST("/reconcile", s.ReconcilePaymentLink)
	admin.GET("/policy", s.GetPolicy)
}
