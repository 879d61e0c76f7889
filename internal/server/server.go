// Package server exposes the engine over HTTP: batch submission, the
// quota surface and operational endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/geopulselabs/geopulse/internal/audit/domain"
	"github.com/geopulselabs/geopulse/internal/batch"
	"github.com/geopulselabs/geopulse/internal/cache"
	"github.com/geopulselabs/geopulse/internal/config"
	"github.com/geopulselabs/geopulse/internal/observability/logger"
	quotadomain "github.com/geopulselabs/geopulse/internal/quota/domain"
	"github.com/geopulselabs/geopulse/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg          config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	Orchestrator *batch.Orchestrator
	Assembler    *report.Assembler
	QuotaSvc     quotadomain.Service
	AuditSvc     auditdomain.Service
}

type Server struct {
	cfg          config.Config
	log          *zap.Logger
	db           *gorm.DB
	engine       *gin.Engine
	orchestrator *batch.Orchestrator
	assembler    *report.Assembler
	quotaSvc     quotadomain.Service
	auditSvc     auditdomain.Service
	limiter      *rateLimiter
	quotaCache   *cache.TTLCache[string, quotadomain.Summary]
}

// NewEngine builds the gin engine with the shared middleware stack.
func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logger.GinMiddleware(logger.MiddlewareConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	return engine
}

func NewServer(p Params, engine *gin.Engine) *Server {
	return &Server{
		cfg:          p.Cfg,
		log:          p.Log.Named("server"),
		db:           p.DB,
		engine:       engine,
		orchestrator: p.Orchestrator,
		assembler:    p.Assembler,
		quotaSvc:     p.QuotaSvc,
		auditSvc:     p.AuditSvc,
		limiter:      newRateLimiter(10, time.Minute),
		quotaCache:   cache.NewTTLCache[string, quotadomain.Summary](),
	}
}

// RegisterAPIRoutes wires the public surface. Authentication is an
// external collaborator; the caller identity arrives as a header.
func (s *Server) RegisterAPIRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api/v1")
	api.Use(s.requireUser())
	{
		api.POST("/batches", s.SubmitBatch)
		api.GET("/quota", s.QuotaStatus)
		api.POST("/quota/extend", s.ExtendQuota)
		api.POST("/quota/reset", s.ResetQuota)
		api.GET("/audit", s.AuditTrail)
	}
}

// RunHTTP starts the HTTP server under the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTP.Addr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterAPIRoutes() }),
	fx.Invoke(RunHTTP),
)
