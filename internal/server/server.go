package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/authr/internal/auth"
	authservice "github.com/smallbiznis/authr/internal/auth/service"
	"github.com/smallbiznis/authr/internal/auth/session"
	"github.com/smallbiznis/authr/internal/authorization"
	"github.com/smallbiznis/authr/internal/cache"
	"github.com/smallbiznis/authr/internal/config"
	"github.com/smallbiznis/authr/internal/datastore"
	"github.com/smallbiznis/authr/internal/observability"
	obslogger "github.com/smallbiznis/authr/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/authr/internal/observability/metrics"
	obstracing "github.com/smallbiznis/authr/internal/observability/tracing"
	"github.com/smallbiznis/authr/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	cache.Module,
	datastore.Module,
	auth.Module,
	authorization.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server failed", zap.Error(err))
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

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	authsvc  *authservice.Service
	sessions *session.Manager
	authzSvc authorization.Service
	limiter  *ratelimit.LoginLimiter
	data     map[string]dataHandler
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	Authsvc  *authservice.Service
	Sessions *session.Manager
	AuthzSvc authorization.Service
	Stores   *datastore.Stores
	Limiter  *ratelimit.LoginLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		authsvc:  p.Authsvc,
		sessions: p.Sessions,
		authzSvc: p.AuthzSvc,
		limiter:  p.Limiter,
		data:     newDataHandlers(p.Stores),
	}
}

func registerRoutes(s *Server) {
	s.RegisterAuthRoutes()
	s.RegisterDataRoutes()
}

func (s *Server) RegisterAuthRoutes() {
	authGroup := s.engine.Group("/auth")
	authGroup.GET("/google/login", s.OAuthLogin)
	authGroup.GET("/google/callback", s.OAuthCallback)
	authGroup.POST("/logout", s.Logout)
	authGroup.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) RegisterDataRoutes() {
	data := s.engine.Group("/data", s.AuthRequired())
	data.GET("/:kind", s.RequireAccess(), s.ListRecords)
	data.POST("/:kind", s.RequireAccess(), s.CreateRecord)
	data.GET("/:kind/:id", s.RequireAccess(), s.GetRecord)
	data.PUT("/:kind/:id", s.RequireAccess(), s.UpdateRecord)
	data.DELETE("/:kind/:id", s.RequireAccess(), s.DeleteRecord)
}
