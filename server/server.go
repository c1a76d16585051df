// Package server exposes forecast runs over http
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/aouyang1/grid-forecaster/config"
	"github.com/aouyang1/grid-forecaster/logging"
	"github.com/aouyang1/grid-forecaster/pipeline"
)

const (
	ReadTimeout     = 10 * time.Second
	WriteTimeout    = 2 * time.Minute
	ShutdownTimeout = 30 * time.Second
)

// Server answers forecast requests with a fresh pipeline run per request
type Server struct {
	cfg    *config.Config
	orch   *pipeline.Orchestrator
	logger *logrus.Logger
	router *gin.Engine

	// Now stamps export filenames
	Now func() time.Time
}

// New builds the router with recovery, cors, tracing and request logging
func New(cfg *config.Config, orch *pipeline.Orchestrator, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		logger: logger,
		Now:    time.Now,
	}

	router := gin.New()
	router.Use(recovery(logger))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))
	if cfg.Telemetry.Enabled {
		router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	router.Use(requestLogger(logger))

	router.GET("/health", s.health)
	// every forecast route runs the pipeline on its own, downloads do not reuse an earlier run
	api := router.Group("/api/v1")
	{
		api.GET("/metrics", s.listMetrics)
		api.GET("/forecast", s.forecast)
		api.GET("/forecast/input.csv", s.inputCSV)
		api.GET("/forecast/forecast.csv", s.forecastCSV)
		api.GET("/forecast/coefficients.csv", s.coefficientsCSV)
		api.GET("/forecast/chart", s.chart)
	}
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, CodeNotFound, "route not found")
	})
	s.router = router
	return s
}

// Handler returns the http handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until the context is cancelled and then drains in flight requests
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.router,
		ReadTimeout:       ReadTimeout,
		ReadHeaderTimeout: ReadTimeout,
		WriteTimeout:      WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.WithField("port", s.cfg.Server.Port).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shutdown http server, %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.WithField("panic", recovered).Error("recovered from panic")
		msg := "an unexpected error occurred"
		if s, ok := recovered.(string); ok {
			msg = s
		}
		abortWithError(c, http.StatusInternalServerError, CodeInternal, msg)
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		ExposedHeaders: []string{"Content-Disposition", HeaderRunID},
	})
	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":              c.Request.Method,
			"path":                c.Request.URL.Path,
			"status":              c.Writer.Status(),
			logging.FieldDuration: time.Since(start).String(),
		}).Info("handled request")
	}
}
