// Package server exposes snapshots over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stone-age-io/hostfacts/internal/config"
	"github.com/stone-age-io/hostfacts/internal/display"
	"github.com/stone-age-io/hostfacts/internal/sysinfo"
	"go.uber.org/zap"
)

var contentTypes = map[string]string{
	display.FormatText: "text/plain; charset=utf-8",
	display.FormatJSON: "application/json; charset=utf-8",
	display.FormatYAML: "application/yaml; charset=utf-8",
	display.FormatProm: "text/plain; version=0.0.4; charset=utf-8",
}

// Server serves snapshots taken on demand. Every request acquires its own
// snapshot and releases it before responding.
type Server struct {
	logger   *zap.Logger
	config   config.ServerConfig
	provider *sysinfo.Provider
	fields   []sysinfo.Field
	router   *gin.Engine
}

// New creates a server. fields is the default field selection for /facts.
func New(logger *zap.Logger, cfg config.ServerConfig, provider *sysinfo.Provider, fields []sysinfo.Field) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger:   logger,
		config:   cfg,
		provider: provider,
		fields:   fields,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", s.Metrics)

	facts := r.Group("/facts")
	{
		facts.GET("", s.GetFacts)
		facts.GET("/:field", s.GetField)
	}

	s.router = r
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.config.Listen))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

// Health handles GET /healthz.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetFacts handles GET /facts. Query parameters: format (json by default)
// and fields (comma-separated keys).
func (s *Server) GetFacts(c *gin.Context) {
	format := c.DefaultQuery("format", display.FormatJSON)
	if _, ok := contentTypes[format]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown format %q", format)})
		return
	}

	fields := s.fields
	if raw := c.Query("fields"); raw != "" {
		parsed, err := sysinfo.ParseFields(strings.Split(raw, ","))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fields = parsed
	}

	host, _ := os.Hostname()
	opts := display.Options{
		Format:    format,
		Fields:    fields,
		Separator: "-",
		Hostname:  host,
	}

	s.render(c, contentTypes[format], func(buf *bytes.Buffer, info sysinfo.SystemInfo) error {
		return display.Render(buf, info, opts)
	})
}

// Metrics handles GET /metrics with the full field set.
func (s *Server) Metrics(c *gin.Context) {
	s.render(c, contentTypes[display.FormatProm], func(buf *bytes.Buffer, info sysinfo.SystemInfo) error {
		return display.Render(buf, info, display.Options{Format: display.FormatProm})
	})
}

// GetField handles GET /facts/:field. An unavailable facet is returned
// with a null value; an unknown key is a 404.
func (s *Server) GetField(c *gin.Context) {
	field, err := sysinfo.ParseField(c.Param("field"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	err = s.provider.With(c.Request.Context(), func(info sysinfo.SystemInfo) error {
		var value any
		if info.Available(field) {
			value = info.Get(field)
		}
		c.JSON(http.StatusOK, gin.H{
			"field": field.Key(),
			"label": field.Label(),
			"value": value,
		})
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to acquire snapshot", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

// render acquires a snapshot, renders it into a buffer and writes it
// only when rendering succeeded
func (s *Server) render(c *gin.Context, contentType string, fn func(*bytes.Buffer, sysinfo.SystemInfo) error) {
	var buf bytes.Buffer
	err := s.provider.With(c.Request.Context(), func(info sysinfo.SystemInfo) error {
		return fn(&buf, info)
	})
	if err != nil {
		if errors.Is(err, sysinfo.ErrAcquire) {
			s.logger.Error("Failed to acquire snapshot", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
