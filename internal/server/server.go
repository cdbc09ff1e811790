// Package server exposes the model registry and the threat-model workspace
// over an authenticated JSON API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"maestro/config"
	"maestro/internal/maestro"
	"maestro/internal/settings"
)

// Server wires the HTTP handlers to the registry, workspace and generator.
type Server struct {
	registry  *config.Registry
	workspace *maestro.Workspace
	generator *maestro.Generator
	auth      *Authenticator
	log       *log.Entry
	engine    *gin.Engine
}

// New builds the gin engine and registers every route.
func New(registry *config.Registry, workspace *maestro.Workspace, generator *maestro.Generator, users map[string]settings.User) *Server {
	s := &Server{
		registry:  registry,
		workspace: workspace,
		generator: generator,
		auth:      NewAuthenticator(users),
		log:       log.WithField("component", "server"),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// SetUsers swaps the accepted bearer tokens without a restart.
func (s *Server) SetUsers(users map[string]settings.User) { s.auth.SetUsers(users) }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api", s.auth.Middleware())
	api.GET("/me", s.me)

	api.GET("/models", s.listModels)
	api.PUT("/models", s.replaceModels)
	api.GET("/models/active", s.activeModels)
	api.POST("/models/next", s.nextModel)

	api.GET("/layers", s.listLayers)
	api.GET("/threats", s.listThreats)
	api.PUT("/threats/description", s.setDescription)
	api.POST("/threats/generate", s.generateThreats)
	api.GET("/threats/matrix", s.riskMatrix)
	api.DELETE("/threats/:id", s.removeThreat)
	api.POST("/diagram", s.generateDiagram)
	api.POST("/layer-prompt", s.generateLayerPrompt)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).Round(time.Millisecond),
		}).Debug("request")
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
