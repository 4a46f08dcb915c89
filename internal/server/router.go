package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"opsvoice/internal/domain"
	"opsvoice/internal/logger"
	"opsvoice/internal/service"
	"opsvoice/internal/session"
)

// Config wires the HTTP surface to the core services.
type Config struct {
	Mode       string
	AdminToken string
	Ingestor   *service.IngestionService
	Retriever  domain.Retriever
	Store      domain.VectorStore
	Responder  session.Responder
	Session    session.Config
	Log        *logger.Logger
}

// Server owns the gin engine serving the ingest API, the diagnostic
// search endpoint and the websocket session endpoint.
type Server struct {
	engine *gin.Engine
	cfg    Config
	log    *logger.Logger
}

func New(cfg Config) *Server {
	if cfg.Mode == "prod" || cfg.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{cfg: cfg, log: cfg.Log.With("service", "Server")}

	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/healthz", s.handleHealth)
	api := engine.Group("/api")
	{
		api.POST("/manuals", s.handleIngest)
		api.GET("/search", s.handleSearch)
	}
	engine.GET("/ws", s.handleSession)

	s.engine = engine
	return s
}

// Handler exposes the engine for httptest and the http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
