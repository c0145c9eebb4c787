package web

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/khedge/kimchi_hedge/internal/domain"
	"github.com/khedge/kimchi_hedge/internal/usecase"
)

type Server struct {
	router  *http.ServeMux
	server  *http.Server
	engine  *usecase.TradingEngine
	history domain.HistoryRepository
	logger  *zap.Logger
}

func NewServer(
	port int,
	engine *usecase.TradingEngine,
	history domain.HistoryRepository,
	logger *zap.Logger,
) *Server {
	s := &Server{
		router:  http.NewServeMux(),
		engine:  engine,
		history: history,
		logger:  logger,
	}
	s.routes()
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) routes() {
	// Status
	s.router.HandleFunc("GET /api/status", s.handleStatus)

	// Settings
	s.router.HandleFunc("GET /api/settings", s.handleGetSettings)
	s.router.HandleFunc("POST /api/settings", s.handleUpdateSettings)

	// Trading toggle
	s.router.HandleFunc("POST /api/trading/start", s.handleStart)
	s.router.HandleFunc("POST /api/trading/stop", s.handleStop)

	// Position
	s.router.HandleFunc("POST /api/position/close", s.handleClosePosition)

	// History
	s.router.HandleFunc("GET /api/history", s.handleHistory)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.logger.Info("Starting web server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
