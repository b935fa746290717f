package web

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/scout-edge/brandgate/internal/matcher"
	"github.com/scout-edge/brandgate/internal/quality"
	"github.com/scout-edge/brandgate/internal/report"
	"github.com/scout-edge/brandgate/internal/rules"
	"github.com/scout-edge/brandgate/internal/web/handlers"
	"github.com/scout-edge/brandgate/internal/web/middleware"
)

// Server exposes the validation core over HTTP.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
	log        *logrus.Logger
}

// NewServer wires the validation components into the HTTP API. store may
// be nil, which disables the report lookup endpoints; a nil scorer gets the
// default thresholds.
func NewServer(addr, apiKey string, m *matcher.Matcher, v *rules.Validator, scorer *quality.Scorer, store *report.Store, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	if scorer == nil {
		scorer = quality.NewScorer()
	}

	s := &Server{log: log}
	s.setupRoutes(apiKey, m, v, scorer, store)

	// CORS and logging wrap the router itself so preflight and unmatched
	// requests get them too; mux only runs Use middleware on matched routes.
	s.handler = middleware.RequestLogging(log)(middleware.CORS()(s.router))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(apiKey string, m *matcher.Matcher, v *rules.Validator, scorer *quality.Scorer, store *report.Store) {
	s.router = mux.NewRouter()

	h := &handlers.ValidationHandler{
		Matcher:   m,
		Validator: v,
		Scorer:    scorer,
		Store:     store,
		Log:       s.log,
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/validate", h.Validate).Methods("POST")
	api.HandleFunc("/reports", h.ListReports).Methods("GET")
	api.HandleFunc("/reports/{id}", h.GetReport).Methods("GET")
	api.HandleFunc("/stats", h.GetStats).Methods("GET")

	s.router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")

	api.Use(middleware.Authentication(apiKey))
}

// Start runs the server until SIGINT/SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("server error")
		}
	}()

	<-stop
	s.log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the full middleware-wrapped handler for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}
