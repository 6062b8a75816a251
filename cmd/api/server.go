package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/bryanwahyu/tally/src/app/games"
	leaderboardsvc "github.com/bryanwahyu/tally/src/app/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/leaderboard"
	"github.com/bryanwahyu/tally/src/domain/ledger"
	"github.com/bryanwahyu/tally/src/domain/shared"
)

type ServerConfig struct {
	Logger             *zap.Logger
	GameService        *games.Service
	LeaderboardService *leaderboardsvc.Service
	CORSOrigins        []string
}

// Server wires HTTP endpoints to application services with observability instrumentation.
type Server struct {
	cfg            ServerConfig
	router         *mux.Router
	handler        http.Handler
	registry       *prometheus.Registry
	httpMetrics    *prometheus.HistogramVec
	requestCounter *prometheus.CounterVec
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	srv := &Server{cfg: cfg}
	srv.initMetrics()
	srv.buildRouter()
	return srv
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) initMetrics() {
	s.registry = prometheus.NewRegistry()
	s.httpMetrics = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tally",
		Subsystem: "http",
		Name:      "request_latency_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "code"})
	s.requestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tally",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests by route",
	}, []string{"route", "method", "code"})
	s.registry.MustRegister(
		s.httpMetrics,
		s.requestCounter,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := s.cfg.GameService
	stat := func(name, help string, read func(games.Stats) int64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "games",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(read(svc.Stats())) })
	}
	s.registry.MustRegister(
		stat("started_total", "Games started or replayed", func(st games.Stats) int64 { return st.GamesStarted }),
		stat("rounds_completed_total", "Rounds submitted", func(st games.Stats) int64 { return st.RoundsCompleted }),
		stat("snapshot_failures_total", "Round snapshots the sink rejected", func(st games.Stats) int64 { return st.SinkFailures }),
		stat("analysis_fallbacks_total", "Finished games that used the fallback analysis", func(st games.Stats) int64 { return st.AnalysisFallbacks }),
	)
}

func (s *Server) buildRouter() {
	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.metricsMiddleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/games", s.handleStartGame).Methods(http.MethodPost)
	api.HandleFunc("/games", s.handleListGames).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", s.handleDeleteGame).Methods(http.MethodDelete)
	api.HandleFunc("/games/{id}/start", s.handleRestartGame).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/rounds", s.handleSubmitRound).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/rounds/{round:[0-9]+}", s.handleReviseRound).Methods(http.MethodPut)
	api.HandleFunc("/games/{id}/cursor", s.handleGoToRound).Methods(http.MethodPut)
	api.HandleFunc("/games/{id}/players", s.handleAddPlayer).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/players/{player}/active", s.handleSetActive).Methods(http.MethodPut)
	api.HandleFunc("/games/{id}/direction", s.handleSetDirection).Methods(http.MethodPut)
	api.HandleFunc("/games/{id}/chart", s.handleChart).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/standings", s.handleStandings).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/finish", s.handleFinish).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/replay", s.handlePlayAgain).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/reset", s.handleReset).Methods(http.MethodPost)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{DisableCompression: true})).Methods(http.MethodGet)
	s.router = r

	var h http.Handler = gzhttp.GzipHandler(r)
	if len(s.cfg.CORSOrigins) > 0 {
		h = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.CORSOrigins),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		)(h)
	}
	s.handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.cfg.Logger}),
		handlers.PrintRecoveryStack(false),
	)(h)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeDomainError maps service errors to HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	s.writeError(w, statusFor(err), err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrConflict), errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidRoundSequence),
		errors.Is(err, ledger.ErrOutOfRangeRound),
		errors.Is(err, ledger.ErrDuplicateEntry),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrInconsistentJoinState),
		errors.Is(err, ledger.ErrInvalidStartingScore),
		errors.Is(err, ledger.ErrNoPlayers),
		errors.Is(err, leaderboard.ErrEmptyPlayerSet),
		errors.Is(err, games.ErrInvalidName):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.cfg.Logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", m.Code),
			zap.Int64("bytes", m.Written),
			zap.Duration("duration", m.Duration),
			zap.String("request_id", requestIDFrom(r.Context())),
		)
	})
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		route := mux.CurrentRoute(r)
		routeName := "unknown"
		if route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				routeName = tmpl
			}
		}
		labels := prometheus.Labels{"route": routeName, "method": r.Method, "code": strconv.Itoa(m.Code)}
		s.httpMetrics.With(labels).Observe(m.Duration.Seconds())
		s.requestCounter.With(labels).Inc()
	})
}

type recoveryLogger struct {
	logger *zap.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Error("panic recovered", zap.String("panic", fmt.Sprint(v...)), zap.Stack("stack"))
}
