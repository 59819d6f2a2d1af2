package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"gemex-ace/internal/logger"
	"gemex-ace/internal/tradelog"
	"gemex-ace/internal/types"
)

type PlaybookReader interface {
	Load(ctx context.Context) (*types.Playbook, error)
	History() ([]string, error)
	LoadVersion(ctx context.Context, version string) (*types.Playbook, error)
}

type SessionReader interface {
	ListSessions() ([]string, error)
	LoadPlan(day time.Time) (*types.TradingPlan, error)
	LoadTradeLog(day time.Time) (*types.TradeLog, error)
	ListReflections() ([]string, error)
	LoadReflection(key string) (*types.Reflection, error)
}

// Server exposes the persisted state read-only over HTTP.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	playbook PlaybookReader
	sessions SessionReader
	started  time.Time
}

func New(addr string, allowedOrigins []string, pb PlaybookReader, sessions SessionReader) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		playbook: pb,
		sessions: sessions,
		started:  time.Now(),
	}
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	s.routes()

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/playbook", s.handlePlaybook)
		r.Get("/playbook/history", s.handleHistory)
		r.Get("/playbook/history/{version}", s.handleHistoryVersion)
		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{date}", s.handleSession)
		r.Get("/reflections", s.handleReflections)
		r.Get("/reflections/{week}", s.handleReflection)
	})
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	logger.Info(context.Background(), "Starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info(ctx, "Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug(r.Context(), "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, os.ErrNotExist) {
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		logger.ErrorWithErr(r.Context(), "Request failed", err, "path", r.URL.Path)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

type status struct {
	PlaybookVersion string    `json:"playbook_version"`
	TotalBullets    int       `json:"total_bullets"`
	LastUpdated     time.Time `json:"last_updated"`
	Sessions        int       `json:"sessions"`
	LastSession     string    `json:"last_session,omitempty"`
	Reflections     int       `json:"reflections"`
	LastReflection  string    `json:"last_reflection,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pb, err := s.playbook.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sessions, err := s.sessions.ListSessions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	reflections, err := s.sessions.ListReflections()
	if err != nil {
		writeError(w, r, err)
		return
	}
	st := status{
		PlaybookVersion: pb.Metadata.Version,
		TotalBullets:    pb.Metadata.TotalBullets,
		LastUpdated:     pb.Metadata.LastUpdated,
		Sessions:        len(sessions),
		Reflections:     len(reflections),
	}
	if len(sessions) > 0 {
		st.LastSession = sessions[len(sessions)-1]
	}
	if len(reflections) > 0 {
		st.LastReflection = reflections[len(reflections)-1]
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePlaybook(w http.ResponseWriter, r *http.Request) {
	pb, err := s.playbook.Load(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	versions, err := s.playbook.History()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (s *Server) handleHistoryVersion(w http.ResponseWriter, r *http.Request) {
	pb, err := s.playbook.LoadVersion(r.Context(), chi.URLParam(r, "version"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pb)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type session struct {
	Date     string             `json:"date"`
	Plan     *types.TradingPlan `json:"plan"`
	TradeLog *types.TradeLog    `json:"trade_log"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	day, err := tradelog.ParseSessionDay(chi.URLParam(r, "date"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
		return
	}
	plan, err := s.sessions.LoadPlan(day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	log, err := s.sessions.LoadTradeLog(day)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if plan == nil && log == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no session for " + types.FormatDate(day)})
		return
	}
	writeJSON(w, http.StatusOK, session{Date: types.FormatDate(day), Plan: plan, TradeLog: log})
}

func (s *Server) handleReflections(w http.ResponseWriter, r *http.Request) {
	weeks, err := s.sessions.ListReflections()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"weeks": weeks})
}

func (s *Server) handleReflection(w http.ResponseWriter, r *http.Request) {
	refl, err := s.sessions.LoadReflection(chi.URLParam(r, "week"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refl)
}
