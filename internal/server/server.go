// Package server exposes the dashboard API over chi.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/outreach-engine/internal/model"
	"github.com/sells-group/outreach-engine/internal/store"
	"github.com/sells-group/outreach-engine/pkg/telegram"
)

// Runner triggers an engine run. The engine itself rejects overlapping
// invocations, so the handler fires and forgets.
type Runner interface {
	Run(ctx context.Context) *model.RunResult
}

// TelegramProber checks bot credentials. Matched by pkg/telegram.Client.
type TelegramProber interface {
	Me(ctx context.Context) (string, error)
}

// Server wires the store and engine behind the HTTP API.
type Server struct {
	store         store.Store
	engine        Runner
	proberFactory func(botToken, chatID string) TelegramProber
	router        chi.Router
}

// Option configures the server.
type Option func(*Server)

// WithProberFactory overrides how the Telegram connectivity probe is built.
func WithProberFactory(f func(botToken, chatID string) TelegramProber) Option {
	return func(s *Server) { s.proberFactory = f }
}

// New builds the router. Pass the result to http.Server as the handler.
func New(st store.Store, engine Runner, opts ...Option) *Server {
	s := &Server{
		store:  st,
		engine: engine,
		proberFactory: func(botToken, chatID string) TelegramProber {
			return telegram.NewClient(botToken, chatID)
		},
	}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/stats", s.handleStats)
		r.Get("/leads", s.handleListLeads)

		r.Get("/targets", s.handleListTargets)
		r.Post("/targets", s.handleCreateTarget)
		r.Delete("/targets/{id}", s.handleDeleteTarget)

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleUpdateSettings)
		r.Get("/settings/test/telegram", s.handleTestTelegram)

		r.Post("/engine/control", s.handleEngineControl)
		r.Post("/engine/run", s.handleEngineRun)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type apiMessage struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func writeMessage(w http.ResponseWriter, status int, success bool, format string, args ...any) {
	writeJSON(w, status, apiMessage{Success: success, Message: fmt.Sprintf(format, args...)})
}

// writeStoreError hides internals from clients; the cause goes to the log.
func writeStoreError(w http.ResponseWriter, action string, err error) {
	zap.L().Error(action, zap.Error(err))
	writeMessage(w, http.StatusInternalServerError, false, "internal error")
}
