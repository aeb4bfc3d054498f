// Package http implements the Course Hub REST API: enrollment, lesson
// progress, assessments, chat and the catalog reads around them.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coursehub/coursehub-platform/internal/application/command"
	"github.com/coursehub/coursehub-platform/internal/application/query"
	"github.com/coursehub/coursehub-platform/internal/interface/http/handlers"
	"github.com/coursehub/coursehub-platform/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// RequestTimeout bounds the handler context (0 = no bound).
	RequestTimeout time.Duration

	MaxHeaderBytes int
	MaxBodyBytes   int64

	EnableCORS     bool
	AllowedOrigins []string

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// ClosedRegistration restricts account creation to admins.
	ClosedRegistration bool

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		RequestTimeout:     25 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       1 << 20,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 300,
		Version:            "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Commands groups the write-side handlers.
type Commands struct {
	CreateUser   *command.CreateUserHandler
	Authenticate *command.AuthenticateHandler

	CreateCourse *command.CreateCourseHandler
	AddModule    *command.AddModuleHandler
	AddLesson    *command.AddLessonHandler
	AddQuestion  *command.AddQuestionHandler

	RegisterForCourse *command.RegisterForCourseHandler
	StartLesson       *command.StartLessonHandler
	FinishLesson      *command.FinishLessonHandler

	GenerateTest *command.GenerateTestHandler
	StartTest    *command.StartTestHandler
	SubmitTest   *command.SubmitTestHandler

	GiveFeedback *command.GiveFeedbackHandler
	SendMessage  *command.SendMessageHandler
}

// Queries groups the read-side handlers.
type Queries struct {
	ListCourses  *query.ListCoursesHandler
	GetCourse    *query.GetCourseHandler
	ListModules  *query.ListModulesHandler
	ListLessons  *query.ListLessonsHandler
	GetModule    *query.GetModuleHandler
	GetLesson    *query.GetLessonHandler
	ListFeedback *query.ListFeedbackHandler

	ListEnrollments   *query.ListEnrollmentsHandler
	ListResults       *query.ListResultsHandler
	GetTestResult     *query.GetTestResultHandler
	InitialTestResult *query.InitialTestResultHandler

	DownloadCertificate *query.DownloadCertificateHandler
	DownloadContract    *query.DownloadContractHandler

	ListMessages  *query.ListMessagesHandler
	GetStatistics *query.GetStatisticsHandler
}

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	Commands Commands
	Queries  Queries

	// Tokens verifies bearer tokens.
	Tokens handlers.TokenVerifier

	HealthChecker handlers.HealthChecker

	Logger *logger.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server is the HTTP API server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *logger.Logger
	auth       *handlers.BearerAuth

	rateLimiter *rateLimiter

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Default()
	}
	if s.deps.HealthChecker == nil {
		s.deps.HealthChecker = handlers.NewNoopHealthChecker()
	}
	s.logger = s.logger.With(logger.Component("http"))
	s.auth = handlers.NewBearerAuth(deps.Tokens, s.writeError)

	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.Handler(),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return s.buildMiddlewareChain(s.router)
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /healthz", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	// ─────────────────────────────────────────────────────────────────────────
	// Accounts
	// ─────────────────────────────────────────────────────────────────────────
	s.public("POST /api/v1/auth/register", s.handleRegisterUser)
	s.public("POST /api/v1/auth/login", s.handleLogin)
	s.private("GET /api/v1/auth/me", s.handleMe)

	// ─────────────────────────────────────────────────────────────────────────
	// Catalog
	// ─────────────────────────────────────────────────────────────────────────
	s.public("GET /api/v1/courses", s.handleListCourses)
	s.private("POST /api/v1/courses", s.handleCreateCourse)
	s.public("GET /api/v1/courses/{id}", s.handleGetCourse)
	s.public("GET /api/v1/courses/{id}/modules", s.handleListModules)
	s.private("POST /api/v1/courses/{id}/modules", s.handleAddModule)
	s.public("GET /api/v1/modules/{id}", s.handleGetModule)
	s.public("GET /api/v1/modules/{id}/lessons", s.handleListLessons)
	s.public("GET /api/v1/lessons/{id}", s.handleGetLesson)
	s.private("POST /api/v1/modules/{id}/lessons", s.handleAddLesson)
	s.private("POST /api/v1/courses/{id}/questions", s.handleAddQuestion)
	s.public("GET /api/v1/feedback", s.handleListFeedback)
	s.public("GET /api/v1/courses/{id}/feedback", s.handleListFeedback)
	s.private("POST /api/v1/courses/{id}/feedback", s.handleGiveFeedback)
	s.public("GET /api/v1/statistics", s.handleStatistics)

	// ─────────────────────────────────────────────────────────────────────────
	// Enrollment & lesson progress
	// ─────────────────────────────────────────────────────────────────────────
	s.private("POST /api/v1/courses/{id}/register", s.handleRegisterForCourse)
	s.private("GET /api/v1/enrollments", s.handleListEnrollments)
	s.private("GET /api/v1/enrollments/{id}/contract", s.handleDownloadContract)
	s.private("POST /api/v1/lessons/{id}/start", s.handleStartLesson)
	s.private("POST /api/v1/lessons/{id}/finish", s.handleFinishLesson)

	// ─────────────────────────────────────────────────────────────────────────
	// Assessments
	// ─────────────────────────────────────────────────────────────────────────
	s.private("POST /api/v1/courses/{id}/tests", s.handleGenerateTest)
	s.private("GET /api/v1/courses/{id}/tests/initial", s.handleInitialTestResult)
	s.private("GET /api/v1/tests", s.handleListResults)
	s.private("POST /api/v1/tests/{id}/start", s.handleStartTest)
	s.private("POST /api/v1/tests/{id}/submit", s.handleSubmitTest)
	s.private("GET /api/v1/tests/{id}/result", s.handleTestResult)
	s.private("GET /api/v1/tests/{id}/certificate", s.handleDownloadCertificate)

	// ─────────────────────────────────────────────────────────────────────────
	// Chat
	// ─────────────────────────────────────────────────────────────────────────
	s.private("GET /api/v1/modules/{id}/messages", s.handleListMessages)
	s.private("POST /api/v1/modules/{id}/messages", s.handleSendMessage)
}

// public routes resolve the principal when a token is sent.
func (s *Server) public(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, s.auth.Optional(h))
}

// private routes require a valid token.
func (s *Server) private(pattern string, h http.HandlerFunc) {
	s.router.Handle(pattern, handlers.Chain(s.auth.Required, handlers.NoCacheMiddleware)(h))
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		handlers.SecurityHeadersMiddleware,
	}
	if s.config.EnableCORS {
		chain = append(chain, s.corsMiddleware)
	}
	if s.rateLimiter != nil {
		chain = append(chain, s.rateLimitMiddleware)
	}
	chain = append(chain,
		handlers.RequestSizeLimitMiddleware(s.config.MaxBodyBytes),
		handlers.TimeoutMiddleware(s.config.RequestTimeout),
	)
	return handlers.Chain(chain...)(handler)
}

// requestIDMiddleware assigns a request ID and a request-scoped logger.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.WithRequestID(requestID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		fields := []logger.Field{
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rw.statusCode),
			logger.Int64("duration_ms", time.Since(start).Milliseconds()),
			logger.String("ip", getClientIP(r)),
			logger.String("request_id", getRequestID(r.Context())),
		}
		switch {
		case rw.statusCode >= http.StatusInternalServerError:
			s.logger.Error("http request", fields...)
		case rw.statusCode >= http.StatusBadRequest:
			s.logger.Warn("http request", fields...)
		default:
			s.logger.Info("http request", fields...)
		}
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				s.logger.Error("panic recovered",
					logger.Any("error", err),
					logger.String("stack", string(debug.Stack())),
					logger.String("path", r.URL.Path),
					logger.String("request_id", getRequestID(r.Context())),
				)
				writeJSONError(w, r, http.StatusInternalServerError, codeInternal, "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", logger.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.written = true
	return rw.ResponseWriter.Write(b)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}
