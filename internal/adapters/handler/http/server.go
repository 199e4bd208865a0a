package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	redisq "github.com/KoDakness/404syndicate-sub000/internal/adapters/queue/redis"
	"github.com/KoDakness/404syndicate-sub000/internal/core/circuitbreaker"
	"github.com/KoDakness/404syndicate-sub000/internal/core/logger"
	"github.com/KoDakness/404syndicate-sub000/internal/core/ports"
	"github.com/KoDakness/404syndicate-sub000/internal/core/services"
)

const feedBacklog = 50

// FailureLister reads the journal of dropped writes.
type FailureLister interface {
	List(ctx context.Context, offset, limit int64) ([]*redisq.FailureEntry, error)
}

type Server struct {
	router    *chi.Mux
	sessions  *services.SessionManager
	chat      *services.ChatService
	catalog   ports.Catalog
	healthSvc *services.HealthService
	failures  FailureLister
	hub       *Hub
	metrics   bool
}

// ServerDeps groups what the HTTP surface talks to. Chat and Failures may be nil.
type ServerDeps struct {
	Sessions *services.SessionManager
	Chat     *services.ChatService
	Catalog  ports.Catalog
	Health   *services.HealthService
	Failures FailureLister
	Hub      *Hub
	// ExposeMetrics mounts the Prometheus endpoint at /metrics.
	ExposeMetrics bool
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		sessions:  deps.Sessions,
		chat:      deps.Chat,
		catalog:   deps.Catalog,
		healthSvc: deps.Health,
		failures:  deps.Failures,
		hub:       deps.Hub,
		metrics:   deps.ExposeMetrics,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(MetricsMiddleware)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Metrics endpoint
	if s.metrics {
		s.router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			MetricsHandler().ServeHTTP(w, r)
		})
	}

	// Kubernetes probes
	s.router.Get("/health/live", s.handleLiveness)
	s.router.Get("/health/ready", s.handleReadiness)

	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/health/detailed", s.handleDetailedHealth)

	s.router.Get("/api/shop", s.handleListEquipment)
	s.router.Get("/api/events", s.handleListEvents)

	s.router.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/ws", s.handleWS)
		r.Get("/api/player", s.handlePlayer)
		r.Get("/api/feed", s.handleFeed)
		r.Post("/api/visibility", s.handleVisibility)

		r.Route("/api/contracts", func(r chi.Router) {
			r.Get("/", s.handleContracts)
			r.Post("/{id}/accept", s.handleAccept)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/manual-refresh", s.handleManualRefresh)
		})

		r.Post("/api/shop/{id}/purchase", s.handlePurchase)

		r.Route("/api/loadouts", func(r chi.Router) {
			r.Post("/", s.handleCreateLoadout)
			r.Post("/{id}/equip", s.handleEquipLoadout)
			r.Put("/{id}/slots/{slot}", s.handleInstall)
			r.Delete("/{id}/slots/{slot}", s.handleUninstall)
			r.Delete("/{id}", s.handleDeleteLoadout)
		})

		r.Post("/api/skills/{skill}/upgrade", s.handleUpgradeSkill)

		r.Post("/api/events/reward", s.handleEventReward)
		r.Post("/api/events/{id}/complete", s.handleCompleteEvent)

		r.Get("/api/chat", s.handleRecentChat)
		r.Post("/api/chat", s.handleSendChat)

		r.Route("/api/tutorial", func(r chi.Router) {
			r.Post("/step", s.handleTutorialStep)
			r.Post("/complete", s.handleTutorialComplete)
			r.Post("/features", s.handleFeatureSeen)
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/time-multiplier", s.handleTimeMultiplier)
			r.Get("/write-failures", s.handleWriteFailures)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
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

type ctxKey struct{}

func sessionFrom(ctx context.Context) *services.Session {
	s, _ := ctx.Value(ctxKey{}).(*services.Session)
	return s
}

// bearerToken reads the Authorization header, falling back to the token
// query parameter browsers use for websockets.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logger.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		session, err := s.sessions.Open(ctx, bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx = logger.WithUser(ctx, session.UserID())
		ctx = context.WithValue(ctx, ctxKey{}, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r.Context()).IsAdmin() {
			writeError(w, r, services.ErrNotAdmin)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotAdmin):
		return http.StatusForbidden
	case services.IsRejection(err):
		return http.StatusBadRequest
	case services.IsDuplicate(err):
		return http.StatusConflict
	case errors.Is(err, services.ErrSessionClosed), errors.Is(err, services.ErrChatDisabled),
		errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// decodeBody decodes an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidJSON
	}
	return nil
}

var errInvalidJSON = errors.New("invalid JSON body")

func writeDecodeError(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidJSON.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	status, code := s.healthSvc.SimpleHealthCheck(r.Context())
	w.WriteHeader(code)
	w.Write([]byte(status))
}

func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthSvc.CheckHealth(r.Context())

	statusCode := http.StatusOK
	if report.Status == services.HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, report)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	var backlog []Message
	for _, entry := range session.Feed(feedBacklog) {
		backlog = append(backlog, Message{Type: MessageFeed, Payload: entry})
	}
	ServeWs(s.hub, session.UserID(), backlog, w, r)
}

func queryInt(r *http.Request, key string, fallback, max int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= max {
			return n
		}
	}
	return fallback
}

func (s *Server) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Equipment())
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog.Events())
}

func (s *Server) handleWriteFailures(w http.ResponseWriter, r *http.Request) {
	if s.failures == nil {
		writeJSON(w, http.StatusOK, []*redisq.FailureEntry{})
		return
	}
	offset := queryInt(r, "offset", 0, 1<<20)
	limit := queryInt(r, "limit", 20, 100)
	if limit == 0 {
		limit = 20
	}
	entries, err := s.failures.List(r.Context(), int64(offset), int64(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
