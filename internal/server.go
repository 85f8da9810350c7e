package internal

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"connectrpc.com/grpchealth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kazz187/taskcadence/internal/config"
	"github.com/kazz187/taskcadence/internal/deadline"
	"github.com/kazz187/taskcadence/internal/notification"
	"github.com/kazz187/taskcadence/internal/pushnotification"
	"github.com/kazz187/taskcadence/internal/recurrence"
	"github.com/kazz187/taskcadence/internal/task"
	"github.com/kazz187/taskcadence/pkg/cerr"
	"github.com/kazz187/taskcadence/pkg/clog"
)

type Server struct {
	server                 *http.Server
	env                    *config.Env
	health                 *grpchealth.StaticChecker
	recurrenceServer       *recurrence.Server
	taskServer             *task.Server
	notificationServer     *notification.Server
	deadlineServer         *deadline.Server
	pushNotificationServer *pushnotification.Server
}

func NewServer(
	env *config.Env,
	recurrenceServer *recurrence.Server,
	taskServer *task.Server,
	notificationServer *notification.Server,
	deadlineServer *deadline.Server,
	pushNotificationServer *pushnotification.Server,
) *Server {
	return &Server{
		env:                    env,
		health:                 grpchealth.NewStaticChecker(),
		recurrenceServer:       recurrenceServer,
		taskServer:             taskServer,
		notificationServer:     notificationServer,
		deadlineServer:         deadlineServer,
		pushNotificationServer: pushNotificationServer,
	}
}

// Handler builds the full handler chain. Servers left nil are not mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(
			middleware.RequestID,
			clog.SlogChiMiddleware(),
			cerr.NewConvertErrorChiMiddleware(),
		)
		if s.recurrenceServer != nil {
			s.recurrenceServer.Mount(r)
		}
		if s.taskServer != nil {
			s.taskServer.Mount(r)
		}
		if s.notificationServer != nil {
			s.notificationServer.Mount(r)
		}
		if s.deadlineServer != nil {
			s.deadlineServer.Mount(r)
		}
		if s.pushNotificationServer != nil {
			s.pushNotificationServer.Mount(r)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			cerr.SetNewJSONError(r.Context(), cerr.NotFound, "not found", nil)
		})
	})

	mux := http.NewServeMux()
	mux.Handle("/health", &HealthChecker{})
	mux.Handle("/api/", r)
	mux.Handle(grpchealth.NewHandler(s.health))

	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.apiKeyMiddleware(mux))
}

// ListenAndServe starts the HTTP server. ctx becomes the base context of
// every request.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := net.JoinHostPort(s.env.HTTPHost, s.env.HTTPPort)
	slog.Info("starting server", "addr", addr)

	s.server = &http.Server{
		Addr:        addr,
		Handler:     h2c.NewHandler(s.Handler(), &http2.Server{}),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetStatus("", grpchealth.StatusNotServing)
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type HealthChecker struct{}

func (hc *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health endpoints are open.
		if r.URL.Path == "/health" || r.URL.Path == "/grpc.health.v1.Health/Check" {
			next.ServeHTTP(w, r)
			return
		}
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			apiKey = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(s.env.APIKey)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
