// Package http implements the assembly transport layer: the JSON/HTTP
// wire protocol of spec §6 and the WebSocket push channel, built on
// chi + gorilla/websocket the way the pack's wisbric-nightowl repo builds
// its HTTP server, grounded further on the source's
// artemis-web/src/server.rs for endpoint shape.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	artemis "github.com/artemis-registry/artemis"
	"github.com/artemis-registry/artemis/cluster"
	"github.com/artemis-registry/artemis/loadbalancer"
	"github.com/artemis-registry/artemis/model"
	"github.com/artemis-registry/artemis/replication"
	"github.com/artemis-registry/artemis/session"
)

// Server wires the registry core onto a chi router implementing every
// endpoint in spec §6's table.
type Server struct {
	Router     *chi.Mux
	registry   *artemis.Registry
	sessions   *session.Manager
	membership *cluster.Membership
	balancer   *loadbalancer.Balancer
	logger     *slog.Logger
	startedAt  time.Time
}

// NewServer builds a Server with routing and middleware installed; call
// Router.ServeHTTP or http.ListenAndServe(addr, server.Router).
func NewServer(reg *artemis.Registry, sessions *session.Manager, membership *cluster.Membership, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Router:     chi.NewRouter(),
		registry:   reg,
		sessions:   sessions,
		membership: membership,
		balancer:   loadbalancer.New(),
		logger:     logger,
		startedAt:  time.Now(),
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(requestLogger(logger))
	s.Router.Use(middleware.Recoverer)

	s.Router.Get("/healthz", s.handleHealthz)

	s.Router.Route("/registry", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/heartbeat", s.handleHeartbeat)
		r.Post("/unregister", s.handleUnregister)
	})

	s.Router.Route("/discovery", func(r chi.Router) {
		r.Post("/service", s.handleDiscoverService)
		r.Post("/services", s.handleDiscoverServices)
		r.Post("/services-delta", s.handleDiscoverDelta)
	})

	s.Router.Route("/replication/registry", func(r chi.Router) {
		r.Use(requireReplicationMarker)
		r.Post("/register", s.handleReplicationRegister)
		r.Post("/heartbeat", s.handleReplicationHeartbeat)
		r.Post("/unregister", s.handleReplicationUnregister)
		r.Post("/batch-register", s.handleReplicationRegister)
		r.Post("/batch-heartbeat", s.handleReplicationHeartbeat)
		r.Post("/batch-unregister", s.handleReplicationUnregister)
	})

	s.Router.Get("/ws", s.handleWebsocket)

	reg.OnChange(func(change model.InstanceChange) {
		sessions.Broadcast(change.Instance.Service, change)
	})

	return s
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, responseEnvelope{ResponseStatus: statusSuccess()})
}

// requireReplicationMarker rejects any request missing the sentinel
// loop-prevention header with 400, per spec §6.
func requireReplicationMarker(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(replication.MarkerHeader) == "" {
			RespondError(w, http.StatusBadRequest, "missing replication marker header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("handled request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}
