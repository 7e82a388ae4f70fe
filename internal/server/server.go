// Package server exposes the HTTP surface: REST routes for auth,
// groups, events, expenses, balances and settlement, the websocket
// endpoint for live propagation, and the prometheus scrape endpoint.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tabsync/tabsync/internal/auth"
	"github.com/tabsync/tabsync/internal/gateway"
	"github.com/tabsync/tabsync/internal/middleware"
	"github.com/tabsync/tabsync/internal/service"
)

// Server holds the wired services and builds the router.
type Server struct {
	auth    *service.AuthService
	groups  *service.GroupService
	ledgers *service.LedgerService
	gw      *gateway.Gateway
	jwt     *auth.JWTManager
}

func New(authSvc *service.AuthService, groups *service.GroupService, ledgers *service.LedgerService, gw *gateway.Gateway, jwt *auth.JWTManager) *Server {
	return &Server{
		auth:    authSvc,
		groups:  groups,
		ledgers: ledgers,
		gw:      gw,
		jwt:     jwt,
	}
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(s.jwt))

			r.Post("/groups", s.handleCreateGroup)
			r.Get("/groups", s.handleListGroups)

			r.Route("/groups/{groupID}", func(r chi.Router) {
				r.Get("/", s.handleGetGroup)
				r.Post("/members", s.handleAddMembers)

				r.Put("/event", s.handleCreateEvent)
				r.Delete("/event", s.handleCancelEvent)
				r.Get("/event", s.handleGetEvent)

				r.Post("/expenses", s.handleAddExpense)
				r.Patch("/expenses/{expenseID}", s.handleUpdateExpense)
				r.Delete("/expenses/{expenseID}", s.handleRemoveExpense)

				r.Get("/balances", s.handleBalances)

				r.Get("/settlements/{toUser}", s.handlePreviewSettlement)
				r.Post("/settlements/{toUser}", s.handleSettle)
			})
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.jwt))
		r.Get("/ws", s.handleWS)
	})

	return r
}
