// Package api is the operator HTTP API of the bar: members, lots, manual
// give and take, payments, and operator accounts.
package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nurdspace/nurdbar/internal/auth"
	"github.com/nurdspace/nurdbar/internal/imaging"
	"github.com/nurdspace/nurdbar/internal/ledger"
	"github.com/nurdspace/nurdbar/internal/logger"
	"github.com/nurdspace/nurdbar/internal/metrics"
	"github.com/nurdspace/nurdbar/internal/model"
)

// Deps are the collaborators the router needs.
type Deps struct {
	DB      *sql.DB
	Ledger  *ledger.Ledger
	Signer  *auth.Signer
	Logger  *logger.Logger
	Metrics *metrics.Bar
	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	Images   imaging.Processor
	// DefaultAmount is used for give and take requests without an amount.
	DefaultAmount int
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	if deps.DefaultAmount <= 0 {
		deps.DefaultAmount = 1
	}

	authHandler := &AuthHandler{DB: deps.DB, Signer: deps.Signer, Log: log}
	usersHandler := &UsersHandler{DB: deps.DB, Log: log}
	membersHandler := &MembersHandler{Ledger: deps.Ledger, Log: log}
	itemsHandler := &ItemsHandler{DB: deps.DB, Ledger: deps.Ledger, Images: deps.Images, Log: log}
	txHandler := &TransactionsHandler{Ledger: deps.Ledger, Log: log, DefaultAmount: deps.DefaultAmount}

	requireAdmin := RequireRole(model.RoleAdmin)
	requireTreasurer := RequireRole(model.RoleTreasurer)

	r := chi.NewRouter()
	r.Use(Recoverer(log), RequestID(log), Logging(log, deps.Metrics))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(deps.Signer, deps.DB, log))

			r.Put("/auth/password", authHandler.ChangePassword)
			r.Post("/auth/logout", authHandler.Logout)

			// Operators (admin only).
			r.Route("/users", func(r chi.Router) {
				r.Use(requireAdmin)
				r.Get("/", usersHandler.List)
				r.Post("/", usersHandler.Create)
				r.Get("/{id}", usersHandler.Get)
				r.Put("/{id}", usersHandler.Update)
				r.Put("/{id}/password", usersHandler.ResetPassword)
				r.Delete("/{id}", usersHandler.Delete)
			})

			// Members: read and bar service for every operator, bookkeeping
			// for treasurers.
			r.Get("/members", membersHandler.List)
			r.Get("/members/{id}", membersHandler.Get)
			r.Get("/members/{id}/transactions", membersHandler.Transactions)
			r.With(requireTreasurer).Post("/members", membersHandler.Create)
			r.With(requireTreasurer).Put("/members/{id}", membersHandler.Rename)
			r.With(requireTreasurer).Post("/members/{id}/pay", membersHandler.Pay)

			r.Get("/items", itemsHandler.List)
			r.Get("/items/{barcode}/lots", itemsHandler.Lots)
			r.Get("/items/{barcode}/history", itemsHandler.History)
			r.Get("/items/{barcode}/image", itemsHandler.GetImage)
			r.With(requireTreasurer).Post("/items", itemsHandler.Create)
			r.With(requireTreasurer).Put("/items/{barcode}/image", itemsHandler.UploadImage)
			r.With(requireTreasurer).Put("/lots/{id}/price", itemsHandler.Reprice)

			r.Post("/give", txHandler.Give)
			r.Post("/take", txHandler.Take)
			r.Get("/transactions/{id}", txHandler.Get)
			r.With(requireTreasurer).Post("/transactions/{id}/archive", txHandler.Archive)
		})
	})

	return r
}
