// Package v1 wires the HTTP surface of the accounts service.
// It keeps handlers thin, delegating business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/bankledger/internal/audit"
	"github.com/tinoosan/bankledger/internal/auth"
	"github.com/tinoosan/bankledger/internal/service/account"
	"github.com/tinoosan/bankledger/internal/service/query"
	"github.com/tinoosan/bankledger/internal/service/transfer"
)

// Server wires handlers and middleware using Chi.
type Server struct {
	transfers   transfer.Service
	accounts    account.Service
	query       query.Service
	store       Store
	verifier    *auth.Verifier
	maxInflight int
	validate    *validator.Validate
	log         *slog.Logger
	rt          *chi.Mux
}

type Option func(*Server)

// WithVerifier switches the gate from trusted headers to HS256 bearer tokens.
func WithVerifier(v auth.Verifier) Option { return func(s *Server) { s.verifier = &v } }

// WithMaxInflight bounds concurrently served requests. Zero disables the bound.
func WithMaxInflight(n int) Option { return func(s *Server) { s.maxInflight = n } }

// New constructs the HTTP server with routes and middleware.
func New(store Store, pub audit.Publisher, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		transfers: transfer.New(store, pub),
		accounts:  account.New(store, pub),
		query:     query.New(store),
		store:     store,
		validate:  newValidator(),
		log:       logger,
		rt:        chi.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.rt.Use(chimw.RequestID)
	s.rt.Use(chimw.RealIP)
	s.rt.Use(requestLogger(logger))
	s.rt.Use(recoverer(logger))
	s.rt.Use(metricsMiddleware)
	if s.maxInflight > 0 {
		s.rt.Use(chimw.Throttle(s.maxInflight))
	}
	s.rt.Use(requestInfo)
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches per-route guards.
func (s *Server) routes() {
	// Unauthenticated
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
	s.rt.Get("/v1/dictionary/permissions", s.getPermissionsDictionary)

	s.rt.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		// Accounts
		r.With(require(auth.AccountsViewOwn)).Get("/v1/accounts", s.listAccounts)
		r.With(require(auth.AccountsCreateOwn)).Post("/v1/accounts", s.postAccount)
		r.With(require(auth.AccountsViewOwn)).Get("/v1/accounts/{id}", s.getAccount)

		// Transactions
		r.With(require(auth.TransferInternal)).Post("/v1/transactions/internal", s.postInternalTransfer)
		r.With(require(auth.TransferExternal)).Post("/v1/transactions/external", s.postExternalTransfer)
		r.With(require(auth.AccountsDeposit)).Post("/v1/transactions/deposit", s.postDeposit)
		r.With(require(auth.AccountsWithdraw)).Post("/v1/transactions/withdraw", s.postWithdraw)
		r.With(require(auth.AccountsTopUp)).Post("/v1/transactions/topup", s.postTopUp)
		r.With(require(auth.TransactionsViewOwn), s.validateListTransactions).Get("/v1/transactions", s.listTransactions)
		r.With(require(auth.TransactionsViewOwn)).Get("/v1/transactions/top", s.topTransactions)
		r.With(require(auth.TransactionsViewOwn)).Get("/v1/transactions/recent", s.recentTransactions)
		r.With(require(auth.TransactionsViewOwn), s.validateListTransactions).Get("/v1/transactions/export", s.exportTransactions)

		// Admin
		r.With(require(auth.AccountsCreateAny)).Post("/v1/admin/accounts", s.postAdminAccount)
		r.With(require(auth.AccountsViewAny)).Get("/v1/admin/accounts", s.listAllAccounts)
		r.With(require(auth.AccountsFreezeAny)).Patch("/v1/admin/accounts/{id}/status", s.patchAccountStatus)
		r.With(require(auth.TransactionsViewAny), s.validateListTransactions).Get("/v1/admin/transactions", s.listAllTransactions)
	})
}
