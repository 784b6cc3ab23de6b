// Package server wires the HTTP API together.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jizusun/OpenBookCorner/internal/apperrors"
	"github.com/jizusun/OpenBookCorner/internal/config"
	"github.com/jizusun/OpenBookCorner/internal/handler"
	"github.com/jizusun/OpenBookCorner/internal/health"
	"github.com/jizusun/OpenBookCorner/internal/metrics"
	"github.com/jizusun/OpenBookCorner/internal/middleware"
	"github.com/jizusun/OpenBookCorner/internal/model"
	"github.com/jizusun/OpenBookCorner/internal/service"
)

// Handlers bundles the HTTP handlers the server routes to.
type Handlers struct {
	Auth         *handler.AuthHandler
	Library      *handler.LibraryHandler
	Book         *handler.BookHandler
	Loan         *handler.LoanHandler
	Request      *handler.RequestHandler
	Donation     *handler.DonationHandler
	Notification *handler.NotificationHandler
	Health       *health.Checker
}

// Server is the HTTP front of the lending service.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// New builds the router and returns a server ready to start.
func New(
	cfg *config.Config,
	handlers Handlers,
	authn *middleware.Authenticator,
	libraries *service.LibraryService,
	errs *apperrors.Handler,
	logger *zap.Logger,
) *Server {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		errs.WriteErrorResponse(w, http.StatusNotFound, apperrors.CodeNotFound, "route not found", req.Header.Get("X-Request-ID"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		errs.WriteErrorResponse(w, http.StatusMethodNotAllowed, apperrors.CodeInvalidRequest, "method not allowed", req.Header.Get("X-Request-ID"))
	})

	// Unauthenticated surface.
	r.HandleFunc("/health", handlers.Health.Live).Methods(http.MethodGet)
	r.HandleFunc("/ready", handlers.Health.Ready).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/auth/code", handlers.Auth.RequestCode).Methods(http.MethodPost)
	v1.HandleFunc("/auth/verify", handlers.Auth.VerifyCode).Methods(http.MethodPost)
	v1.HandleFunc("/auth/logout", handlers.Auth.Logout).Methods(http.MethodPost)

	// Everything below requires a session.
	authed := v1.NewRoute().Subrouter()
	authed.Use(mux.MiddlewareFunc(authn.Authenticate))

	authed.HandleFunc("/auth/me", handlers.Auth.Me).Methods(http.MethodGet)
	authed.HandleFunc("/libraries", handlers.Library.Create).Methods(http.MethodPost)
	authed.Handle("/libraries", middleware.RequireSuperAdmin(http.HandlerFunc(handlers.Library.ListAll))).Methods(http.MethodGet)
	authed.HandleFunc("/invitations/accept", handlers.Library.AcceptInvite).Methods(http.MethodPost)
	authed.HandleFunc("/ws", handlers.Notification.ServeWS).Methods(http.MethodGet)

	anyMember := middleware.RequireRole(libraries, model.RoleLibraryAdmin, model.RoleReader)
	adminOnly := middleware.RequireRole(libraries, model.RoleLibraryAdmin)

	// Library-scoped, any member.
	member := authed.PathPrefix("/libraries/{library_id}").Subrouter()
	member.Use(mux.MiddlewareFunc(anyMember))

	member.HandleFunc("", handlers.Library.Get).Methods(http.MethodGet)
	member.HandleFunc("/books", handlers.Book.List).Methods(http.MethodGet)
	member.HandleFunc("/books/{book_id}", handlers.Book.Get).Methods(http.MethodGet)
	member.HandleFunc("/books/{book_id}/borrow", handlers.Loan.Borrow).Methods(http.MethodPost)
	member.HandleFunc("/loans", handlers.Loan.List).Methods(http.MethodGet)
	member.HandleFunc("/loans/{loan_id}/extend", handlers.Loan.Extend).Methods(http.MethodPost)
	member.HandleFunc("/requests", handlers.Request.Create).Methods(http.MethodPost)
	member.HandleFunc("/requests", handlers.Request.List).Methods(http.MethodGet)
	member.HandleFunc("/donations", handlers.Donation.Offer).Methods(http.MethodPost)
	member.HandleFunc("/notifications", handlers.Notification.List).Methods(http.MethodGet)
	member.HandleFunc("/notifications/{notification_id}/read", handlers.Notification.MarkRead).Methods(http.MethodPost)

	// Library-scoped, admin only.
	admin := authed.PathPrefix("/libraries/{library_id}").Subrouter()
	admin.Use(mux.MiddlewareFunc(adminOnly))

	admin.HandleFunc("", handlers.Library.Update).Methods(http.MethodPut)
	admin.HandleFunc("/members", handlers.Library.ListMembers).Methods(http.MethodGet)
	admin.HandleFunc("/members/{user_id}", handlers.Library.UpdateMemberRole).Methods(http.MethodPut)
	admin.HandleFunc("/members/{user_id}", handlers.Library.RemoveMember).Methods(http.MethodDelete)
	admin.HandleFunc("/invitations", handlers.Library.Invite).Methods(http.MethodPost)
	admin.HandleFunc("/books", handlers.Book.Add).Methods(http.MethodPost)
	admin.HandleFunc("/books/{book_id}", handlers.Book.Update).Methods(http.MethodPut)
	admin.HandleFunc("/books/{book_id}", handlers.Book.Remove).Methods(http.MethodDelete)
	admin.HandleFunc("/loans/{loan_id}/return", handlers.Loan.Return).Methods(http.MethodPost)
	admin.HandleFunc("/requests/{request_id}/decision", handlers.Request.Decide).Methods(http.MethodPost)
	admin.HandleFunc("/donations", handlers.Donation.List).Methods(http.MethodGet)
	admin.HandleFunc("/donations/{donation_id}/decision", handlers.Donation.Decide).Methods(http.MethodPost)

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.CORS([]string{"*"}),
		metrics.Middleware,
	}
	if cfg.RateLimiter.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimiter.RequestsPerSecond, cfg.RateLimiter.BurstSize, logger)
		chain = append(chain, limiter.Limit)
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(chain...)(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{server: httpServer, logger: logger}
}

// Start begins serving. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}
