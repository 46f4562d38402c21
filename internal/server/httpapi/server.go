// Package httpapi exposes the authentication service over REST. Routes are
// registered on a gorilla/mux router; guarded routes pass through the access
// token middleware, admin routes additionally through the role gate.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/webstarter/api/internal/logging"
	"github.com/webstarter/api/internal/server/models"
	"github.com/webstarter/api/internal/server/observability"
	"github.com/webstarter/api/internal/server/services"
	"github.com/webstarter/api/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

// AuthService is the surface of services.AuthService the REST binding needs.
type AuthService interface {
	Login(ctx context.Context, email, password, userAgent, ipAddress string) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*services.LoginResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	GetProfile(ctx context.Context, userID string) (*models.PublicUser, error)
	VerifyAccessToken(ctx context.Context, tokenString string) (*models.Principal, error)
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

type HTTPServer struct {
	address string
	auth    AuthService
	files   storage.Storage
	logger  logging.Logger
	metrics *observability.Metrics
}

func NewHTTPServer(address string, l logging.Logger, auth AuthService, files storage.Storage, m *observability.Metrics) *HTTPServer {
	return &HTTPServer{
		address: address,
		auth:    auth,
		files:   files,
		logger:  l.With("module", "http_server"),
		metrics: m,
	}
}

// Router builds the route table. Split out from Run so tests can drive the
// full middleware chain through httptest.
func (s *HTTPServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.metricsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/auth").Subrouter()
	api.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	guarded := r.PathPrefix("/api/auth").Subrouter()
	guarded.Use(s.accessTokenMiddleware)
	guarded.HandleFunc("/logout-all", s.handleLogoutAll).Methods(http.MethodPost)
	guarded.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	guarded.HandleFunc("/me/avatar", s.handleUploadAvatar).Methods(http.MethodPut)
	guarded.HandleFunc("/me/avatar", s.handleGetAvatar).Methods(http.MethodGet)

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(s.accessTokenMiddleware, s.requireRole(models.RoleAdmin))
	admin.HandleFunc("/token-sweep", s.handleTokenSweep).Methods(http.MethodPost)

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
