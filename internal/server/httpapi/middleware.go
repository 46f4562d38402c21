package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/server/models"
)

type ctxKey string

const principalKey ctxKey = "principal"

// PrincipalFromContext returns the authenticated principal attached by the
// access guard, or nil when the request was not guarded.
func PrincipalFromContext(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey).(*models.Principal)
	return p
}

// extractAccessToken looks for a bearer token in the Authorization header
// first, then falls back to the access-token cookie. A header with a
// non-Bearer scheme does not block the cookie fallback. An empty string
// means no credential was presented.
func extractAccessToken(r *http.Request) string {
	if header := r.Header.Get(common.AuthorizationHeaderName); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(common.AccessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// accessTokenMiddleware guards a route: it verifies the presented access
// token, re-checks user state, and attaches the principal to the request
// context. Requests without a token, or with a token that fails
// verification, never reach the handler.
func (s *HTTPServer) accessTokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractAccessToken(r)
		if tokenString == "" {
			s.writeError(w, r, common.ErrorAuthenticationRequired)
			return
		}

		// Pass the service error through: writeError distinguishes invalid
		// tokens (401) and disabled accounts (403) from internal failures,
		// which must surface as a logged 500, never as an auth failure.
		principal, err := s.auth.VerifyAccessToken(r.Context(), tokenString)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole gates a guarded route to the given roles. It must be applied
// after accessTokenMiddleware; a request without a principal is rejected as
// unauthenticated rather than forbidden.
func (s *HTTPServer) requireRole(roles ...models.Role) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := PrincipalFromContext(r.Context())
			if principal == nil {
				s.writeError(w, r, common.ErrorAuthenticationRequired)
				return
			}
			allowed := false
			for _, role := range roles {
				if principal.Role == role {
					allowed = true
					break
				}
			}
			if !allowed {
				s.writeError(w, r, common.ErrorForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request count and latency per route template.
func (s *HTTPServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				path = tpl
			}
		}
		s.metrics.ObserveHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}
