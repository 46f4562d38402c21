package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/logging"
	"github.com/webstarter/api/internal/server/models"
	"github.com/webstarter/api/internal/server/observability"
	"github.com/webstarter/api/internal/server/services"
	"github.com/webstarter/api/internal/server/storage"
)

// fakeAuthService scripts per-method behavior for handler tests.
type fakeAuthService struct {
	loginFn   func(ctx context.Context, email, password, ua, ip string) (*services.LoginResult, error)
	refreshFn func(ctx context.Context, token, ua, ip string) (*services.LoginResult, error)
	verifyFn  func(ctx context.Context, token string) (*models.Principal, error)

	logoutTokens  []string
	logoutAllUser string
	sweepDeleted  int64
}

func (f *fakeAuthService) Login(ctx context.Context, email, password, ua, ip string) (*services.LoginResult, error) {
	return f.loginFn(ctx, email, password, ua, ip)
}

func (f *fakeAuthService) Refresh(ctx context.Context, token, ua, ip string) (*services.LoginResult, error) {
	return f.refreshFn(ctx, token, ua, ip)
}

func (f *fakeAuthService) Logout(ctx context.Context, token string) error {
	f.logoutTokens = append(f.logoutTokens, token)
	return nil
}

func (f *fakeAuthService) LogoutAll(ctx context.Context, userID string) error {
	f.logoutAllUser = userID
	return nil
}

func (f *fakeAuthService) GetProfile(ctx context.Context, userID string) (*models.PublicUser, error) {
	if userID != "u1" {
		return nil, common.ErrorNotFound
	}
	return &models.PublicUser{ID: "u1", Email: "a@x.com", Name: "A", Role: models.RoleUser}, nil
}

func (f *fakeAuthService) VerifyAccessToken(ctx context.Context, token string) (*models.Principal, error) {
	return f.verifyFn(ctx, token)
}

func (f *fakeAuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return f.sweepDeleted, nil
}

func newTestServer(t *testing.T, fake *fakeAuthService) *httptest.Server {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	files := storage.NewLocalStorage(t.TempDir())
	s := NewHTTPServer(":0", logger, fake, files, metrics)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return ts
}

func sampleResult() *services.LoginResult {
	return &services.LoginResult{
		AccessToken:  "access-jwt",
		RefreshToken: "refresh-hex",
		ExpiresIn:    900,
		User:         models.PublicUser{ID: "u1", Email: "a@x.com", Name: "A", Role: models.RoleUser},
	}
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

func TestHandleLogin(t *testing.T) {
	fake := &fakeAuthService{
		loginFn: func(ctx context.Context, email, password, ua, ip string) (*services.LoginResult, error) {
			if email == "a@x.com" && password == "correct" {
				return sampleResult(), nil
			}
			return nil, common.ErrorInvalidCredentials
		},
	}
	ts := newTestServer(t, fake)

	t.Run("success", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/login", "application/json",
			strings.NewReader(`{"email":"a@x.com","password":"correct"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body tokenResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, "access-jwt", body.AccessToken)
		assert.Equal(t, "refresh-hex", body.RefreshToken)
		assert.Equal(t, int64(900), body.ExpiresIn)
		assert.Equal(t, "u1", body.User.ID)
	})

	t.Run("bad credentials", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/login", "application/json",
			strings.NewReader(`{"email":"a@x.com","password":"wrong"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body errorResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, common.ErrorInvalidCredentials.Error(), body.Error)
	})

	t.Run("missing fields", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/login", "application/json",
			strings.NewReader(`{"email":"a@x.com"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/login", "application/json",
			strings.NewReader(`not json`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandleRefresh(t *testing.T) {
	fake := &fakeAuthService{
		refreshFn: func(ctx context.Context, token, ua, ip string) (*services.LoginResult, error) {
			if token == "good" {
				return sampleResult(), nil
			}
			return nil, common.ErrorInvalidRefreshToken
		},
	}
	ts := newTestServer(t, fake)

	t.Run("rotates", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/refresh", "application/json",
			strings.NewReader(`{"refreshToken":"good"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("invalid token", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/refresh", "application/json",
			strings.NewReader(`{"refreshToken":"stale"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("empty token", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/api/auth/refresh", "application/json",
			strings.NewReader(`{}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHandleLogout_AlwaysSucceeds(t *testing.T) {
	fake := &fakeAuthService{}
	ts := newTestServer(t, fake)

	resp, err := http.Post(ts.URL+"/api/auth/logout", "application/json",
		strings.NewReader(`{"refreshToken":"whatever"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// No body at all is fine too.
	resp, err = http.Post(ts.URL+"/api/auth/logout", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, []string{"whatever", ""}, fake.logoutTokens)
}

func TestAccessGuard(t *testing.T) {
	fake := &fakeAuthService{
		verifyFn: func(ctx context.Context, token string) (*models.Principal, error) {
			switch token {
			case "valid":
				return &models.Principal{ID: "u1", Role: models.RoleUser}, nil
			case "disabled":
				return nil, common.ErrorAccountDisabled
			case "outage":
				return nil, common.ErrorInternal
			default:
				return nil, common.ErrorInvalidToken
			}
		},
	}
	ts := newTestServer(t, fake)

	get := func(t *testing.T, configure func(*http.Request)) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/auth/me", nil)
		require.NoError(t, err)
		if configure != nil {
			configure(req)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("no credential", func(t *testing.T) {
		resp := get(t, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("bearer header", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer valid")
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body models.PublicUser
		decodeBody(t, resp, &body)
		assert.Equal(t, "u1", body.ID)
	})

	t.Run("cookie fallback", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: "valid"})
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("header wins over cookie", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer bogus")
			r.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: "valid"})
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("malformed scheme", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("non-bearer scheme falls back to cookie", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Basic dXNlcjpwdw==")
			r.AddCookie(&http.Cookie{Name: common.AccessTokenCookieName, Value: "valid"})
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("invalid token", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer expired-or-forged")
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("disabled account", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer disabled")
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("store outage is a server error", func(t *testing.T) {
		resp := get(t, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer outage")
		})
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body errorResponse
		decodeBody(t, resp, &body)
		assert.Equal(t, "internal server error", body.Error, "internals must not leak to the client")
	})
}

func TestHandleLogoutAll(t *testing.T) {
	fake := &fakeAuthService{
		verifyFn: func(ctx context.Context, token string) (*models.Principal, error) {
			if token == "valid" {
				return &models.Principal{ID: "u1", Role: models.RoleUser}, nil
			}
			return nil, common.ErrorInvalidToken
		},
	}
	ts := newTestServer(t, fake)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/logout-all", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer valid")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, "u1", fake.logoutAllUser, "must revoke the caller's tokens, not a client-supplied id")
}

func TestRoleGate(t *testing.T) {
	fake := &fakeAuthService{
		verifyFn: func(ctx context.Context, token string) (*models.Principal, error) {
			switch token {
			case "admin":
				return &models.Principal{ID: "a1", Role: models.RoleAdmin}, nil
			case "user":
				return &models.Principal{ID: "u1", Role: models.RoleUser}, nil
			default:
				return nil, common.ErrorInvalidToken
			}
		},
		sweepDeleted: 3,
	}
	ts := newTestServer(t, fake)

	post := func(t *testing.T, token string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/admin/token-sweep", nil)
		require.NoError(t, err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("admin allowed", func(t *testing.T) {
		resp := post(t, "admin")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]int64
		decodeBody(t, resp, &body)
		assert.Equal(t, int64(3), body["deleted"])
	})

	t.Run("wrong role forbidden", func(t *testing.T) {
		resp := post(t, "user")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("unauthenticated", func(t *testing.T) {
		resp := post(t, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestAvatarRoundTrip(t *testing.T) {
	fake := &fakeAuthService{
		verifyFn: func(ctx context.Context, token string) (*models.Principal, error) {
			if token == "valid" {
				return &models.Principal{ID: "u1", Role: models.RoleUser}, nil
			}
			return nil, common.ErrorInvalidToken
		},
	}
	ts := newTestServer(t, fake)

	do := func(t *testing.T, method string, body io.Reader) *http.Response {
		t.Helper()
		req, err := http.NewRequest(method, ts.URL+"/api/auth/me/avatar", body)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer valid")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	t.Run("missing avatar", func(t *testing.T) {
		resp := do(t, http.MethodGet, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("upload then fetch", func(t *testing.T) {
		resp := do(t, http.MethodPut, strings.NewReader("png-bytes"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = do(t, http.MethodGet, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/auth/me/avatar", strings.NewReader("x"))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, &fakeAuthService{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:54321"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientIP(r))
}
