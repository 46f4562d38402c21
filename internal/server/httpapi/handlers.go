package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/server/models"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenResponse struct {
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
	ExpiresIn    int64             `json:"expiresIn"`
	User         models.PublicUser `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a service error to its HTTP status. Unrecognized errors
// are reported as a generic 500 so internals never leak to the client.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, common.ErrorInvalidCredentials):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorInvalidRefreshToken):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorInvalidToken):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorAuthenticationRequired):
		status, message = http.StatusUnauthorized, err.Error()
	case errors.Is(err, common.ErrorAccountDisabled):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrorForbidden):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, common.ErrorNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, common.ErrorEmailExists):
		status, message = http.StatusConflict, err.Error()
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
	}

	s.writeJSON(w, status, errorResponse{Error: message})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "email and password are required"})
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password, r.UserAgent(), clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.RefreshToken == "" {
		s.writeError(w, r, common.ErrorInvalidRefreshToken)
		return
	}

	result, err := s.auth.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), clientIP(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		User:         result.User,
	})
}

// handleLogout revokes the presented refresh token. A missing or unknown
// token still yields 200: the client's goal state is "logged out" either
// way.
func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	// Body is optional on logout.
	_ = json.NewDecoder(r.Body).Decode(&req)

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *HTTPServer) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, common.ErrorAuthenticationRequired)
		return
	}

	if err := s.auth.LogoutAll(r.Context(), principal.ID); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "logged out everywhere"})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, common.ErrorAuthenticationRequired)
		return
	}

	profile, err := s.auth.GetProfile(r.Context(), principal.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, profile)
}

// handleTokenSweep triggers the expired-token cleanup out of schedule.
// Admin only.
func (s *HTTPServer) handleTokenSweep(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.auth.CleanupExpiredTokens(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// maxAvatarBytes caps avatar uploads.
const maxAvatarBytes = 5 << 20

func avatarKey(userID string) string {
	return "avatars/" + userID
}

func (s *HTTPServer) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, common.ErrorAuthenticationRequired)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	if err := s.files.Save(r.Context(), avatarKey(principal.ID), body); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "avatar updated"})
}

func (s *HTTPServer) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	if principal == nil {
		s.writeError(w, r, common.ErrorAuthenticationRequired)
		return
	}

	f, err := s.files.Open(r.Context(), avatarKey(principal.ID))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		s.logger.Error(r.Context(), "avatar stream failed", "error", err.Error())
	}
}
