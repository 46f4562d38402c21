// Package services contains server-side business logic. This file implements
// AuthService, which owns the access/refresh token lifecycle: issuing token
// pairs at login, rotating refresh tokens, revoking them at logout, and
// verifying access tokens for the request guard.
package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/cryptox"
	"github.com/webstarter/api/internal/dbx"
	"github.com/webstarter/api/internal/logging"
	"github.com/webstarter/api/internal/server/auth"
	"github.com/webstarter/api/internal/server/config"
	"github.com/webstarter/api/internal/server/models"
	"github.com/webstarter/api/internal/server/observability"
	"github.com/webstarter/api/internal/server/repositories/repomanager"
)

// refreshTokenBytes is the entropy of a refresh token before hex encoding.
const refreshTokenBytes = 32

// LoginResult bundles the token pair and the public user projection returned
// by Login and Refresh.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	User         models.PublicUser
}

// AuthService provides authentication-related operations:
//   - Login: verify credentials and mint a token pair
//   - Refresh: rotate a refresh token and mint a new pair
//   - Logout / LogoutAll: revoke refresh tokens
//   - VerifyAccessToken: the guard's verification contract
//   - GetProfile: public projection of the authenticated user
type AuthService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	logger                       logging.Logger
	metrics                      *observability.Metrics
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, mt *observability.Metrics, cfg *config.Config) *AuthService {
	return &AuthService{
		db:                           db,
		repomanager:                  m,
		logger:                       l.With("module", "auth_service"),
		metrics:                      mt,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// NormalizeEmail trims whitespace and lowercases the address. Every lookup
// and insert goes through this so the store only ever sees one spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login authenticates the credentials and, on success, returns a fresh token
// pair plus the public user projection.
//
// An unknown email and a wrong password both return ErrorInvalidCredentials;
// the two cases are indistinguishable to the caller, and a dummy bcrypt
// compare keeps their timing comparable. A correct password for a
// deactivated account returns ErrorAccountDisabled.
func (s *AuthService) Login(ctx context.Context, email, password, userAgent, ipAddress string) (*LoginResult, error) {
	email = NormalizeEmail(email)

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.CheckPassword(cryptox.DummyHash, password)
			s.logger.Warn(ctx, "login failed", "email", email, "ip", ipAddress)
			s.metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return nil, common.ErrorInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	if !cryptox.CheckPassword(user.PasswordHash, password) {
		s.logger.Warn(ctx, "login failed", "email", email, "ip", ipAddress)
		s.metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, common.ErrorInvalidCredentials
	}

	if !user.Active {
		s.metrics.LoginsTotal.WithLabelValues("disabled").Inc()
		return nil, common.ErrorAccountDisabled
	}

	result, err := s.issueTokenPair(ctx, user, userAgent, ipAddress, s.db)
	if err != nil {
		return nil, err
	}

	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	return result, nil
}

// Refresh validates the presented refresh token, rotates it, and returns a
// new token pair. Rotation (revoke old, create successor) runs in a single
// transaction; the conditional revoke guarantees that of two concurrent
// refreshes of the same token at most one succeeds, the other failing with
// ErrorInvalidRefreshToken.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*LoginResult, error) {
	token, err := s.repomanager.RefreshTokens(s.db).Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidRefreshToken
		}
		return nil, common.ErrorInternal
	}
	if !token.ValidAt(time.Now()) {
		return nil, common.ErrorInvalidRefreshToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// Owner vanished after issuance; the token is dead either way.
			_, _ = s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken)
			return nil, common.ErrorInvalidRefreshToken
		}
		return nil, common.ErrorInternal
	}

	if !user.Active {
		// A disabled owner's stale-but-unexpired token must not survive
		// even one more presentation.
		if _, err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken); err != nil {
			return nil, common.ErrorInternal
		}
		s.metrics.TokensRevokedTotal.Inc()
		return nil, common.ErrorAccountDisabled
	}

	var result *LoginResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		revoked, err := s.repomanager.RefreshTokens(tx).Revoke(ctx, refreshToken)
		if err != nil {
			return common.ErrorInternal
		}
		if !revoked {
			// Lost the race: someone rotated or revoked this token first.
			return common.ErrorInvalidRefreshToken
		}

		result, err = s.issueTokenPair(ctx, user, userAgent, ipAddress, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RefreshRotationsTotal.Inc()
	s.metrics.TokensRevokedTotal.Inc()
	return result, nil
}

// Logout revokes the presented refresh token. An empty, unknown, or
// already-revoked token is not an error: logout is idempotent. Access tokens
// already issued stay valid until natural expiry.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	revoked, err := s.repomanager.RefreshTokens(s.db).Revoke(ctx, refreshToken)
	if err != nil {
		return common.ErrorInternal
	}
	if revoked {
		s.metrics.TokensRevokedTotal.Inc()
	}
	return nil
}

// LogoutAll revokes every currently-valid refresh token owned by userID
// ("sign out of all devices").
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens(s.db).RevokeAllForUser(ctx, userID); err != nil {
		return common.ErrorInternal
	}
	return nil
}

// GetProfile returns the public projection of the user. ErrorNotFound means
// the account was deleted after token issuance.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, common.ErrorInternal
	}
	p := user.Public()
	return &p, nil
}

// VerifyAccessToken checks signature and expiry, then re-fetches the user so
// the store, not the token claims, decides current state. It returns the
// principal attached to the request context by the guard.
//
// A missing user maps to ErrorInvalidToken, a deactivated one to
// ErrorAccountDisabled; signature and expiry failures are not distinguished.
func (s *AuthService) VerifyAccessToken(ctx context.Context, tokenString string) (*models.Principal, error) {
	userID, _, err := auth.ParseToken(tokenString, s.jwtSecret)
	if err != nil {
		return nil, common.ErrorInvalidToken
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorInvalidToken
		}
		return nil, common.ErrorInternal
	}
	if !user.Active {
		return nil, common.ErrorAccountDisabled
	}

	return &models.Principal{ID: user.ID, Role: user.Role}, nil
}

// CleanupExpiredTokens deletes refresh-token rows that are expired or already
// revoked. It is scheduled out of band and is pure hygiene: token validity
// never depends on the sweep having run.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	deleted, err := s.repomanager.RefreshTokens(s.db).DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info(ctx, "token sweep completed", "deleted", deleted)
		s.metrics.SweepDeletedTotal.Add(float64(deleted))
	}
	return deleted, nil
}

// issueTokenPair signs a new access token and persists a new refresh token
// for the user through the given handle (plain DB or transaction).
func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User, userAgent, ipAddress string, db dbx.DBTX) (*LoginResult, error) {
	accessToken, err := auth.GenerateToken(user.ID, user.Role, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshValue, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken := &models.RefreshToken{
		Token:     refreshValue,
		UserID:    user.ID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		ExpiresAt: time.Now().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.RefreshTokens(db).Create(ctx, refreshToken); err != nil {
		return nil, common.ErrorInternal
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshValue,
		ExpiresIn:    int64(s.accessTokenValidityDuration.Seconds()),
		User:         user.Public(),
	}, nil
}
