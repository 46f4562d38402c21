// Package common defines shared constants and sentinel errors used across
// the API server. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrorEmailExists = errors.New("email already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal = errors.New("internal error")

	// Login errors. Unknown email and wrong password deliberately share
	// ErrorInvalidCredentials so callers cannot enumerate accounts.
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorAccountDisabled    = errors.New("account disabled")

	// Token lifecycle errors.
	ErrorInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrorInvalidToken        = errors.New("invalid token")

	// Guard errors.
	ErrorAuthenticationRequired = errors.New("authentication required")
	ErrorForbidden              = errors.New("forbidden")
)
