// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"

	"github.com/webstarter/api/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking
// refresh tokens. Revocation is monotonic: a revoked token never becomes
// valid again.
type Repository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find looks up a refresh token by its opaque token string and returns
	// its full row, revoked or not. Absent tokens yield common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Revoke marks the token revoked and reports whether this call performed
	// the transition. A conditional update on revoked=false guarantees at
	// most one caller ever observes revoked=true; concurrent revokers of the
	// same token get revoked=false.
	Revoke(ctx context.Context, token string) (bool, error)

	// RevokeAllForUser revokes every currently-valid token owned by userID.
	RevokeAllForUser(ctx context.Context, userID string) error

	// DeleteExpired removes rows that are expired or already revoked and
	// returns the number deleted. Pure cleanup; validity never depends on it.
	DeleteExpired(ctx context.Context) (int64, error)
}
