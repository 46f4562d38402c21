package models

import "time"

// RefreshToken is a server-tracked, single-use opaque secret that can mint a
// new token pair. UserAgent and IPAddress are audit metadata only.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	Revoked   bool
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the token may still be used at the given instant:
// not revoked and not yet expired. A token whose expiry equals now is already
// invalid.
func (t *RefreshToken) ValidAt(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
