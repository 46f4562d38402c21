package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRefreshToken_ValidAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		token RefreshToken
		want  bool
	}{
		{
			name:  "valid",
			token: RefreshToken{ExpiresAt: now.Add(time.Hour)},
			want:  true,
		},
		{
			name:  "revoked",
			token: RefreshToken{Revoked: true, ExpiresAt: now.Add(time.Hour)},
			want:  false,
		},
		{
			name:  "expired",
			token: RefreshToken{ExpiresAt: now.Add(-time.Second)},
			want:  false,
		},
		{
			name:  "expiry exactly at now is invalid",
			token: RefreshToken{ExpiresAt: now},
			want:  false,
		},
		{
			name:  "one second before expiry is valid",
			token: RefreshToken{ExpiresAt: now.Add(time.Second)},
			want:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.token.ValidAt(now))
		})
	}
}
