// Package auth implements the access-token signer: short-lived HS256 JWTs
// carrying the subject user id and role.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/server/models"
)

// Claims are the assertions embedded in an access token: the registered
// claims (subject, expiry) plus the user's role.
type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

// GenerateToken signs an access token for userID with the given role,
// expiring after validityDuration.
func GenerateToken(userID string, role models.Role, secretKey []byte, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(validityDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature and expiry and returns the embedded subject
// id and role. All failure modes (bad signature, malformed payload, expired,
// unexpected algorithm) collapse into common.ErrorInvalidToken; callers must
// not learn which check failed.
func ParseToken(tokenString string, secretKey []byte) (string, models.Role, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrorInvalidToken
		}
		return secretKey, nil
	})
	if err != nil || !token.Valid {
		return "", "", common.ErrorInvalidToken
	}

	if claims.Subject == "" || !claims.Role.Valid() {
		return "", "", common.ErrorInvalidToken
	}

	return claims.Subject, claims.Role, nil
}
