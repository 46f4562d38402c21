// Package cryptox wraps the password-hashing primitives used by the auth
// service: one-way salted bcrypt hashes with constant-time verification.
package cryptox

import "golang.org/x/crypto/bcrypt"

// DummyHash is a valid bcrypt hash of a random string. Login runs a compare
// against it when the looked-up user does not exist, so the unknown-email and
// wrong-password paths take comparable time.
const DummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// HashPassword returns the bcrypt hash of the given plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash. bcrypt's compare is constant-time with respect to the hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
