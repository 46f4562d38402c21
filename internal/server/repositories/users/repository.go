// Package users declares the server-side repository contract for stored
// accounts.
package users

import (
	"context"

	"github.com/webstarter/api/internal/server/models"
)

// Repository defines the persistence operations the auth core needs for
// users. Emails are stored lowercase; callers normalize before lookup.
type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	// A duplicate email yields common.ErrorEmailExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given (normalized) email, or
	// common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given id, or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// Update persists mutable attributes (name, password hash, active flag).
	Update(ctx context.Context, user *models.User) error
}
