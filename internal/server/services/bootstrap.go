package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/cryptox"
	"github.com/webstarter/api/internal/logging"
	"github.com/webstarter/api/internal/server/config"
	"github.com/webstarter/api/internal/server/email"
	"github.com/webstarter/api/internal/server/models"
	"github.com/webstarter/api/internal/server/repositories/repomanager"
)

// Bootstrap ensures the initial admin account exists. It is idempotent:
// when a user with the configured admin email is already present, nothing
// happens. On first creation a notification is sent to the admin address;
// delivery failure does not fail the bootstrap.
func Bootstrap(ctx context.Context, db *sql.DB, m repomanager.RepositoryManager, l logging.Logger, sender email.Sender, cfg *config.Config) error {
	repo := m.Users(db)
	adminEmail := NormalizeEmail(cfg.AdminEmail)

	_, err := repo.GetByEmail(ctx, adminEmail)
	if err == nil {
		l.Info(ctx, "admin account present", "email", adminEmail)
		return nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	hash, err := cryptox.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Email:        adminEmail,
		Name:         cfg.AdminName,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if _, err := repo.Create(ctx, admin); err != nil {
		// Lost a race with a concurrent bootstrap; the account exists.
		if errors.Is(err, common.ErrorEmailExists) {
			return nil
		}
		return err
	}

	l.Info(ctx, "admin account created", "email", adminEmail)

	if sender != nil {
		err := sender.Send(ctx, adminEmail, "Admin account created",
			"An administrator account was created for this address. Change the initial password after first login.")
		if err != nil {
			l.Warn(ctx, "admin notification not delivered", "error", err.Error())
		}
	}

	return nil
}
