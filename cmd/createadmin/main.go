// Command createadmin creates an administrator account directly in the
// database. The password is read from the terminal without echo.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/webstarter/api/internal/common"
	"github.com/webstarter/api/internal/cryptox"
	"github.com/webstarter/api/internal/server/config"
	"github.com/webstarter/api/internal/server/models"
	"github.com/webstarter/api/internal/server/repositories/repomanager"
	"github.com/webstarter/api/internal/server/services"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	cfg := &config.Config{}
	cfg.LoadDefaults()

	var email, name string
	flag.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database dsn")
	flag.StringVar(&email, "e", "", "admin email")
	flag.StringVar(&name, "n", "Admin", "admin name")
	flag.Parse()

	if err := run(context.Background(), cfg, email, name); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, cfg *config.Config, email, name string) error {
	email = services.NormalizeEmail(email)
	if email == "" {
		return errors.New("admin email is required (-e)")
	}

	fmt.Println("Enter password")
	password, err := readPassword(int(os.Stdin.Fd()))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(password))) == 0 {
		return errors.New("password must not be empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return err
	}

	hash, err := cryptox.HashPassword(string(password))
	if err != nil {
		return err
	}

	admin, err := rm.Users(db).Create(ctx, &models.User{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, common.ErrorEmailExists) {
			return fmt.Errorf("a user with email %s already exists", email)
		}
		return err
	}

	fmt.Printf("admin created id=%s email=%s\n", admin.ID, admin.Email)
	return nil
}
