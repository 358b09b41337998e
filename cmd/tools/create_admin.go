package main

import (
	"context"
	"fmt"

	"github.com/lychee-technology/tabula"
	"github.com/lychee-technology/tabula/factory"
	"github.com/lychee-technology/tabula/internal"
)

func runCreateAdmin(args []string) error {
	config := tabula.DefaultConfig()
	flags := newFlagSet("create-admin", "[options]")
	dbFlags(flags, config)
	username := flags.String("username", getenvDefault("ADMIN_USERNAME", "admin"), "admin username")
	password := flags.String("password", getenvDefault("ADMIN_PASSWORD", "admin123"), "admin password")
	if ok, err := parseFlags(flags, args); !ok {
		return err
	}

	ctx := context.Background()
	pool, err := factory.NewDatabasePool(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := internal.NewPostgresAdminUserRepository(pool, config.Database.TableNames)
	return createAdmin(ctx, repo, *username, *password)
}

func createAdmin(ctx context.Context, repo internal.AdminUserRepository, username, password string) error {
	if err := internal.ValidateCredentials(username, password); err != nil {
		return err
	}
	user, err := internal.NewAdminUser(username, password)
	if err != nil {
		return err
	}
	if err := repo.InsertAdminUser(ctx, user); err != nil {
		return fmt.Errorf("save admin user: %w", err)
	}
	fmt.Printf("Admin user %q is ready (id %s).\n", user.Username, user.ID)
	return nil
}
