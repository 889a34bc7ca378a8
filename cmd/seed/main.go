package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"civildocs_backend/internal/auth/password"
	authrepo "civildocs_backend/internal/auth/repository"
	"civildocs_backend/internal/communes"
	"civildocs_backend/migrations"
	"civildocs_backend/platform/apperr"
	"civildocs_backend/platform/config"
	"civildocs_backend/platform/db"
	"civildocs_backend/platform/httpkit"
	"civildocs_backend/platform/logger"
	"civildocs_backend/platform/validator"
)

// Seeds the commune directory from a YAML file and provisions the initial
// super admin account. Safe to run repeatedly.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, cfg, migrations.FS); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	communesModule := communes.NewModule(pool, validator.New(), log)

	seedFile := cfg.GetCommuneSeedFile()
	if seedFile == "" {
		seedFile = "seed/communes.yaml"
	}
	count, err := communesModule.Service().SeedFromFile(ctx, seedFile)
	if err != nil {
		log.Error("commune seed failed", "file", seedFile, "error", err)
		panic("commune seed failed: " + err.Error())
	}
	log.Info("communes seeded", "file", seedFile, "count", count)

	if err := seedSuperAdmin(ctx, authrepo.New(pool), cfg, log); err != nil {
		log.Error("super admin seed failed", "error", err)
		panic("super admin seed failed: " + err.Error())
	}
}

func seedSuperAdmin(ctx context.Context, repo authrepo.Repository, cfg config.SeedConfig, log *logger.Logger) error {
	adminEmail := cfg.GetSuperAdminEmail()
	adminPassword := cfg.GetSuperAdminPassword()
	if adminEmail == "" || adminPassword == "" {
		log.Warn("SUPER_ADMIN_EMAIL or SUPER_ADMIN_PASSWORD not set; skipping super admin seed")
		return nil
	}

	if _, err := repo.GetByEmail(ctx, adminEmail); err == nil {
		log.Info("super admin already exists", "email", adminEmail)
		return nil
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}

	hash, err := password.Hash(adminPassword)
	if err != nil {
		return err
	}

	user, err := repo.CreateWithRole(ctx, authrepo.CreateCitizenParams{
		FirstName:    "Super",
		LastName:     "Admin",
		Email:        adminEmail,
		PasswordHash: hash,
	}, string(httpkit.RoleSuperAdmin), nil)
	if err != nil {
		return err
	}

	log.Info("super admin created", "email", user.Email, "id", user.ID.String())
	return nil
}
