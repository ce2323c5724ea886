// Command profile-recalc recomputes profile completion for every active user
// and drops verification where completion fell under the threshold.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"carmarket/backend/internal/config"
	"carmarket/backend/internal/repository"
	"carmarket/backend/internal/service"
)

func main() {
	cmd := &cli.Command{
		Name:  "profile-recalc",
		Usage: "Recalculate profile completion for all users",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Value:   "config.yaml",
				Usage:   "path to the config file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return run(ctx, c.String("config"))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}

	// Only the user table is touched; sessions and blobs are not needed.
	users := service.NewUserService(
		repository.NewPGUserRepository(db),
		repository.NewPGRBACRepository(db),
		repository.NewPGTokenRepository(db),
		repository.NewSessionStore(repository.NewMemoryStateStore()),
		nil, nil, logger,
	)

	updated, err := users.RecalculateAll(ctx)
	if err != nil {
		logger.Error("recalculation failed", zap.Int("updated", updated), zap.Error(err))
		return err
	}
	logger.Info("profile completion recalculated", zap.Int("updated", updated))
	return nil
}
