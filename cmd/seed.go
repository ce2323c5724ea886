package main

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"carmarket/backend/internal/config"
	"carmarket/backend/pkg/crypto"
)

// demoPassword returns seed.demo_password, or generates one. A generated
// password is written once to out and never reaches the structured log.
func demoPassword(cfg config.SeedConfig, out io.Writer, logger *zap.Logger) (string, error) {
	if cfg.DemoPassword != "" {
		return cfg.DemoPassword, nil
	}
	password, err := crypto.GenerateRandomString(12)
	if err != nil {
		return "", fmt.Errorf("generate demo password: %w", err)
	}
	if _, err := fmt.Fprintf(out, "demo accounts password: %s\n", password); err != nil {
		return "", fmt.Errorf("print demo password: %w", err)
	}
	logger.Warn("seed.demo_password is empty, generated password printed to stderr")
	return password, nil
}
