// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/seed"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
	check   bool
}

// newSeedCmd creates the seed subcommand.
func newSeedCmd(deps *Deps) *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Create the users listed in a YAML seed file",
		Long: `Creates the users listed in FILE. Users whose email already exists
are skipped, so the command can be run repeatedly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args[0], cfg, deps)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.check, "check", false, "validate the file without touching the database")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: database.url or DATABASE_URL)")

	return cmd
}

func runSeed(cmd *cobra.Command, path string, cfg *seedConfig, deps *Deps) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return oops.Code("SEED_READ_FAILED").With("path", path).Wrap(err)
	}
	file, err := seed.Parse(data)
	if err != nil {
		return oops.With("path", path).Wrap(err)
	}
	if cfg.check {
		cmd.Printf("%s: %d user(s), valid\n", path, len(file.Users))
		return nil
	}

	return withUsers(cmd, deps, func(ctx context.Context, users *auth.UserService, logger *slog.Logger) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
		defer cancel()

		res, err := seed.Apply(ctx, users, file, logger)
		if err != nil {
			return err
		}
		cmd.Printf("Seeded %d user(s), skipped %d existing\n", len(res.Created), len(res.Skipped))
		return nil
	})
}
