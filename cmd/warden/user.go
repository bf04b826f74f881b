// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/xdg"
)

// newUserCmd creates the user command for operator account management.
func newUserCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
		Long: `Create accounts and change their approval directly in the
database, for bootstrapping the first administrator.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: database.url or DATABASE_URL)")

	cmd.AddCommand(newUserCreateCmd(deps))
	cmd.AddCommand(newUserApproveCmd(deps))

	return cmd
}

type userCreateFlags struct {
	role      string
	approved  bool
	firstName string
	lastName  string
	password  string
}

func newUserCreateCmd(deps *Deps) *cobra.Command {
	flags := &userCreateFlags{}

	cmd := &cobra.Command{
		Use:   "create EMAIL",
		Short: "Create a user",
		Long: `Create a user. The password is read from the first line of
standard input unless --password is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, deps, func(ctx context.Context, users *auth.UserService, _ *slog.Logger) error {
				return runUserCreate(ctx, cmd, users, args[0], flags)
			})
		},
	}

	cmd.Flags().StringVar(&flags.role, "role", string(auth.RoleUser), "role (USER or ADMIN)")
	cmd.Flags().BoolVar(&flags.approved, "approved", false, "approve the account immediately")
	cmd.Flags().StringVar(&flags.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&flags.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&flags.password, "password", "", "password (default: read from stdin)")

	return cmd
}

func runUserCreate(ctx context.Context, cmd *cobra.Command, users *auth.UserService, email string, flags *userCreateFlags) error {
	role, err := auth.ParseRole(strings.ToUpper(flags.role))
	if err != nil {
		return err
	}

	password := flags.password
	if password == "" {
		line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n') //nolint:errcheck // EOF after a final line is fine
		password = strings.TrimRight(line, "\r\n")
		if password == "" {
			return oops.Code("CLI_PASSWORD_REQUIRED").Errorf("no password on stdin or --password")
		}
	}

	user, err := users.Create(ctx, auth.NewUserInput{
		Email:      email,
		Password:   password,
		Role:       role,
		FirstName:  optional(flags.firstName),
		LastName:   optional(flags.lastName),
		IsApproved: flags.approved,
	})
	if err != nil {
		return err
	}

	cmd.Printf("Created %s user %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

func newUserApproveCmd(deps *Deps) *cobra.Command {
	var revoke bool

	cmd := &cobra.Command{
		Use:   "approve EMAIL",
		Short: "Approve a user so they can log in",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUsers(cmd, deps, func(ctx context.Context, users *auth.UserService, _ *slog.Logger) error {
				user, err := users.SetApproved(ctx, args[0], !revoke)
				if err != nil {
					return err
				}
				if user.IsApproved {
					cmd.Printf("Approved %s\n", user.Email)
				} else {
					cmd.Printf("Revoked approval of %s\n", user.Email)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "withdraw approval instead")

	return cmd
}

// withUsers opens the configured store and runs fn with a user service.
func withUsers(cmd *cobra.Command, deps *Deps, fn func(context.Context, *auth.UserService, *slog.Logger) error) error {
	path, err := xdg.ResolveConfigFile(configFile)
	if err != nil {
		return err
	}
	cfg, err := config.LoadDatabase(path, cmd.Flags(), commandFlags(cmd)...)
	if err != nil {
		return err
	}
	if cfg.Store.Driver == config.DriverMemory {
		return oops.Code("CLI_MEMORY_STORE").Errorf("user management needs the postgres store")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := cliLogger(cfg, deps)

	backend, err := deps.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	codec, err := offlineCodec()
	if err != nil {
		return err
	}
	svcs, err := buildServices(cfg, backend, codec, auth.WithLogger(logger))
	if err != nil {
		return err
	}
	return fn(ctx, svcs.users, logger)
}

// cliLogger logs to deps.LogOutput in the configured format, falling back
// to info level when the level does not parse.
func cliLogger(cfg config.Config, deps *Deps) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	return logging.Setup("warden-cli", version, cfg.Log.Format, deps.LogOutput, logging.WithLevel(level))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
