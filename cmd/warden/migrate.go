// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/store"
	"github.com/holomush/warden/internal/xdg"
)

// newMigrateCmd creates the migrate command and its subcommands. Bare
// `warden migrate` applies pending migrations.
func newMigrateCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
		Long:  `Apply, roll back, inspect or force the PostgreSQL schema version.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: database.url or DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd, deps)
		},
	})
	cmd.AddCommand(newMigrateDownCmd(deps))
	cmd.AddCommand(newMigrateStatusCmd(deps))
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Record VERSION as applied without running it",
		Long: `Record VERSION as the applied schema version and clear the dirty
flag. Use after repairing a migration that failed midway.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version to %d\n", version)
				return nil
			})
		},
	})

	return cmd
}

func newMigrateDownCmd(deps *Deps) *cobra.Command {
	var steps int
	var all bool

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the most recent migration, or --steps of them. --all
drops every table, deleting all users and sessions.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return oops.Code("INVALID_STEPS").With("steps", steps).Errorf("--steps must be at least 1")
			}
			return withMigrator(cmd, deps, func(m Migrator) error {
				if all {
					if err := m.Down(); err != nil {
						return err
					}
					cmd.Println("Rolled back all migrations")
					return nil
				}
				if err := m.Steps(-steps); err != nil {
					return err
				}
				cmd.Printf("Rolled back %d migration(s)\n", steps)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.Flags().BoolVar(&all, "all", false, "roll back every migration")

	return cmd
}

func newMigrateStatusCmd(deps *Deps) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, deps, func(m Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeStatusJSON(cmd.OutOrStdout(), status)
				}
				return writeStatusTable(cmd.OutOrStdout(), status)
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runMigrateUp(cmd *cobra.Command, deps *Deps) error {
	return withMigrator(cmd, deps, func(m Migrator) error {
		cmd.Println("Running migrations...")
		if err := m.Up(); err != nil {
			return err
		}
		cmd.Println("Migrations completed successfully")
		return nil
	})
}

// migrateUp applies pending migrations against databaseURL.
func migrateUp(deps *Deps, databaseURL string) error {
	m, err := deps.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	upErr := m.Up()
	closeErr := m.Close()
	if upErr != nil {
		return upErr
	}
	return closeErr
}

// withMigrator loads the database configuration and runs fn with a
// migrator, closing it afterwards.
func withMigrator(cmd *cobra.Command, deps *Deps, fn func(Migrator) error) error {
	path, err := xdg.ResolveConfigFile(configFile)
	if err != nil {
		return err
	}
	cfg, err := config.LoadDatabase(path, cmd.Flags(), commandFlags(cmd)...)
	if err != nil {
		return err
	}

	m, err := deps.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	fnErr := fn(m)
	if closeErr := m.Close(); closeErr != nil && fnErr == nil {
		return closeErr
	}
	return fnErr
}

// parseForceVersion parses the VERSION argument of migrate force.
func parseForceVersion(arg string) (int, error) {
	version, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Errorf("version must be an integer: %q", arg)
	}
	if version < 0 {
		return 0, oops.Code("INVALID_VERSION").With("version", arg).Errorf("version must be non-negative, got %d", version)
	}
	return version, nil
}

type migrationEntry struct {
	Version uint   `json:"version"`
	Name    string `json:"name"`
}

type statusOutput struct {
	Current uint             `json:"current"`
	Dirty   bool             `json:"dirty"`
	Applied []migrationEntry `json:"applied"`
	Pending []migrationEntry `json:"pending"`
}

func newStatusOutput(status store.MigrationStatus) (statusOutput, error) {
	out := statusOutput{
		Current: status.Current,
		Dirty:   status.Dirty,
		Applied: []migrationEntry{},
		Pending: []migrationEntry{},
	}
	for _, v := range status.Applied {
		name, err := store.MigrationName(v)
		if err != nil {
			return statusOutput{}, err
		}
		out.Applied = append(out.Applied, migrationEntry{Version: v, Name: name})
	}
	for _, v := range status.Pending {
		name, err := store.MigrationName(v)
		if err != nil {
			return statusOutput{}, err
		}
		out.Pending = append(out.Pending, migrationEntry{Version: v, Name: name})
	}
	return out, nil
}

func writeStatusJSON(w io.Writer, status store.MigrationStatus) error {
	out, err := newStatusOutput(status)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

func writeStatusTable(w io.Writer, status store.MigrationStatus) error {
	out, err := newStatusOutput(status)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Current version:\t%d\n", out.Current)
	if out.Dirty {
		_, _ = fmt.Fprintln(tw, "State:\tDIRTY (repair the schema, then run `warden migrate force VERSION`)")
	}
	_, _ = fmt.Fprintln(tw)
	_, _ = fmt.Fprintln(tw, "VERSION\tNAME\tSTATE")
	_, _ = fmt.Fprintln(tw, "-------\t----\t-----")
	for _, e := range out.Applied {
		_, _ = fmt.Fprintf(tw, "%d\t%s\tapplied\n", e.Version, e.Name)
	}
	for _, e := range out.Pending {
		_, _ = fmt.Fprintf(tw, "%d\t%s\tpending\n", e.Version, e.Name)
	}
	if err := tw.Flush(); err != nil {
		return oops.Code("OUTPUT_FAILED").Wrap(err)
	}
	return nil
}
