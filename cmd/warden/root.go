// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Global flags available to all subcommands.
var configFile string

// configFlag is skipped when flags are layered onto the configuration.
const configFlag = "config"

// NewRootCmd creates the root command for the warden CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	deps = deps.withDefaults()

	cmd := &cobra.Command{
		Use:   "warden",
		Short: "warden - cookie session authentication service",
		Long: `warden registers users, signs them in with server-side sessions
carried in a signed, encrypted cookie, and lets administrators manage
accounts over a small REST API.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, configFlag, "", "config file path (YAML, default $XDG_CONFIG_HOME/warden/config.yaml when present)")

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newUserCmd(deps))
	cmd.AddCommand(newSeedCmd(deps))
	cmd.AddCommand(newCertsCmd())

	return cmd
}

// commandFlags names the flags of cmd that are not configuration keys: the
// config path and the command's own local flags.
func commandFlags(cmd *cobra.Command) []string {
	names := []string{configFlag}
	cmd.LocalNonPersistentFlags().VisitAll(func(f *pflag.Flag) {
		names = append(names, f.Name)
	})
	return names
}
