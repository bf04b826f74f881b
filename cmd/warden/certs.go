// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/certs"
	"github.com/holomush/warden/internal/xdg"
)

type certsConfig struct {
	dir   string
	name  string
	hosts []string
}

// newCertsCmd creates the certs command for development TLS material.
func newCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Manage TLS certificates for the API listener",
	}
	cmd.AddCommand(newCertsGenerateCmd())
	return cmd
}

func newCertsGenerateCmd() *cobra.Command {
	cfg := &certsConfig{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a CA and a server certificate signed by it",
		Long: `Generates a server certificate for the given hosts. An existing CA in
the target directory is reused so clients that already trust it keep
working; otherwise a new CA is created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCertsGenerate(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.dir, "dir", "", "output directory (default $XDG_CONFIG_HOME/warden/certs)")
	cmd.Flags().StringVar(&cfg.name, "name", "dev", "name embedded in a newly created CA")
	cmd.Flags().StringSliceVar(&cfg.hosts, "host", []string{"localhost", "127.0.0.1"}, "DNS name or IP the server certificate covers (repeatable)")

	return cmd
}

func runCertsGenerate(cmd *cobra.Command, cfg *certsConfig) error {
	dir := cfg.dir
	if dir == "" {
		dir = filepath.Join(xdg.ConfigDir(), "certs")
	}

	ca, err := certs.LoadCA(dir)
	switch {
	case err == nil:
		cmd.Printf("Reusing CA in %s\n", dir)
	case errors.Is(err, fs.ErrNotExist):
		if ca, err = certs.GenerateCA(cfg.name); err != nil {
			return err
		}
	default:
		return err
	}

	server, err := certs.GenerateServerCert(ca, cfg.hosts...)
	if err != nil {
		return err
	}
	if err := certs.Save(dir, ca, server); err != nil {
		return err
	}

	cmd.Printf("Wrote %s and %s\n", filepath.Join(dir, certs.CACertFile), filepath.Join(dir, certs.ServerCertFile))
	cmd.Printf("Serve with --http-tls-cert-file %s --http-tls-key-file %s\n",
		filepath.Join(dir, certs.ServerCertFile), filepath.Join(dir, certs.ServerKeyFile))
	return nil
}
