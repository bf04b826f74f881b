// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/certs"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/cookie"
	"github.com/holomush/warden/internal/httpapi"
	"github.com/holomush/warden/internal/logging"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/xdg"
)

// shutdownTimeout bounds the graceful stop of the listeners.
const shutdownTimeout = 10 * time.Second

// newServeCmd creates the serve subcommand.
func newServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication API",
		Long: `Run the REST API, the metrics and health listener, and the
expired-session sweeper until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, deps)
		},
	}

	def := config.Default()
	f := cmd.Flags()
	f.String("http-addr", def.HTTP.Addr, "API listen address")
	f.String("http-public-origin", def.HTTP.PublicOrigin, "public origin used in pagination links")
	f.String("http-tls-cert-file", "", "PEM certificate; serves HTTPS together with --http-tls-key-file")
	f.String("http-tls-key-file", "", "PEM private key for --http-tls-cert-file")
	f.String("metrics-addr", def.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	f.String("log-format", def.Log.Format, "log format (json or text)")
	f.String("log-level", def.Log.Level, "log level (debug, info, warn, error)")
	f.String("store-driver", def.Store.Driver, "store driver (postgres or memory)")
	f.Bool("database-auto-migrate", def.Database.AutoMigrate, "apply pending migrations on start")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	path, err := xdg.ResolveConfigFile(configFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path, cmd.Flags(), configFlag)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup("warden", version, cfg.Log.Format, deps.LogOutput, logging.WithLevel(level))
	slog.SetDefault(logger)

	logger.Info("starting warden",
		"http_addr", cfg.HTTP.Addr,
		"store", cfg.Store.Driver,
		"hash", cfg.Hash.Algorithm,
		"session_validity", cfg.Session.Validity,
	)

	if cfg.Store.Driver == config.DriverPostgres && cfg.Database.AutoMigrate {
		if err := migrateUp(deps, cfg.Database.URL); err != nil {
			return err
		}
		logger.Info("database schema is current")
	}

	backend, err := deps.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return oops.Code("SERVE_STORE_FAILED").With("driver", cfg.Store.Driver).Wrap(err)
	}
	defer backend.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer *observability.Server
	var recorder auth.Recorder = auth.NopRecorder{}
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, backend.Ping, logger)
		recorder = obsServer.Metrics()
	}

	cookieCfg, err := cfg.CookieCodecConfig()
	if err != nil {
		return err
	}
	codec, err := cookie.New(cookieCfg)
	if err != nil {
		return err
	}
	svcs, err := buildServices(cfg, backend, codec, auth.WithLogger(logger), auth.WithRecorder(recorder))
	if err != nil {
		return err
	}

	routerDeps := httpapi.Deps{
		Auth:         svcs.auth,
		Users:        svcs.users,
		Cookies:      codec,
		Logger:       logger,
		PublicOrigin: cfg.HTTP.PublicOrigin,
	}
	if obsServer != nil {
		routerDeps.Metrics = obsServer.Metrics()
	}
	router, err := httpapi.NewRouter(routerDeps)
	if err != nil {
		return err
	}

	failed := make(chan error, 2)
	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_START_FAILED").With("listener", "metrics").Wrap(err)
		}
		go monitorServerErrors(ctx, obsErrCh, "observability", failed)
		defer stopServer(obsServer, "observability", logger)
	}

	var serverOpts []httpapi.ServerOption
	if cfg.HTTP.TLSEnabled() {
		tlsCfg, err := certs.LoadServerTLS(cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile)
		if err != nil {
			return oops.Code("SERVE_TLS_FAILED").Wrap(err)
		}
		serverOpts = append(serverOpts, httpapi.WithTLS(tlsCfg))
	}

	apiServer := httpapi.NewServer(cfg.HTTP.Addr, router, logger, serverOpts...)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		return oops.Code("SERVE_START_FAILED").With("listener", "api").Wrap(err)
	}
	go monitorServerErrors(ctx, apiErrCh, "api", failed)
	defer stopServer(apiServer, "api", logger)

	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		auth.NewSweeper(svcs.sessions, cfg.Session.SweepInterval, logger).Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("warden ready", "api_addr", apiServer.Addr())
	deps.Ready(apiServer.Addr())

	var serveErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case serveErr = <-failed:
		logger.Error("listener failed, shutting down", "error", serveErr)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	cancel()
	<-sweepDone
	return serveErr
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(s stopper, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors forwards the first serve error of a listener to
// failed. It returns when the error channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, errCh <-chan error, name string, failed chan<- error) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			failed <- oops.Code("SERVE_LISTENER_FAILED").With("server", name).Wrap(err)
		}
	case <-ctx.Done():
	}
}
