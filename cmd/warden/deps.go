// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"os"

	"github.com/samber/oops"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
	authpg "github.com/holomush/warden/internal/auth/postgres"
	"github.com/holomush/warden/internal/config"
	"github.com/holomush/warden/internal/cookie"
	"github.com/holomush/warden/internal/store"
)

// Backend is the store a command runs against.
type Backend struct {
	Users    auth.UserRepository
	Sessions auth.SessionRepository
	// Ping reports store health to the readiness probe.
	Ping  func(ctx context.Context) error
	Close func()
}

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Force(version int) error
	Status() (store.MigrationStatus, error)
	Close() error
}

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// OpenBackend opens the store selected by cfg.Store.Driver.
	// Default: openBackend
	OpenBackend func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error)

	// NewMigrator creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	NewMigrator func(databaseURL string) (Migrator, error)

	// LogOutput receives log lines.
	// Default: os.Stderr
	LogOutput io.Writer

	// Ready is called with the API address once serve accepts requests.
	Ready func(apiAddr string)
}

func (d *Deps) withDefaults() *Deps {
	out := &Deps{}
	if d != nil {
		*out = *d
	}
	if out.OpenBackend == nil {
		out.OpenBackend = openBackend
	}
	if out.NewMigrator == nil {
		out.NewMigrator = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	if out.LogOutput == nil {
		out.LogOutput = os.Stderr
	}
	if out.Ready == nil {
		out.Ready = func(string) {}
	}
	return out
}

// openBackend connects to PostgreSQL or creates an in-memory store.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Backend, error) {
	if cfg.Store.Driver == config.DriverMemory {
		s := memory.NewStore()
		logger.WarnContext(ctx, "using the in-memory store; users and sessions are lost on exit")
		return &Backend{
			Users:    s.Users(),
			Sessions: s.Sessions(),
			Ping:     func(context.Context) error { return nil },
			Close:    func() {},
		}, nil
	}

	pool, err := store.Connect(ctx, store.PoolConfig{
		URL:            cfg.Database.URL,
		MaxConns:       cfg.Database.MaxConns,
		ConnectRetries: cfg.Database.ConnectRetries,
	}, logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Users:    authpg.NewUserRepository(pool),
		Sessions: authpg.NewSessionRepository(pool),
		Ping:     pool.Ping,
		Close:    pool.Close,
	}, nil
}

// services are the auth components built on a Backend.
type services struct {
	auth     *auth.Service
	users    *auth.UserService
	sessions *auth.SessionManager
}

func buildServices(cfg config.Config, backend *Backend, codec auth.CookieCodec, opts ...auth.Option) (*services, error) {
	hasher, err := auth.NewPasswordHasher(cfg.Hash.Algorithm, cfg.Hash.Cost)
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionManager(backend.Sessions, auth.SessionConfig{
		Validity:      cfg.Session.Validity,
		CreateRetries: cfg.Session.CreateRetries,
	}, opts...)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewAuthService(backend.Users, sessions, hasher, auth.NewZxcvbnEvaluator(), codec, opts...)
	if err != nil {
		return nil, err
	}
	users, err := auth.NewUserService(svc)
	if err != nil {
		return nil, err
	}
	return &services{auth: svc, users: users, sessions: sessions}, nil
}

// offlineCodec returns a codec keyed with a random secret, for commands
// that manage users but never issue cookies.
func offlineCodec() (*cookie.Codec, error) {
	secret := make([]byte, cookie.MinSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, oops.Code("CLI_RANDOM_FAILED").Wrap(err)
	}
	return cookie.New(cookie.Config{Secret: secret, TTL: auth.DefaultSessionValidity})
}
