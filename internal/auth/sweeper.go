// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired sessions. It complements, and does
// not replace, the sweep on the validation path.
type Sweeper struct {
	manager  *SessionManager
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A non-positive interval yields a Sweeper
// whose Run returns immediately.
func NewSweeper(manager *SessionManager, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{manager: manager, interval: interval, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.manager.Sweep(ctx)
			if err != nil {
				s.logger.WarnContext(ctx, "background session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "background session sweep", "count", n)
			}
		}
	}
}
