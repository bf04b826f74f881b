// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/warden/internal/auth"
	"github.com/holomush/warden/internal/auth/memory"
)

func TestSweeper_Run(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	clock := newTestClock(t0)
	m := newManager(t, store.Sessions(), clock)

	_, err := m.Create(ctx, ulid.Make())
	require.NoError(t, err)
	require.Equal(t, 1, store.Sessions().Len())

	clock.Advance(25 * time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		auth.NewSweeper(m, 5*time.Millisecond, nil).Run(ctx)
	}()

	assert.Eventually(t, func() bool { return store.Sessions().Len() == 0 },
		time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSweeper_DisabledReturnsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t, memory.NewStore().Sessions(), newTestClock(t0))
	done := make(chan struct{})
	go func() {
		defer close(done)
		auth.NewSweeper(m, 0, nil).Run(context.Background())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper with zero interval did not return")
	}
}
