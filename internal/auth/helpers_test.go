// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth_test

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/holomush/warden/internal/auth"
)

// countingRecorder records auth events for assertions.
type countingRecorder struct {
	mu        sync.Mutex
	denied    map[string]int
	logins    map[string]int
	validated map[string]int
	swept     int64
	created   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		denied:    map[string]int{},
		logins:    map[string]int{},
		validated: map[string]int{},
	}
}

func (r *countingRecorder) AccessDenied(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.denied[reason]++
}

func (r *countingRecorder) LoginAttempt(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logins[outcome]++
}

func (r *countingRecorder) SessionsSwept(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swept += n
}

func (r *countingRecorder) SessionCreated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created++
}

func (r *countingRecorder) SessionValidated(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validated[outcome]++
}

func (r *countingRecorder) sweptTotal() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.swept
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(t time.Time) *testClock {
	return &testClock{now: t}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// prefixCodec is a transparent cookie codec: values are the id behind a
// fixed prefix, anything else is rejected.
type prefixCodec struct{}

const codecPrefix = "v1."

func (prefixCodec) Encode(id string) (string, error) {
	return codecPrefix + id, nil
}

func (prefixCodec) Decode(value string) (string, error) {
	id, ok := strings.CutPrefix(value, codecPrefix)
	if !ok || id == "" {
		return "", errors.New("malformed cookie")
	}
	return id, nil
}

// fixedScore returns an evaluator that scores every password at score.
func fixedScore(score int) auth.StrengthEvaluator {
	return auth.StrengthFunc(func(string, ...string) int { return score })
}

func strPtr(s string) *string { return &s }
