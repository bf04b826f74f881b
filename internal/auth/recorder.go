// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

// Login outcomes reported to a Recorder.
const (
	LoginSucceeded   = "success"
	LoginRejected    = "invalid_credentials"
	LoginUnapproved  = "unapproved"
	LoginStoreFailed = "error"
)

// Session validation outcomes reported to a Recorder.
const (
	ValidationValid   = "valid"
	ValidationInvalid = "invalid"
	ValidationError   = "error"
)

// Recorder receives authentication events for metrics.
type Recorder interface {
	LoginAttempt(outcome string)
	SessionCreated()
	SessionValidated(outcome string)
	SessionsSwept(count int64)
	AccessDenied(reason string)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) LoginAttempt(string)     {}
func (NopRecorder) SessionCreated()         {}
func (NopRecorder) SessionValidated(string) {}
func (NopRecorder) SessionsSwept(int64)     {}
func (NopRecorder) AccessDenied(string)     {}
