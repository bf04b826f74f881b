// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported digest algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// DefaultHashCost is the bcrypt cost used when none is configured.
// Cost 12 lands in the low hundreds of milliseconds on current hardware.
const DefaultHashCost = 12

// Fixed argon2id parameters; only the time cost follows configuration.
const (
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
	argon2SaltLen = 16
	argon2KeyLen  = 32
	argon2MaxTime = 16
)

// bcrypt silently truncates longer input, so reject it instead.
const maxPasswordBytes = 72

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(ErrInvalidPassword, "password cannot be empty")

// ErrPasswordTooLong is returned for passwords beyond what the digest covers.
var ErrPasswordTooLong = oops.Code("AUTH_PASSWORD_TOO_LONG").
	With("max_bytes", maxPasswordBytes).
	Wrapf(ErrInvalidPassword, "password exceeds %d bytes", maxPasswordBytes)

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing salted digest of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the digest.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid digest.
	Verify(password, digest string) (bool, error)

	// NeedsUpgrade returns true if the digest was produced with another
	// algorithm or cost than the hasher is configured for.
	NeedsUpgrade(digest string) bool
}

// NewPasswordHasher returns the hasher for the named algorithm.
// For bcrypt, cost is the bcrypt cost; for argon2id it is the time parameter.
func NewPasswordHasher(algorithm string, cost int) (PasswordHasher, error) {
	switch algorithm {
	case "", AlgorithmBcrypt:
		h, err := NewBcryptHasher(cost)
		if err != nil {
			return nil, err
		}
		return h, nil
	case AlgorithmArgon2id:
		h, err := NewArgon2idHasher(uint32(max(cost, 0))) //nolint:gosec // clamped to non-negative
		if err != nil {
			return nil, err
		}
		return h, nil
	default:
		return nil, oops.Code("AUTH_UNKNOWN_ALGORITHM").
			With("algorithm", algorithm).
			Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// BcryptHasher implements PasswordHasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher. A zero cost selects DefaultHashCost.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost == 0 {
		cost = DefaultHashCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt digest of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	if err := checkPlaintext(password); err != nil {
		return "", err
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").With("algorithm", AlgorithmBcrypt).Wrap(err)
	}
	return string(digest), nil
}

// Verify checks the password against a bcrypt or argon2id digest.
func (h *BcryptHasher) Verify(password, digest string) (bool, error) {
	return verifyDigest(password, digest)
}

// NeedsUpgrade reports whether digest is not bcrypt at the configured cost.
func (h *BcryptHasher) NeedsUpgrade(digest string) bool {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	time uint32
}

// NewArgon2idHasher creates an Argon2idHasher. A zero time selects 1 iteration.
func NewArgon2idHasher(time uint32) (*Argon2idHasher, error) {
	if time == 0 {
		time = 1
	}
	if time > argon2MaxTime {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", time).
			Errorf("argon2id time cost must be at most %d", argon2MaxTime)
	}
	return &Argon2idHasher{time: time}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if err := checkPlaintext(password); err != nil {
		return "", err
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	hash := argon2.IDKey([]byte(password), salt, h.time, argon2Memory, argon2Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		h.time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks the password against an argon2id or bcrypt digest.
func (h *Argon2idHasher) Verify(password, digest string) (bool, error) {
	return verifyDigest(password, digest)
}

// NeedsUpgrade reports whether digest is not argon2id at the configured time cost.
func (h *Argon2idHasher) NeedsUpgrade(digest string) bool {
	params, err := parseArgon2id(digest)
	if err != nil {
		return true
	}
	return params.time != h.time || params.memory != argon2Memory || params.threads != argon2Threads
}

func checkPlaintext(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}

// verifyDigest dispatches on the digest prefix so either algorithm stays
// verifiable whichever one is configured for new hashes.
func verifyDigest(password, digest string) (bool, error) {
	if strings.HasPrefix(digest, "$argon2") {
		return verifyArgon2id(password, digest)
	}

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
}

type argon2Params struct {
	version int
	memory  uint32
	time    uint32
	threads uint32
	salt    []byte
	key     []byte
}

func parseArgon2id(encoded string) (*argon2Params, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != AlgorithmArgon2id {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	p := &argon2Params{}
	if _, err := fmt.Sscanf(parts[2], "v=%d", &p.version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	if p.threads == 0 || p.threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", p.threads)
	}
	if len(p.key) == 0 || len(p.key) > 1<<10 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(p.key))
	}
	return p, nil
}

func verifyArgon2id(password, encoded string) (bool, error) {
	p, err := parseArgon2id(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, uint8(p.threads), uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}
