// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package cookie encodes session ids into authenticated, encrypted cookies.
//
// Values are sealed with gorilla/securecookie (HMAC-SHA256 then AES-256) and
// carry their creation time, so a value older than the cookie TTL is
// rejected even if the browser kept it. Both keys are derived from a single
// configured secret with HKDF-SHA256.
package cookie

import (
	"crypto/sha256"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/samber/oops"
	"golang.org/x/crypto/hkdf"
)

// Defaults applied by New.
const (
	DefaultName    = "session"
	DefaultPath    = "/"
	MinSecretBytes = 32
)

// HKDF info strings. Changing either invalidates every issued cookie.
const (
	hashKeyInfo  = "warden cookie hmac-sha256"
	blockKeyInfo = "warden cookie aes-256"
)

// Config describes the session cookie.
type Config struct {
	Name     string
	Secret   []byte
	TTL      time.Duration
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// Codec seals session ids into cookie values and writes the cookie.
type Codec struct {
	cfg Config
	sc  *securecookie.SecureCookie
}

// New creates a Codec. Secret must be at least MinSecretBytes long and TTL
// positive.
func New(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, oops.Code("COOKIE_INVALID_SECRET").
			With("min_bytes", MinSecretBytes).
			With("got_bytes", len(cfg.Secret)).
			Errorf("cookie secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, oops.Code("COOKIE_INVALID_TTL").With("ttl", cfg.TTL).Errorf("cookie TTL must be positive")
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}

	hashKey, err := deriveKey(cfg.Secret, hashKeyInfo, 32)
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(cfg.Secret, blockKeyInfo, 32)
	if err != nil {
		return nil, err
	}

	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.NopEncoder{})
	sc.MaxAge(maxAgeSeconds(cfg.TTL))

	return &Codec{cfg: cfg, sc: sc}, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string {
	return c.cfg.Name
}

// Encode seals sessionID into a cookie value.
func (c *Codec) Encode(sessionID string) (string, error) {
	if sessionID == "" {
		return "", oops.Code("COOKIE_ENCODE_FAILED").Errorf("session id cannot be empty")
	}
	value, err := c.sc.Encode(c.cfg.Name, []byte(sessionID))
	if err != nil {
		return "", oops.Code("COOKIE_ENCODE_FAILED").Wrap(err)
	}
	return value, nil
}

// Decode returns the session id sealed in value. Forged, corrupted and
// expired values fail.
func (c *Codec) Decode(value string) (string, error) {
	var raw []byte
	if err := c.sc.Decode(c.cfg.Name, value, &raw); err != nil {
		return "", oops.Code("COOKIE_DECODE_FAILED").Wrap(err)
	}
	if len(raw) == 0 {
		return "", oops.Code("COOKIE_DECODE_FAILED").Errorf("cookie carries no session id")
	}
	return string(raw), nil
}

// Set writes the session cookie carrying value.
func (c *Codec) Set(w http.ResponseWriter, value string) {
	cookie := c.base()
	cookie.Value = value
	cookie.MaxAge = maxAgeSeconds(c.cfg.TTL)
	cookie.Expires = time.Now().Add(c.cfg.TTL).UTC()
	http.SetCookie(w, cookie)
}

// Clear writes an expired session cookie with the same attributes.
func (c *Codec) Clear(w http.ResponseWriter) {
	cookie := c.base()
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(w, cookie)
}

// Read returns the session cookie value of r, or "" when absent.
func (c *Codec) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.cfg.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c *Codec) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.Name,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		Secure:   c.cfg.Secure,
		HttpOnly: true,
		SameSite: c.cfg.SameSite,
	}
}

// ParseSameSite maps "lax", "strict" and "none" to their http.SameSite mode.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(s) {
	case "", "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, oops.Code("COOKIE_INVALID_SAMESITE").With("same_site", s).Errorf("unknown SameSite mode %q", s)
	}
}

func deriveKey(secret []byte, info string, size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, oops.Code("COOKIE_KEY_DERIVATION_FAILED").With("info", info).Wrap(err)
	}
	return key, nil
}

func maxAgeSeconds(ttl time.Duration) int {
	secs := int(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
