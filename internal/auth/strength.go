// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"

	zxcvbn "github.com/nbutton23/zxcvbn-go"
	"github.com/samber/oops"
)

// MinStrengthScore is the lowest accepted strength score (0..4).
const MinStrengthScore = 3

// StrengthEvaluator estimates how guessable a password is.
type StrengthEvaluator interface {
	// Score returns 0 (trivial) through 4 (very strong). Context values such
	// as the account email or name lower the score of passwords built from them.
	Score(password string, context ...string) int
}

// StrengthFunc adapts a function to StrengthEvaluator.
type StrengthFunc func(password string, context ...string) int

// Score calls f.
func (f StrengthFunc) Score(password string, context ...string) int {
	return f(password, context...)
}

// ZxcvbnEvaluator scores passwords with zxcvbn.
type ZxcvbnEvaluator struct{}

// NewZxcvbnEvaluator creates a ZxcvbnEvaluator.
func NewZxcvbnEvaluator() *ZxcvbnEvaluator {
	return &ZxcvbnEvaluator{}
}

// Score returns the zxcvbn score of password.
func (ZxcvbnEvaluator) Score(password string, context ...string) int {
	inputs := make([]string, 0, len(context)*2)
	for _, c := range context {
		if c == "" {
			continue
		}
		inputs = append(inputs, c)
		// The local part of an email is the piece people reuse.
		if local, _, ok := strings.Cut(c, "@"); ok && local != "" {
			inputs = append(inputs, local)
		}
	}
	return zxcvbn.PasswordStrength(password, inputs).Score
}

// CheckStrength returns an ErrWeakCredential error when password scores
// below MinStrengthScore.
func CheckStrength(evaluator StrengthEvaluator, password string, context ...string) error {
	score := evaluator.Score(password, context...)
	if score < MinStrengthScore {
		return oops.Code("AUTH_WEAK_PASSWORD").
			With("score", score).
			With("min_score", MinStrengthScore).
			Wrap(ErrWeakCredential)
	}
	return nil
}

// checkCredential rejects passwords the hasher cannot take, then passwords
// that are too easy to guess. Every path that stores a password calls it
// before hashing.
func checkCredential(evaluator StrengthEvaluator, password string, context ...string) error {
	if err := checkPlaintext(password); err != nil {
		return err
	}
	return CheckStrength(evaluator, password, context...)
}

// strengthContext collects the values a password should not be built from.
func strengthContext(email string, firstName, lastName *string) []string {
	ctx := []string{email}
	if firstName != nil {
		ctx = append(ctx, *firstName)
	}
	if lastName != nil {
		ctx = append(ctx, *lastName)
	}
	return ctx
}
