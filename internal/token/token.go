// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

// Package token issues and validates the signed tokens used for sessions and
// for single-purpose email links.
//
// Two token kinds share one signing mechanism (HMAC-SHA256):
//
//   - Auth tokens carry the account identity (subject, name, email, role) and
//     authenticate API requests. They are stateless: validity is a function of
//     signature and expiry only.
//   - Action tokens carry an email claim and a purpose marker and authorize a
//     single account-lifecycle action (email confirmation, password reset).
//     Callers additionally cross-check them against a hash stored on the
//     account, which is what makes them single-use.
package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Purpose claims carried by action tokens.
const (
	PurposeEmailConfirmation = "email_confirmation"
	PurposePasswordReset     = "password_reset"
)

// Claims is the finman token payload. Auth tokens leave Purpose empty;
// action tokens leave Name and Role empty.
type Claims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

// Service signs and verifies tokens with a symmetric key.
type Service struct {
	secret  []byte
	issuer  string
	authTTL time.Duration
}

// NewService creates a token Service. The secret and issuer come from process
// configuration; their absence is a startup error, never a per-request one.
func NewService(secret, issuer string, authTTL time.Duration) (*Service, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("signing secret cannot be empty")
	}
	if strings.TrimSpace(issuer) == "" {
		return nil, oops.Code("TOKEN_ISSUER_MISSING").Errorf("issuer cannot be empty")
	}
	if authTTL <= 0 {
		return nil, oops.Code("TOKEN_TTL_INVALID").
			With("auth_ttl", authTTL).
			Errorf("auth token lifetime must be positive")
	}
	return &Service{secret: []byte(secret), issuer: issuer, authTTL: authTTL}, nil
}

// IssueAuthToken mints a bearer session token for the given account identity.
func (s *Service) IssueAuthToken(accountID, name, email, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.authTTL)),
		},
		Name:  name,
		Email: email,
		Role:  role,
	}
	return s.sign(claims)
}

// IssueActionToken mints a short-lived single-purpose token bound to an email
// address. purpose must be one of the Purpose* constants.
func (s *Service) IssueActionToken(email, purpose string, ttl time.Duration) (string, error) {
	if purpose != PurposeEmailConfirmation && purpose != PurposePasswordReset {
		return "", oops.Code("TOKEN_PURPOSE_INVALID").
			With("purpose", purpose).
			Errorf("unknown action token purpose")
	}
	if ttl <= 0 {
		return "", oops.Code("TOKEN_TTL_INVALID").
			With("ttl", ttl).
			Errorf("action token lifetime must be positive")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			// jti makes consecutive tokens for the same email distinct, so
			// issuing a new one always invalidates the previous link.
			ID:        ulid.Make().String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email:   email,
		Purpose: purpose,
	}
	return s.sign(claims)
}

func (s *Service) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// ValidateAuth verifies an auth token and returns its claims. Action tokens
// are rejected: a confirmation or reset link must never double as a session.
func (s *Service) ValidateAuth(tokenString string) (*Claims, error) {
	claims, err := s.validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "action token used as auth token").
			Errorf("invalid token")
	}
	if claims.Subject == "" {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "missing subject").
			Errorf("invalid token")
	}
	return claims, nil
}

// ValidateAction verifies an action token and checks that it carries the
// expected purpose claim.
func (s *Service) ValidateAction(tokenString, purpose string) (*Claims, error) {
	claims, err := s.validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "purpose mismatch").
			Errorf("invalid token")
	}
	if claims.Email == "" {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "missing email claim").
			Errorf("invalid token")
	}
	return claims, nil
}

// validate verifies signature, issuer, audience, and expiry. The outward code
// is always TOKEN_INVALID; the failing check is recorded as error context for
// server-side logs only.
func (s *Service) validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		}
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", reason).
			Wrap(err)
	}
	if !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").
			With("reason", "failed validation").
			Errorf("invalid token")
	}
	return claims, nil
}

// Hash computes the SHA-256 hex digest of a token string. Action tokens are
// stored hashed at rest so a database leak does not expose live links.
func Hash(tokenString string) string {
	h := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(h[:])
}
