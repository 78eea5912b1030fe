// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

// Package account provides the account authentication and lifecycle domain:
// credential hashing, email validation, lockout policy, and the workflow
// service tying them to token issuance and notification delivery.
package account

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Account roles. New accounts default to RoleUser.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// Name validation constraints.
const (
	MinNameLength = 1
	MaxNameLength = 100
)

// Account is the authentication-relevant projection of a user.
type Account struct {
	ID             ulid.ULID
	Name           string
	Email          string // normalized lowercase, unique case-insensitively
	PasswordHash   string
	Role           string
	EmailConfirmed bool

	// EmailTokenHash holds the SHA-256 hex of the outstanding confirmation or
	// reset token; nil when none is pending. At most one token is outstanding
	// per account, so issuing a new one invalidates the previous.
	EmailTokenHash      *string
	EmailTokenExpiresAt *time.Time

	FailedAttempts int
	LockedUntil    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewAccount creates an unconfirmed account with the given credentials.
// Name and email are normalized; passwordHash must already be hashed.
func NewAccount(name, email, passwordHash string) (*Account, error) {
	name = strings.TrimSpace(name)
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("ACCOUNT_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}

	now := time.Now()
	return &Account{
		ID:           ulid.Make(),
		Name:         name,
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// NormalizeEmail lowercases and trims an email address so case and
// surrounding whitespace never affect identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateName checks the display name constraints.
func ValidateName(name string) error {
	if name == "" {
		return oops.Code("ACCOUNT_INVALID_NAME").Errorf("name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return oops.Code("ACCOUNT_INVALID_NAME").
			With("max", MaxNameLength).
			Errorf("name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// SetActionToken records the hash of a freshly issued confirmation or reset
// token, overwriting any previous one.
func (a *Account) SetActionToken(tokenHash string, expiresAt time.Time) {
	a.EmailTokenHash = &tokenHash
	a.EmailTokenExpiresAt = &expiresAt
	a.UpdatedAt = time.Now()
}

// ClearActionToken removes the outstanding token, making it unusable.
func (a *Account) ClearActionToken() {
	a.EmailTokenHash = nil
	a.EmailTokenExpiresAt = nil
	a.UpdatedAt = time.Now()
}

// HasValidActionToken reports whether tokenHash matches the stored,
// unexpired token.
func (a *Account) HasValidActionToken(tokenHash string) bool {
	if a.EmailTokenHash == nil || *a.EmailTokenHash != tokenHash {
		return false
	}
	if a.EmailTokenExpiresAt != nil && a.EmailTokenExpiresAt.Before(time.Now()) {
		return false
	}
	return true
}

// MarkEmailConfirmed transitions the account to the confirmed state and
// consumes the outstanding token.
func (a *Account) MarkEmailConfirmed() {
	a.EmailConfirmed = true
	a.ClearActionToken()
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked() bool {
	return IsLockedOut(a.LockedUntil)
}

// RecordFailure increments the failure counter and sets lockout if the
// threshold is reached.
func (a *Account) RecordFailure() {
	a.FailedAttempts++
	a.LockedUntil = ComputeLockoutTime(a.FailedAttempts)
	a.UpdatedAt = time.Now()
}

// RecordSuccess resets the failure counter and lockout.
func (a *Account) RecordSuccess() {
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = time.Now()
}

// Repository manages account persistence.
type Repository interface {
	// Create stores a new account. Returns ErrDuplicateEmail if another
	// account already holds the email (case-insensitive).
	Create(ctx context.Context, acct *Account) error

	// GetByID retrieves an account by ID. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByTokenHash retrieves the account holding the given outstanding
	// action token hash. Returns ErrNotFound if none matches.
	GetByTokenHash(ctx context.Context, tokenHash string) (*Account, error)

	// Update updates an existing account.
	Update(ctx context.Context, acct *Account) error

	// UpdatePassword updates only the password hash for an account.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Delete removes an account.
	Delete(ctx context.Context, id ulid.ULID) error
}
