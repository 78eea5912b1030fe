// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

// Package postgres implements account.Repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/finman/finman/internal/account"
)

// DB is the narrow pool surface the repository needs. Satisfied by
// *pgxpool.Pool and by pgxmock.PgxPoolIface in tests.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool DB
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool DB) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const accountColumns = `id, name, email, password_hash, role, email_confirmed,
	       email_token_hash, email_token_expires_at,
	       failed_attempts, locked_until, created_at, updated_at`

// Create stores a new account. The unique index on LOWER(email) is the
// authoritative duplicate-email signal; a violation surfaces as
// account.ErrDuplicateEmail.
func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (
			id, name, email, password_hash, role, email_confirmed,
			email_token_hash, email_token_expires_at,
			failed_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		acct.ID.String(),
		acct.Name,
		acct.Email,
		acct.PasswordHash,
		acct.Role,
		acct.EmailConfirmed,
		acct.EmailTokenHash,
		acct.EmailTokenExpiresAt,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.CreatedAt,
		acct.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", acct.Email).
				Wrap(account.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", acct.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id.String())

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return acct, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE LOWER(email) = LOWER($1)
	`, email)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return acct, nil
}

// GetByTokenHash retrieves the account holding the given action token hash.
func (r *AccountRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*account.Account, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email_token_hash = $1
	`, tokenHash)

	acct, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			Wrap(account.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_TOKEN_FAILED").
			With("operation", "get account by token hash").
			Wrap(err)
	}
	return acct, nil
}

// Update updates an existing account.
func (r *AccountRepository) Update(ctx context.Context, acct *account.Account) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET
			name = $2,
			email = $3,
			password_hash = $4,
			role = $5,
			email_confirmed = $6,
			email_token_hash = $7,
			email_token_expires_at = $8,
			failed_attempts = $9,
			locked_until = $10,
			updated_at = $11
		WHERE id = $1
	`,
		acct.ID.String(),
		acct.Name,
		acct.Email,
		acct.PasswordHash,
		acct.Role,
		acct.EmailConfirmed,
		acct.EmailTokenHash,
		acct.EmailTokenExpiresAt,
		acct.FailedAttempts,
		acct.LockedUntil,
		acct.UpdatedAt,
	)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update account").
			With("id", acct.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", acct.ID.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash for an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE accounts SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id.String(), passwordHash, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_PASSWORD_FAILED").
			With("operation", "update password").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// Delete removes an account.
func (r *AccountRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := r.pool.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("ACCOUNT_DELETE_FAILED").
			With("operation", "delete account").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(account.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		idStr          string
		name           string
		email          string
		passwordHash   string
		role           string
		emailConfirmed bool
		tokenHash      *string
		tokenExpiresAt *time.Time
		failedAttempts int
		lockedUntil    *time.Time
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&name,
		&email,
		&passwordHash,
		&role,
		&emailConfirmed,
		&tokenHash,
		&tokenExpiresAt,
		&failedAttempts,
		&lockedUntil,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &account.Account{
		ID:                  id,
		Name:                name,
		Email:               email,
		PasswordHash:        passwordHash,
		Role:                role,
		EmailConfirmed:      emailConfirmed,
		EmailTokenHash:      tokenHash,
		EmailTokenExpiresAt: tokenExpiresAt,
		FailedAttempts:      failedAttempts,
		LockedUntil:         lockedUntil,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}, nil
}

// Compile-time interface check.
var _ account.Repository = (*AccountRepository)(nil)
