// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/finman/finman/internal/account"
	"github.com/finman/finman/internal/account/postgres"
	"github.com/finman/finman/internal/store"
)

// testPool is the shared database pool for integration tests.
var testPool *pgxpool.Pool

// TestMain sets up a PostgreSQL testcontainer with the schema applied.
func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("finman_test"),
		pgcontainer.WithUsername("finman"),
		pgcontainer.WithPassword("finman"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		panic("failed to start postgres container: " + err.Error())
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to get connection string: " + err.Error())
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create migrator: " + err.Error())
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		_ = container.Terminate(ctx)
		panic("failed to run migrations: " + err.Error())
	}
	_ = migrator.Close()

	pool, err := store.Connect(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		panic("failed to create pool: " + err.Error())
	}
	testPool = pool

	code := m.Run()

	pool.Close()
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func createTestAccount(t *testing.T, email string) *account.Account {
	t.Helper()
	acct, err := account.NewAccount("Integration User", email, "$argon2id$hash")
	require.NoError(t, err)

	repo := postgres.NewAccountRepository(testPool)
	require.NoError(t, repo.Create(context.Background(), acct))
	t.Cleanup(func() {
		_, _ = testPool.Exec(context.Background(), `DELETE FROM accounts WHERE id = $1`, acct.ID.String())
	})
	return acct
}

func TestAccountRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	acct := createTestAccount(t, "roundtrip@finmail.io")

	stored, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, acct.ID, stored.ID)
	assert.Equal(t, "roundtrip@finmail.io", stored.Email)
	assert.Equal(t, account.RoleUser, stored.Role)
	assert.False(t, stored.EmailConfirmed)
}

func TestAccountRepository_GetByEmail_CaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	acct := createTestAccount(t, "casefold@finmail.io")

	stored, err := repo.GetByEmail(ctx, "CaseFold@Finmail.IO")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, stored.ID)
}

func TestAccountRepository_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	createTestAccount(t, "dup@finmail.io")

	// Same address in different case hits the LOWER(email) unique index.
	dup, err := account.NewAccount("Impostor", "DUP@finmail.io", "$argon2id$hash")
	require.NoError(t, err)

	err = repo.Create(ctx, dup)
	require.Error(t, err)
	assert.ErrorIs(t, err, account.ErrDuplicateEmail)
}

func TestAccountRepository_TokenHashLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	acct := createTestAccount(t, "tokenflow@finmail.io")

	acct.SetActionToken("integration-hash", time.Now().Add(time.Hour).UTC())
	require.NoError(t, repo.Update(ctx, acct))

	byToken, err := repo.GetByTokenHash(ctx, "integration-hash")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, byToken.ID)

	byToken.MarkEmailConfirmed()
	require.NoError(t, repo.Update(ctx, byToken))

	_, err = repo.GetByTokenHash(ctx, "integration-hash")
	assert.ErrorIs(t, err, account.ErrNotFound)

	confirmed, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)
	assert.Nil(t, confirmed.EmailTokenHash)
}

func TestAccountRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewAccountRepository(testPool)

	acct := createTestAccount(t, "passchange@finmail.io")

	require.NoError(t, repo.UpdatePassword(ctx, acct.ID, "$argon2id$new"))

	stored, err := repo.GetByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", stored.PasswordHash)
}
