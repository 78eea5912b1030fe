// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finman/finman/internal/account"
	"github.com/finman/finman/internal/httpapi"
	"github.com/finman/finman/internal/notify"
	"github.com/finman/finman/internal/token"
)

// apiRepo is an in-memory account.Repository backing the HTTP tests.
type apiRepo struct {
	mu   sync.Mutex
	byID map[string]*account.Account
}

func newAPIRepo() *apiRepo {
	return &apiRepo{byID: make(map[string]*account.Account)}
}

func cloneAccount(a *account.Account) *account.Account {
	c := *a
	if a.EmailTokenHash != nil {
		h := *a.EmailTokenHash
		c.EmailTokenHash = &h
	}
	if a.EmailTokenExpiresAt != nil {
		e := *a.EmailTokenExpiresAt
		c.EmailTokenExpiresAt = &e
	}
	if a.LockedUntil != nil {
		l := *a.LockedUntil
		c.LockedUntil = &l
	}
	return &c
}

func (r *apiRepo) Create(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, acct.Email) {
			return account.ErrDuplicateEmail
		}
	}
	r.byID[acct.ID.String()] = cloneAccount(acct)
	return nil
}

func (r *apiRepo) GetByID(_ context.Context, id ulid.ULID) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id.String()]; ok {
		return cloneAccount(a), nil
	}
	return nil, account.ErrNotFound
}

func (r *apiRepo) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if strings.EqualFold(a.Email, email) {
			return cloneAccount(a), nil
		}
	}
	return nil, account.ErrNotFound
}

func (r *apiRepo) GetByTokenHash(_ context.Context, tokenHash string) (*account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.EmailTokenHash != nil && *a.EmailTokenHash == tokenHash {
			return cloneAccount(a), nil
		}
	}
	return nil, account.ErrNotFound
}

func (r *apiRepo) Update(_ context.Context, acct *account.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[acct.ID.String()]; !ok {
		return account.ErrNotFound
	}
	r.byID[acct.ID.String()] = cloneAccount(acct)
	return nil
}

func (r *apiRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id.String()]
	if !ok {
		return account.ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (r *apiRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id.String()]; !ok {
		return account.ErrNotFound
	}
	delete(r.byID, id.String())
	return nil
}

type apiNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *apiNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *apiNotifier) last(t *testing.T) notify.Message {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.messages)
	return n.messages[len(n.messages)-1]
}

func mailToken(t *testing.T, body string) string {
	t.Helper()
	idx := strings.Index(body, "token=")
	require.GreaterOrEqual(t, idx, 0, "body should contain a token link: %s", body)
	rest := body[idx+len("token="):]
	if end := strings.IndexAny(rest, " \n\t"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

type testAPI struct {
	server   *httptest.Server
	notifier *apiNotifier
	repo     *apiRepo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	tokens, err := token.NewService("test-signing-secret-32-bytes-long", "finman", time.Hour)
	require.NoError(t, err)

	repo := newAPIRepo()
	notifier := &apiNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := account.NewService(
		repo,
		account.NewArgon2idHasher(),
		account.NewEmailValidator(nil),
		tokens,
		notifier,
		account.ServiceConfig{Logger: logger},
	)
	require.NoError(t, err)

	handler := httpapi.NewHandler(svc, nil, logger)
	srv := httptest.NewServer(httpapi.NewRouter(handler, tokens, logger))
	t.Cleanup(srv.Close)

	return &testAPI{server: srv, notifier: notifier, repo: repo}
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Meta struct {
		RequestID string `json:"request_id"`
	} `json:"meta"`
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) (int, apiResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	require.Zero(t, len(headers)%2, "headers must come in key/value pairs")
	for i := 0; i < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var parsed apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp.StatusCode, parsed
}

func (a *testAPI) register(t *testing.T, name, email, password string) apiResponse {
	t.Helper()
	status, resp := a.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"name": name, "email": email, "password": password,
	})
	require.Equal(t, http.StatusCreated, status)
	return resp
}

func (a *testAPI) confirm(t *testing.T) {
	t.Helper()
	confirmToken := mailToken(t, a.notifier.last(t).Body)
	status, _ := a.do(t, http.MethodGet, "/api/auth/confirm-email?token="+confirmToken, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestAPI_RegisterConfirmLoginUserInfo(t *testing.T) {
	api := newTestAPI(t)

	resp := api.register(t, "Alice", "alice@finmail.io", "Secret1")
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Meta.RequestID)

	var created struct {
		ID             string `json:"id"`
		Email          string `json:"email"`
		EmailConfirmed bool   `json:"email_confirmed"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "alice@finmail.io", created.Email)
	assert.False(t, created.EmailConfirmed)

	// Login before confirmation is rejected.
	status, errResp := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@finmail.io", "password": "Secret1",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, "AUTH_EMAIL_UNCONFIRMED", errResp.Error.Code)

	api.confirm(t)

	status, loginResp := api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "ALICE@finmail.io", "password": "Secret1",
	})
	require.Equal(t, http.StatusOK, status)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(loginResp.Data, &login))
	require.NotEmpty(t, login.Token)

	status, infoResp := api.do(t, http.MethodGet, "/api/auth/user-info", nil,
		"Authorization", "Bearer "+login.Token)
	require.Equal(t, http.StatusOK, status)
	var info struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	require.NoError(t, json.Unmarshal(infoResp.Data, &info))
	assert.Equal(t, created.ID, info.ID)
	assert.Equal(t, "Alice", info.Name)
	assert.Equal(t, "alice@finmail.io", info.Email)
	assert.Equal(t, account.RoleUser, info.Role)
}

func TestAPI_ForgotResetLogin(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "Bob", "bob@finmail.io", "OldSecret")
	api.confirm(t)

	status, _ := api.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "bob@finmail.io",
	})
	require.Equal(t, http.StatusOK, status)

	resetToken := mailToken(t, api.notifier.last(t).Body)
	status, _ = api.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": resetToken, "password": "NewSecret",
	})
	require.Equal(t, http.StatusOK, status)

	// Old password no longer works, the new one does.
	status, _ = api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "bob@finmail.io", "password": "OldSecret",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = api.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "bob@finmail.io", "password": "NewSecret",
	})
	assert.Equal(t, http.StatusOK, status)

	// The reset token is single use.
	status, errResp := api.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token": resetToken, "password": "AnotherSecret",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, errResp.Error)
	assert.Equal(t, "RESET_TOKEN_INVALID", errResp.Error.Code)
}

func TestAPI_ForgotPasswordMasksUnknownEmail(t *testing.T) {
	api := newTestAPI(t)

	status, resp := api.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{
		"email": "nobody@finmail.io",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, resp.Success)
}

func TestAPI_StatusCodes(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "Carol", "carol@finmail.io", "Secret1")
	api.confirm(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:   "register invalid email",
			method: http.MethodPost, path: "/api/auth/register",
			body:       map[string]string{"name": "X", "email": "not-an-email", "password": "pw"},
			wantStatus: http.StatusBadRequest, wantCode: "ACCOUNT_INVALID_EMAIL",
		},
		{
			name:   "register duplicate email",
			method: http.MethodPost, path: "/api/auth/register",
			body:       map[string]string{"name": "X", "email": "CAROL@finmail.io", "password": "pw"},
			wantStatus: http.StatusConflict, wantCode: "ACCOUNT_EMAIL_TAKEN",
		},
		{
			name:   "register empty password",
			method: http.MethodPost, path: "/api/auth/register",
			body:       map[string]string{"name": "X", "email": "new@finmail.io", "password": ""},
			wantStatus: http.StatusBadRequest, wantCode: "ACCOUNT_INVALID_PASSWORD",
		},
		{
			name:   "login wrong password",
			method: http.MethodPost, path: "/api/auth/login",
			body:       map[string]string{"email": "carol@finmail.io", "password": "wrong"},
			wantStatus: http.StatusUnauthorized, wantCode: "AUTH_INVALID_CREDENTIALS",
		},
		{
			name:   "login unknown email",
			method: http.MethodPost, path: "/api/auth/login",
			body:       map[string]string{"email": "ghost@finmail.io", "password": "wrong"},
			wantStatus: http.StatusUnauthorized, wantCode: "AUTH_INVALID_CREDENTIALS",
		},
		{
			name:   "confirm garbage token",
			method: http.MethodGet, path: "/api/auth/confirm-email?token=garbage",
			wantStatus: http.StatusBadRequest, wantCode: "CONFIRM_TOKEN_INVALID",
		},
		{
			name:   "resend for unknown account",
			method: http.MethodPost, path: "/api/auth/resend-confirmation",
			body:       map[string]string{"email": "ghost@finmail.io"},
			wantStatus: http.StatusNotFound, wantCode: "ACCOUNT_NOT_FOUND",
		},
		{
			name:   "resend for confirmed account",
			method: http.MethodPost, path: "/api/auth/resend-confirmation",
			body:       map[string]string{"email": "carol@finmail.io"},
			wantStatus: http.StatusConflict, wantCode: "ACCOUNT_ALREADY_CONFIRMED",
		},
		{
			name:   "reset with garbage token",
			method: http.MethodPost, path: "/api/auth/reset-password",
			body:       map[string]string{"token": "garbage", "password": "pw"},
			wantStatus: http.StatusBadRequest, wantCode: "RESET_TOKEN_INVALID",
		},
		{
			name:   "unknown endpoint",
			method: http.MethodGet, path: "/api/auth/nope",
			wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND",
		},
		{
			name:   "wrong method",
			method: http.MethodGet, path: "/api/auth/login",
			wantStatus: http.StatusMethodNotAllowed, wantCode: "METHOD_NOT_ALLOWED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := api.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestAPI_MalformedBody(t *testing.T) {
	api := newTestAPI(t)

	req, err := http.NewRequest(http.MethodPost, api.server.URL+"/api/auth/login",
		strings.NewReader("{not json"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := api.server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var parsed apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "BAD_REQUEST", parsed.Error.Code)
}

func TestAPI_UserInfoAuth(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		header []string
	}{
		{name: "missing header"},
		{name: "not a bearer scheme", header: []string{"Authorization", "Basic abc"}},
		{name: "garbage token", header: []string{"Authorization", "Bearer garbage"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := api.do(t, http.MethodGet, "/api/auth/user-info", nil, tt.header...)
			assert.Equal(t, http.StatusUnauthorized, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, "UNAUTHORIZED", resp.Error.Code)
		})
	}
}

// failingNotifier simulates an unreachable mail transport.
type failingNotifier struct{}

func (failingNotifier) Send(context.Context, notify.Message) error {
	return errors.New("smtp connect refused")
}

func TestAPI_InternalErrorsAreOpaque(t *testing.T) {
	tokens, err := token.NewService("test-signing-secret-32-bytes-long", "finman", time.Hour)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := account.NewService(
		newAPIRepo(),
		account.NewArgon2idHasher(),
		account.NewEmailValidator(nil),
		tokens,
		failingNotifier{},
		account.ServiceConfig{Logger: logger},
	)
	require.NoError(t, err)

	srv := httptest.NewServer(httpapi.NewRouter(httpapi.NewHandler(svc, nil, logger), tokens, logger))
	defer srv.Close()

	body, err := json.Marshal(map[string]string{
		"name": "Dave", "email": "dave@finmail.io", "password": "Secret1",
	})
	require.NoError(t, err)

	resp, err := srv.Client().Post(srv.URL+"/api/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var parsed apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "INTERNAL", parsed.Error.Code)
	assert.Equal(t, "internal error", parsed.Error.Message)
}

func TestAPI_ResendConfirmationReissuesToken(t *testing.T) {
	api := newTestAPI(t)

	api.register(t, "Erin", "erin@finmail.io", "Secret1")
	firstToken := mailToken(t, api.notifier.last(t).Body)

	status, _ := api.do(t, http.MethodPost, "/api/auth/resend-confirmation", map[string]string{
		"email": "erin@finmail.io",
	})
	require.Equal(t, http.StatusOK, status)
	secondToken := mailToken(t, api.notifier.last(t).Body)
	require.NotEqual(t, firstToken, secondToken)

	// The superseded link no longer works, the fresh one does.
	status, resp := api.do(t, http.MethodGet, "/api/auth/confirm-email?token="+firstToken, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFIRM_TOKEN_INVALID", resp.Error.Code)

	status, _ = api.do(t, http.MethodGet, "/api/auth/confirm-email?token="+secondToken, nil)
	assert.Equal(t, http.StatusOK, status)
}
