// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/finman/finman/internal/account"
	"github.com/finman/finman/internal/observability"
)

const maxBodyBytes = 1 << 20

// Handler serves the authentication endpoints.
type Handler struct {
	accounts *account.Service
	metrics  *observability.AuthMetrics
	logger   *slog.Logger
}

// NewHandler creates the authentication handler. metrics may be nil, in which
// case no counters are recorded.
func NewHandler(accounts *account.Service, metrics *observability.AuthMetrics, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{accounts: accounts, metrics: metrics, logger: logger}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accountResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	EmailConfirmed bool   `json:"email_confirmed"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	acct, err := h.accounts.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.countRegistration("failure")
		writeError(w, r, h.logger, err)
		return
	}

	h.countRegistration("success")
	h.countToken("confirmation")
	writeJSON(w, r, http.StatusCreated, accountResponse{
		ID:             acct.ID.String(),
		Name:           acct.Name,
		Email:          acct.Email,
		Role:           acct.Role,
		EmailConfirmed: acct.EmailConfirmed,
	})
}

// ConfirmEmail handles GET /api/auth/confirm-email?token=...
func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.ConfirmEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"confirmed": true})
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendConfirmation handles POST /api/auth/resend-confirmation.
func (h *Handler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResendConfirmation(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.countToken("confirmation")
	writeJSON(w, r, http.StatusOK, map[string]bool{"sent": true})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	authToken, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.countLogin("failure")
		writeError(w, r, h.logger, err)
		return
	}

	h.countLogin("success")
	h.countToken("auth")
	writeJSON(w, r, http.StatusOK, map[string]string{"token": authToken})
}

// ForgotPassword handles POST /api/auth/forgot-password. Unknown addresses
// get the same success response as known ones.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"sent": true})
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.accounts.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]bool{"reset": true})
}

type userInfoResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserInfo handles GET /api/auth/user-info. Requires RequireAuth upstream.
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFrom(r.Context())
	if !ok {
		writeErrorCode(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	writeJSON(w, r, http.StatusOK, userInfoResponse{
		ID:    identity.AccountID.String(),
		Name:  identity.Name,
		Email: identity.Email,
		Role:  identity.Role,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorCode(w, r, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return false
	}
	return true
}

func (h *Handler) countLogin(status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) countRegistration(status string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) countToken(kind string) {
	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.WithLabelValues(kind).Inc()
	}
}
