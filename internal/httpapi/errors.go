// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/finman/finman/pkg/errutil"
)

// codeStatus maps domain error codes to HTTP statuses. Codes absent from the
// table are treated as internal failures and surface an opaque 500 so wrapped
// driver errors never leak to clients.
var codeStatus = map[string]int{
	"ACCOUNT_INVALID_NAME":      http.StatusBadRequest,
	"ACCOUNT_INVALID_PASSWORD":  http.StatusBadRequest,
	"ACCOUNT_INVALID_EMAIL":     http.StatusBadRequest,
	"ACCOUNT_INVALID_ID":        http.StatusBadRequest,
	"CONFIRM_TOKEN_INVALID":     http.StatusBadRequest,
	"RESET_TOKEN_INVALID":       http.StatusBadRequest,
	"AUTH_INVALID_CREDENTIALS":  http.StatusUnauthorized,
	"AUTH_EMAIL_UNCONFIRMED":    http.StatusUnauthorized,
	"AUTH_ACCOUNT_LOCKED":       http.StatusUnauthorized,
	"AUTH_INVALID_SUBJECT":      http.StatusUnauthorized,
	"ACCOUNT_NOT_FOUND":         http.StatusNotFound,
	"ACCOUNT_EMAIL_TAKEN":       http.StatusConflict,
	"ACCOUNT_ALREADY_CONFIRMED": http.StatusConflict,
}

// codeMessage holds client-safe messages. The underlying error text stays in
// the server log only.
var codeMessage = map[string]string{
	"ACCOUNT_INVALID_NAME":      "invalid account name",
	"ACCOUNT_INVALID_PASSWORD":  "invalid password",
	"ACCOUNT_INVALID_EMAIL":     "invalid email address",
	"ACCOUNT_INVALID_ID":        "invalid account id",
	"CONFIRM_TOKEN_INVALID":     "invalid or expired confirmation token",
	"RESET_TOKEN_INVALID":       "invalid or expired reset token",
	"AUTH_INVALID_CREDENTIALS":  "invalid email or password",
	"AUTH_EMAIL_UNCONFIRMED":    "email address not confirmed",
	"AUTH_ACCOUNT_LOCKED":       "account temporarily locked",
	"AUTH_INVALID_SUBJECT":      "invalid token subject",
	"ACCOUNT_NOT_FOUND":         "account not found",
	"ACCOUNT_EMAIL_TAKEN":       "email address already registered",
	"ACCOUNT_ALREADY_CONFIRMED": "email address already confirmed",
}

// writeError translates a domain error into the JSON error envelope.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	status, ok := codeStatus[code]
	if !ok {
		errutil.LogError(logger, "request failed", err)
		writeErrorCode(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeErrorCode(w, r, status, code, codeMessage[code])
}
