// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/finman/finman/internal/token"
)

// ForgotPassword starts the password-reset sub-flow. An unknown email
// returns success with no side effects, so the endpoint cannot be used to
// probe which addresses have accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if !s.emails.IsValidFormat(email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Errorf("email address is not valid")
	}

	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Masked: respond exactly as if the mail went out.
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	resetToken, err := s.stampActionToken(acct, token.PurposePasswordReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "issue reset token").
			Wrap(err)
	}
	if err := s.accounts.Update(ctx, acct); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "update account").
			Wrap(err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.FrontendBaseURL, url.QueryEscape(resetToken))
	return s.send(ctx, acct.Email, "Reset your password",
		fmt.Sprintf("A password reset was requested for your account. Set a new password by visiting:\n\n%s\n\nThe link expires in %s. If you did not request this, ignore this message.",
			link, s.cfg.ResetTokenTTL))
}

// ResetPassword consumes a reset token and overwrites the password.
// The token is cross-checked against the hash stored on the account, so it
// is single-use: a second attempt with the same token fails.
func (s *Service) ResetPassword(ctx context.Context, tokenString, newPassword string) error {
	if tokenString == "" {
		return oops.Code("RESET_TOKEN_INVALID").Errorf("reset token cannot be empty")
	}
	if newPassword == "" {
		return ErrEmptyPassword
	}

	// Not Wrap: a wrapped oops error would surface its own code instead of
	// RESET_TOKEN_INVALID, turning a bad token into an internal error at the
	// transport layer.
	if _, err := s.tokens.ValidateAction(tokenString, token.PurposePasswordReset); err != nil {
		return oops.Code("RESET_TOKEN_INVALID").
			With("reason", err.Error()).
			Errorf("reset token rejected")
	}

	tokenHash := token.Hash(tokenString)
	acct, err := s.accounts.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Errorf("reset token not found")
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get account by token hash").
			Wrap(err)
	}

	if !acct.HasValidActionToken(tokenHash) {
		return oops.Code("RESET_TOKEN_INVALID").Errorf("reset token expired")
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	acct.PasswordHash = passwordHash
	acct.ClearActionToken()
	acct.RecordSuccess()
	acct.UpdatedAt = time.Now()

	if err := s.accounts.Update(ctx, acct); err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "update account").
			Wrap(err)
	}
	return nil
}
