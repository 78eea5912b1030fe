// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/finman/finman/internal/notify"
	"github.com/finman/finman/internal/token"
)

// Default lifecycle parameters.
const (
	DefaultConfirmTokenTTL = 60 * time.Minute
	DefaultResetTokenTTL   = 30 * time.Minute
	DefaultNotifyTimeout   = 10 * time.Second
	DefaultFrontendBaseURL = "http://localhost:5173"
)

// TokenService issues and validates the signed tokens the workflow needs.
// Satisfied by *token.Service.
type TokenService interface {
	IssueAuthToken(accountID, name, email, role string) (string, error)
	IssueActionToken(email, purpose string, ttl time.Duration) (string, error)
	ValidateAction(tokenString, purpose string) (*token.Claims, error)
}

// ServiceConfig carries the tunable policy for the workflow service.
// Zero values fall back to the package defaults.
type ServiceConfig struct {
	FrontendBaseURL string
	ConfirmTokenTTL time.Duration
	ResetTokenTTL   time.Duration

	// NotifyTimeout bounds the synchronous wait on outbound notification so
	// a slow mail transport cannot stall the request.
	NotifyTimeout time.Duration

	Logger *slog.Logger
}

func (c *ServiceConfig) applyDefaults() {
	if c.FrontendBaseURL == "" {
		c.FrontendBaseURL = DefaultFrontendBaseURL
	}
	c.FrontendBaseURL = strings.TrimRight(c.FrontendBaseURL, "/")
	if c.ConfirmTokenTTL <= 0 {
		c.ConfirmTokenTTL = DefaultConfirmTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = DefaultResetTokenTTL
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service orchestrates registration, email confirmation, login, and the
// password-reset sub-flow.
type Service struct {
	accounts Repository
	hasher   PasswordHasher
	emails   *EmailValidator
	tokens   TokenService
	notifier notify.Notifier
	cfg      ServiceConfig
}

// NewService creates the workflow service. All collaborators are required.
func NewService(
	accounts Repository,
	hasher PasswordHasher,
	emails *EmailValidator,
	tokens TokenService,
	notifier notify.Notifier,
	cfg ServiceConfig,
) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("account repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("password hasher is required")
	}
	if emails == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("email validator is required")
	}
	if tokens == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("token service is required")
	}
	if notifier == nil {
		return nil, oops.Code("SERVICE_CONFIG_INVALID").Errorf("notifier is required")
	}
	cfg.applyDefaults()
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		emails:   emails,
		tokens:   tokens,
		notifier: notifier,
		cfg:      cfg,
	}, nil
}

// Register creates an unconfirmed account and sends a confirmation link.
// No session token is returned; the caller must confirm before logging in.
func (s *Service) Register(ctx context.Context, name, email, password string) (*Account, error) {
	email = NormalizeEmail(email)
	if err := s.checkEmail(ctx, email); err != nil {
		return nil, err
	}

	// Pre-check is an optimization; the unique index is authoritative.
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return nil, oops.Code("ACCOUNT_EMAIL_TAKEN").
			With("email", email).
			Wrap(ErrDuplicateEmail)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	acct, err := NewAccount(name, email, passwordHash)
	if err != nil {
		return nil, err
	}

	confirmToken, err := s.stampActionToken(acct, token.PurposeEmailConfirmation, s.cfg.ConfirmTokenTTL)
	if err != nil {
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "issue confirmation token").
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", email).
				Wrap(err)
		}
		return nil, oops.Code("REGISTER_FAILED").
			With("operation", "create account").
			Wrap(err)
	}

	if err := s.sendConfirmationLink(ctx, acct, confirmToken); err != nil {
		return nil, err
	}

	return acct, nil
}

// ConfirmEmail consumes a confirmation token and marks the account
// confirmed. A consumed or never-issued token fails exactly like a bad one.
func (s *Service) ConfirmEmail(ctx context.Context, tokenString string) error {
	if tokenString == "" {
		return oops.Code("CONFIRM_TOKEN_INVALID").Errorf("confirmation token cannot be empty")
	}

	// Not Wrap: a wrapped oops error would surface its own code instead of
	// CONFIRM_TOKEN_INVALID, turning a bad token into an internal error at
	// the transport layer.
	if _, err := s.tokens.ValidateAction(tokenString, token.PurposeEmailConfirmation); err != nil {
		return oops.Code("CONFIRM_TOKEN_INVALID").
			With("reason", err.Error()).
			Errorf("confirmation token rejected")
	}

	tokenHash := token.Hash(tokenString)
	acct, err := s.accounts.GetByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("CONFIRM_TOKEN_INVALID").Errorf("confirmation token not found")
		}
		return oops.Code("CONFIRM_FAILED").
			With("operation", "get account by token hash").
			Wrap(err)
	}

	if !acct.HasValidActionToken(tokenHash) {
		return oops.Code("CONFIRM_TOKEN_INVALID").Errorf("confirmation token expired")
	}

	acct.MarkEmailConfirmed()
	if err := s.accounts.Update(ctx, acct); err != nil {
		return oops.Code("CONFIRM_FAILED").
			With("operation", "update account").
			Wrap(err)
	}
	return nil
}

// ResendConfirmation issues a fresh confirmation token for an unconfirmed
// account, invalidating any prior one.
func (s *Service) ResendConfirmation(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("ACCOUNT_NOT_FOUND").
				With("email", email).
				Wrap(err)
		}
		return oops.Code("RESEND_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	if acct.EmailConfirmed {
		return oops.Code("ACCOUNT_ALREADY_CONFIRMED").Errorf("email is already confirmed")
	}

	confirmToken, err := s.stampActionToken(acct, token.PurposeEmailConfirmation, s.cfg.ConfirmTokenTTL)
	if err != nil {
		return oops.Code("RESEND_FAILED").
			With("operation", "issue confirmation token").
			Wrap(err)
	}
	if err := s.accounts.Update(ctx, acct); err != nil {
		return oops.Code("RESEND_FAILED").
			With("operation", "update account").
			Wrap(err)
	}

	return s.sendConfirmationLink(ctx, acct, confirmToken)
}

// Login verifies credentials and returns a signed auth token.
// Unknown-email and wrong-password failures are indistinguishable, and an
// unknown email still pays for a hash verification so response timing does
// not betray account existence.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email = NormalizeEmail(email)

	acct, lookupErr := s.accounts.GetByEmail(ctx, email)

	targetHash := DummyPasswordHash
	accountExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get account by email").
				Wrap(lookupErr)
		}
	} else {
		targetHash = acct.PasswordHash
		accountExists = true
	}

	valid := s.hasher.Verify(password, targetHash)

	if !accountExists || !valid {
		if accountExists {
			acct.RecordFailure()
			s.bestEffortUpdate(ctx, acct, "record login failure")
		}
		return "", oops.Code("AUTH_INVALID_CREDENTIALS").Errorf("invalid email or password")
	}

	// Checked after verification to keep response time uniform.
	if acct.IsLocked() {
		return "", oops.Code("AUTH_ACCOUNT_LOCKED").
			With("locked_until", acct.LockedUntil).
			Errorf("account is temporarily locked")
	}

	if !acct.EmailConfirmed {
		return "", oops.Code("AUTH_EMAIL_UNCONFIRMED").Errorf("email address is not confirmed")
	}

	acct.RecordSuccess()

	if s.hasher.NeedsUpgrade(acct.PasswordHash) {
		if newHash, hashErr := s.hasher.Hash(password); hashErr == nil {
			acct.PasswordHash = newHash
		}
	}

	// Login succeeds even if persisting the reset counter fails.
	s.bestEffortUpdate(ctx, acct, "record login success")

	authToken, err := s.tokens.IssueAuthToken(acct.ID.String(), acct.Name, acct.Email, acct.Role)
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue auth token").
			Wrap(err)
	}
	return authToken, nil
}

func (s *Service) checkEmail(ctx context.Context, email string) error {
	if !s.emails.IsValidFormat(email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Errorf("email address is not valid")
	}
	if !s.emails.HasAcceptableDomain(ctx, email) {
		return oops.Code("ACCOUNT_INVALID_EMAIL").
			With("email", email).
			Errorf("email domain is not accepted")
	}
	return nil
}

// stampActionToken issues a single-purpose token for the account's email and
// records its hash and expiry on the account, invalidating any prior token.
func (s *Service) stampActionToken(acct *Account, purpose string, ttl time.Duration) (string, error) {
	actionToken, err := s.tokens.IssueActionToken(acct.Email, purpose, ttl)
	if err != nil {
		return "", err
	}
	acct.SetActionToken(token.Hash(actionToken), time.Now().Add(ttl))
	return actionToken, nil
}

func (s *Service) sendConfirmationLink(ctx context.Context, acct *Account, confirmToken string) error {
	link := fmt.Sprintf("%s/confirm-email?token=%s", s.cfg.FrontendBaseURL, url.QueryEscape(confirmToken))
	return s.send(ctx, acct.Email, "Confirm your email",
		fmt.Sprintf("Welcome, %s! Confirm your email address by visiting:\n\n%s\n\nThe link expires in %s.",
			acct.Name, link, s.cfg.ConfirmTokenTTL))
}

// send delivers a notification under the configured bounded wait.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.notifier.Send(sendCtx, notify.Message{To: to, Subject: subject, Body: body}); err != nil {
		return oops.Code("NOTIFY_FAILED").
			With("to", to).
			With("subject", subject).
			Wrap(err)
	}
	return nil
}

// bestEffortUpdate persists account mutations whose failure must not fail
// the caller's operation. Failures are logged, never returned.
func (s *Service) bestEffortUpdate(ctx context.Context, acct *Account, op string) {
	if err := s.accounts.Update(ctx, acct); err != nil {
		s.cfg.Logger.WarnContext(ctx, "best-effort account update failed",
			"operation", op,
			"account_id", acct.ID.String(),
			"error", err.Error(),
		)
	}
}
