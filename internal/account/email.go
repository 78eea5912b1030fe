// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package account

import (
	"context"
	"net"
	"net/mail"
	"strings"
)

// defaultBlockedKeywords are substrings of throwaway or placeholder domains
// that should never receive confirmation mail.
var defaultBlockedKeywords = []string{
	"example.com",
	"example.org",
	"mailinator",
	"test.com",
	"invalid",
	"localhost",
}

// DomainChecker decides whether an email's domain can plausibly receive
// mail. Implementations may consult DNS or always accept.
type DomainChecker interface {
	CheckDomain(ctx context.Context, domain string) bool
}

// AllowAllChecker accepts every domain. It is the default policy stub;
// swap in MXChecker for real DNS verification.
type AllowAllChecker struct{}

// CheckDomain always reports true.
func (AllowAllChecker) CheckDomain(context.Context, string) bool { return true }

// MXChecker verifies that a domain publishes at least one MX record.
type MXChecker struct {
	Resolver *net.Resolver
}

// CheckDomain reports whether the domain has an MX record. Lookup failures
// report false; the caller decides whether that blocks the address.
func (c MXChecker) CheckDomain(ctx context.Context, domain string) bool {
	r := c.Resolver
	if r == nil {
		r = net.DefaultResolver
	}
	records, err := r.LookupMX(ctx, domain)
	return err == nil && len(records) > 0
}

// EmailValidator checks addresses before they are persisted or mailed to.
type EmailValidator struct {
	blockedKeywords []string
	checker         DomainChecker
}

// NewEmailValidator creates a validator with the default keyword blocklist.
// A nil checker accepts every domain.
func NewEmailValidator(checker DomainChecker) *EmailValidator {
	if checker == nil {
		checker = AllowAllChecker{}
	}
	return &EmailValidator{
		blockedKeywords: defaultBlockedKeywords,
		checker:         checker,
	}
}

// WithBlockedKeywords replaces the domain keyword blocklist.
func (v *EmailValidator) WithBlockedKeywords(keywords []string) *EmailValidator {
	v.blockedKeywords = keywords
	return v
}

// IsValidFormat reports whether the address is syntactically plausible.
// Empty or whitespace-only input, display-name forms like "Alice <a@b.com>",
// and addresses without a dot-separated domain are rejected.
func (v *EmailValidator) IsValidFormat(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	// ParseAddress accepts display names and comments; only the bare
	// addr-spec is a valid account email.
	if addr.Address != email {
		return false
	}
	// ParseAddress accepts "a@b"; require a dot-separated domain as well.
	at := strings.LastIndex(addr.Address, "@")
	if at <= 0 || at == len(addr.Address)-1 {
		return false
	}
	domain := addr.Address[at+1:]
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return true
}

// HasAcceptableDomain reports whether the address's domain passes the
// keyword blocklist and the configured domain checker.
func (v *EmailValidator) HasAcceptableDomain(ctx context.Context, email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, kw := range v.blockedKeywords {
		if strings.Contains(domain, kw) {
			return false
		}
	}
	return v.checker.CheckDomain(ctx, domain)
}
