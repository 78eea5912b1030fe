// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package account

import (
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/finman/finman/internal/token"
)

// CallerIdentity is the authenticated caller, derived exactly once from a
// validated bearer token and passed explicitly to downstream operations.
type CallerIdentity struct {
	AccountID ulid.ULID
	Name      string
	Email     string
	Role      string
}

// IdentityFromClaims builds a CallerIdentity from validated auth claims.
func IdentityFromClaims(claims *token.Claims) (CallerIdentity, error) {
	id, err := ulid.Parse(claims.Subject)
	if err != nil {
		return CallerIdentity{}, oops.Code("AUTH_INVALID_SUBJECT").
			With("subject", claims.Subject).
			Wrap(err)
	}
	return CallerIdentity{
		AccountID: id,
		Name:      claims.Name,
		Email:     claims.Email,
		Role:      claims.Role,
	}, nil
}
