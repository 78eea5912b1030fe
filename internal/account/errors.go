// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package account

import "errors"

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when an email is already taken by another
// account. The storage-level unique index is the authoritative source of
// this error; lookups before insert are an optimization only.
var ErrDuplicateEmail = errors.New("email already taken")
