// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finman/finman/pkg/errutil"
)

func TestServe_Flags(t *testing.T) {
	cmd := newServeCmd()

	for _, flag := range []string{"http.addr", "metrics.addr", "log.format", "database.url", "auto-migrate"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "missing flag %q", flag)
	}
}

func TestServe_RejectsMissingSecret(t *testing.T) {
	t.Setenv("FINMAN_JWT__SECRET", "")
	t.Setenv("FINMAN_DATABASE__URL", "postgres://localhost/finman")
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "CONFIG_JWT_SECRET_MISSING")
}

func TestServe_RejectsMissingDatabaseURL(t *testing.T) {
	t.Setenv("FINMAN_JWT__SECRET", "test-secret")
	t.Setenv("FINMAN_DATABASE__URL", "")
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "CONFIG_DATABASE_URL_MISSING")
	require.Error(t, err)
}
