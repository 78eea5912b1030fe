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

func TestMigrate_Help(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"migrate", "--help"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	for _, sub := range []string{"up", "down", "steps", "version", "force"} {
		assert.Contains(t, output, sub, "Help missing %q action", sub)
	}
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("FINMAN_DATABASE__URL", "")
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate", "up"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "CONFIG_DATABASE_URL_MISSING")
}

func TestMigrate_StepsRejectsNonNumeric(t *testing.T) {
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate", "steps", "many"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "MIGRATION_INVALID_STEPS")
}

func TestMigrate_ForceRejectsNonNumeric(t *testing.T) {
	configFile = ""

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"migrate", "force", "latest"})

	err := cmd.Execute()
	errutil.AssertErrorCode(t, err, "MIGRATION_INVALID_VERSION")
}
