// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Finman Contributors

package logging_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finman/finman/internal/logging"
)

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("finman", "1.2.3", "json", &buf)

	logger.Info("hello", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "finman", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.Equal(t, "value", entry["key"])
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("finman", "dev", "text", &buf)

	logger.Info("hello")

	out := buf.String()
	assert.True(t, strings.Contains(out, "service=finman"))
	assert.True(t, strings.Contains(out, "version=dev"))
}

func TestSetup_DefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("finman", "dev", "", &buf)

	logger.Info("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
}

func TestSetup_WithAttrsPreservesService(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.Setup("finman", "dev", "json", &buf)

	logger.With("component", "auth").Info("attached")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "auth", entry["component"])
	assert.Equal(t, "finman", entry["service"])
}
