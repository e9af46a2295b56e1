/*
 * Copyright 2025 GridPulse, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/devicegate/pkg/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "devicegate.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfigFile(t, `{
		"database": {
			"host": "db.internal",
			"database": "devicegate",
			"username": "gate"
		},
		"identity": {
			"suspicious_threshold": 0.6,
			"strict_mode": true,
			"storage_timeout": "3s"
		}
	}`)

	var cfg models.Config

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.NoError(t, err)

	require.NotNil(t, cfg.Database)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.InDelta(t, 0.6, cfg.Identity.SuspiciousThreshold, 1e-9)
	assert.True(t, cfg.Identity.StrictMode)
	assert.Equal(t, 3*time.Second, time.Duration(cfg.Identity.StorageTimeout))
}

func TestLoadAndValidateMissingFile(t *testing.T) {
	var cfg models.Config

	err := NewConfig(nil).LoadAndValidate(context.Background(), "/nonexistent/devicegate.json", &cfg)
	require.Error(t, err)
}

func TestLoadAndValidateRejectsInvalidJSON(t *testing.T) {
	path := writeConfigFile(t, `{"database": `)

	var cfg models.Config

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.Error(t, err)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	path := writeConfigFile(t, `{"identity": {"suspicious_threshold": 0.5}}`)

	var cfg models.Config

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, models.ErrDatabaseRequired)
}

func TestLoadAndValidateNilDestination(t *testing.T) {
	err := NewConfig(nil).LoadAndValidate(context.Background(), "unused.json", nil)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfigFile(t, `{
		"database": {"host": "db.internal", "database": "devicegate"},
		"identity": {"suspicious_threshold": 0.5}
	}`)

	t.Setenv("FINGERPRINT_ENABLED", "false")
	t.Setenv("SUSPICIOUS_THRESHOLD", "0.8")
	t.Setenv("STRICT_MODE", "on")
	t.Setenv("AUTH_SECRET_KEY", "topsecret")
	t.Setenv("STORAGE_TIMEOUT", "2s")

	var cfg models.Config

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.NoError(t, err)

	require.NotNil(t, cfg.Identity.FingerprintEnabled)
	assert.False(t, *cfg.Identity.FingerprintEnabled)
	assert.InDelta(t, 0.8, cfg.Identity.SuspiciousThreshold, 1e-9)
	assert.True(t, cfg.Identity.StrictMode)
	assert.Equal(t, "topsecret", cfg.Identity.CertificateSecret)
	assert.Equal(t, 2*time.Second, time.Duration(cfg.Identity.StorageTimeout))
}

func TestEnvOverridesIgnoreUnparsableValues(t *testing.T) {
	path := writeConfigFile(t, `{
		"database": {"host": "db.internal", "database": "devicegate"},
		"identity": {"suspicious_threshold": 0.5}
	}`)

	t.Setenv("SUSPICIOUS_THRESHOLD", "not-a-number")
	t.Setenv("STORAGE_TIMEOUT", "soon")

	var cfg models.Config

	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, cfg.Identity.SuspiciousThreshold, 1e-9)
	assert.Zero(t, time.Duration(cfg.Identity.StorageTimeout))
}

func TestParseBool(t *testing.T) {
	for _, truthy := range []string{"true", "TRUE", "1", "yes", "on", " On "} {
		assert.True(t, parseBool(truthy), truthy)
	}

	for _, falsy := range []string{"false", "0", "no", "off", "maybe", ""} {
		assert.False(t, parseBool(falsy), falsy)
	}
}
