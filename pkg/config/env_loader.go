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
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gridpulse/devicegate/pkg/logger"
	"github.com/gridpulse/devicegate/pkg/models"
)

// Environment variables recognized as overrides for the identity section.
// These take precedence over the config file so operators can tune the
// decision policy without redeploying configuration.
const (
	envFingerprintEnabled  = "FINGERPRINT_ENABLED"
	envSuspiciousThreshold = "SUSPICIOUS_THRESHOLD"
	envStrictMode          = "STRICT_MODE"
	envCertificateSecret   = "AUTH_SECRET_KEY"
	envStorageTimeout      = "STORAGE_TIMEOUT"
)

func applyEnvOverrides(dst interface{}, log logger.Logger) {
	cfg, ok := dst.(*models.Config)
	if !ok {
		return
	}

	if raw := os.Getenv(envFingerprintEnabled); raw != "" {
		enabled := parseBool(raw)
		cfg.Identity.FingerprintEnabled = &enabled

		log.Debug().Bool("enabled", enabled).Msg("fingerprint check overridden from environment")
	}

	if raw := os.Getenv(envSuspiciousThreshold); raw != "" {
		if threshold, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Identity.SuspiciousThreshold = threshold
		} else {
			log.Warn().Str("value", raw).Msg("ignoring unparsable SUSPICIOUS_THRESHOLD")
		}
	}

	if raw := os.Getenv(envStrictMode); raw != "" {
		cfg.Identity.StrictMode = parseBool(raw)
	}

	if raw := os.Getenv(envCertificateSecret); raw != "" {
		cfg.Identity.CertificateSecret = raw
	}

	if raw := os.Getenv(envStorageTimeout); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.Identity.StorageTimeout = models.Duration(d)
		} else {
			log.Warn().Str("value", raw).Msg("ignoring unparsable STORAGE_TIMEOUT")
		}
	}
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}
