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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	errInvalidDuration = errors.New("invalid duration")

	// ErrDatabaseRequired indicates the config is missing its database section.
	ErrDatabaseRequired = errors.New("database configuration is required")
)

// Duration is a time.Duration that unmarshals from either a JSON number
// (nanoseconds) or a Go duration string such as "5s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// TLSConfig points at the client certificate material used for mTLS to Postgres.
type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// PostgresDatabase describes the connection to the backing Postgres cluster.
type PostgresDatabase struct {
	Host               string            `json:"host"`
	Port               int               `json:"port"`
	Database           string            `json:"database"`
	Username           string            `json:"username"`
	Password           string            `json:"password"`
	SSLMode            string            `json:"ssl_mode"`
	ApplicationName    string            `json:"application_name"`
	MaxConnections     int32             `json:"max_connections"`
	MinConnections     int32             `json:"min_connections"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime"`
	HealthCheckPeriod  Duration          `json:"health_check_period"`
	StatementTimeout   Duration          `json:"statement_timeout"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
	CertDir            string            `json:"cert_dir,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty"`
}

// IdentityConfig holds the knobs for the identity resolver and risk scorer.
type IdentityConfig struct {
	// SuspiciousThreshold is the risk score above which a fingerprint is
	// flagged. Zero means use the default (0.5).
	SuspiciousThreshold float64 `json:"suspicious_threshold"`

	// StrictMode rejects suspicious reports instead of admitting them flagged.
	StrictMode bool `json:"strict_mode"`

	// FingerprintEnabled toggles fingerprint comparison. When false the
	// resolver stops after the whitelist and certificate checks.
	FingerprintEnabled *bool `json:"fingerprint_enabled,omitempty"`

	// CertificateSecret enables HMAC device-certificate verification when
	// non-empty. Agents present hex(hmac_sha256(secret, mac)).
	CertificateSecret string `json:"certificate_secret,omitempty"`

	// StorageTimeout bounds every storage round trip made while resolving
	// one report. Zero means the default (5s).
	StorageTimeout Duration `json:"storage_timeout"`
}

// Config is the top-level devicegate service configuration.
type Config struct {
	Database *PostgresDatabase `json:"database"`
	Identity IdentityConfig    `json:"identity"`
	Logging  *LoggerConfig     `json:"logging,omitempty"`
}

// LoggerConfig mirrors logger.Config so the logging section can be embedded
// in the service config file without an import cycle.
type LoggerConfig struct {
	Level      string `json:"level"`
	Debug      bool   `json:"debug"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// Validate implements config.Validator.
func (c *Config) Validate() error {
	if c.Database == nil {
		return ErrDatabaseRequired
	}

	if c.Identity.SuspiciousThreshold < 0 || c.Identity.SuspiciousThreshold > 1 {
		return fmt.Errorf("identity.suspicious_threshold must be in [0,1], got %v",
			c.Identity.SuspiciousThreshold)
	}

	return nil
}
