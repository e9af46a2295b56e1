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

// Package db persists the device whitelist and fingerprint baseline in
// Postgres via pgx.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridpulse/devicegate/pkg/logger"
	"github.com/gridpulse/devicegate/pkg/models"
)

// FingerprintMutator receives the currently stored fingerprint for a MAC
// (nil when the MAC has never been observed) and returns the row to persist.
// Returning nil with a nil error leaves the stored state untouched.
type FingerprintMutator func(existing *models.DeviceFingerprint) (*models.DeviceFingerprint, error)

// Service is the storage contract consumed by the whitelist registry and
// the identity resolver.
type Service interface {
	// Whitelist (authorized_devices).

	GetAuthorizedDevice(ctx context.Context, mac string) (*models.AuthorizedDevice, error)
	UpsertAuthorizedDevice(ctx context.Context, device *models.AuthorizedDevice) error
	DeactivateAuthorizedDevice(ctx context.Context, mac string) (bool, error)
	ListAuthorizedDevices(ctx context.Context, activeOnly bool) ([]*models.AuthorizedDevice, error)
	TouchDeviceLastSeen(ctx context.Context, mac string, when time.Time) error

	// Fingerprint baseline (device_fingerprints).

	GetFingerprint(ctx context.Context, mac string) (*models.DeviceFingerprint, error)
	ListFingerprints(ctx context.Context, limit, offset int) ([]*models.DeviceFingerprint, error)

	// MutateFingerprint serializes a read-compare-write sequence per MAC:
	// it holds a row-level lock on the stored fingerprint for the duration
	// of the mutator and persists the result in the same transaction.
	MutateFingerprint(ctx context.Context, mac string, fn FingerprintMutator) error

	Close()
}

// DB implements Service on a pgx connection pool.
type DB struct {
	pool   *pgxpool.Pool
	logger logger.Logger
}

// New connects to Postgres, applies schema migrations, and returns the
// storage service.
func New(ctx context.Context, cfg *models.PostgresDatabase, log logger.Logger) (Service, error) {
	pool, err := NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	if pool == nil {
		return nil, fmt.Errorf("%w: no database configured", ErrFailedOpenDB)
	}

	if err := RunMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	return NewWithPool(pool, log), nil
}

// NewWithPool wraps an existing pool. Used by tests and by callers that
// manage migrations themselves.
func NewWithPool(pool *pgxpool.Pool, log logger.Logger) *DB {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &DB{pool: pool, logger: log}
}

func (db *DB) Close() {
	db.pool.Close()
}
