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

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gridpulse/devicegate/pkg/models"
)

var errNilMutator = errors.New("fingerprint mutator is nil")

const (
	fingerprintSelection = `
SELECT mac_address, COALESCE(device_id, ''), cpu_model, cpu_count, total_memory,
       disk_partitions, network_interfaces, platform_machine, platform_architecture,
       fingerprint_hash, risk_score, is_suspicious, first_seen, last_seen
FROM device_fingerprints`

	// first_seen is written once; last_seen only moves forward so a retried
	// stale write cannot revert it.
	upsertFingerprintSQL = `
INSERT INTO device_fingerprints (
	mac_address,
	device_id,
	cpu_model,
	cpu_count,
	total_memory,
	disk_partitions,
	network_interfaces,
	platform_machine,
	platform_architecture,
	fingerprint_hash,
	risk_score,
	is_suspicious,
	first_seen,
	last_seen
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
ON CONFLICT (mac_address) DO UPDATE SET
	device_id = EXCLUDED.device_id,
	cpu_model = EXCLUDED.cpu_model,
	cpu_count = EXCLUDED.cpu_count,
	total_memory = EXCLUDED.total_memory,
	disk_partitions = EXCLUDED.disk_partitions,
	network_interfaces = EXCLUDED.network_interfaces,
	platform_machine = EXCLUDED.platform_machine,
	platform_architecture = EXCLUDED.platform_architecture,
	fingerprint_hash = EXCLUDED.fingerprint_hash,
	risk_score = EXCLUDED.risk_score,
	is_suspicious = EXCLUDED.is_suspicious,
	last_seen = GREATEST(device_fingerprints.last_seen, EXCLUDED.last_seen)`
)

// GetFingerprint returns the stored hardware profile for a MAC, or
// ErrFingerprintNotFound when the MAC has never been observed.
func (db *DB) GetFingerprint(ctx context.Context, mac string) (*models.DeviceFingerprint, error) {
	if mac == "" {
		return nil, ErrMACRequired
	}

	row := db.pool.QueryRow(ctx, fingerprintSelection+` WHERE mac_address = $1`, mac)

	fp, err := scanFingerprint(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrFingerprintNotFound, mac)
		}

		return nil, fmt.Errorf("%w: fingerprint: %w", ErrFailedToQuery, err)
	}

	return fp, nil
}

// ListFingerprints pages through stored fingerprints ordered by MAC.
func (db *DB) ListFingerprints(ctx context.Context, limit, offset int) ([]*models.DeviceFingerprint, error) {
	query := fingerprintSelection + `
ORDER BY mac_address ASC
LIMIT $1 OFFSET $2`

	rows, err := db.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list fingerprints: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	fingerprints := make([]*models.DeviceFingerprint, 0)

	for rows.Next() {
		fp, err := scanFingerprint(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: fingerprint: %w", ErrFailedToScan, err)
		}

		fingerprints = append(fingerprints, fp)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list fingerprints: %w", ErrFailedToQuery, err)
	}

	return fingerprints, nil
}

// MutateFingerprint runs fn under a row-level lock for the MAC so that the
// read-compare-write sequence of one report cannot interleave with another
// report for the same MAC. The first-ever insert is race-safe through the
// unique key on mac_address; transient serialization conflicts are retried
// once with freshly read state.
func (db *DB) MutateFingerprint(ctx context.Context, mac string, fn FingerprintMutator) error {
	if mac == "" {
		return ErrMACRequired
	}

	if fn == nil {
		return errNilMutator
	}

	return db.withConflictRetry(ctx, "mutate fingerprint", func(ctx context.Context) error {
		return db.mutateFingerprintOnce(ctx, mac, fn)
	})
}

func (db *DB) mutateFingerprintOnce(ctx context.Context, mac string, fn FingerprintMutator) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin fingerprint mutation: %w", ErrFailedToQuery, err)
	}

	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, fingerprintSelection+` WHERE mac_address = $1 FOR UPDATE`, mac)

	existing, err := scanFingerprint(row)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: locked fingerprint read: %w", ErrFailedToQuery, err)
	}

	updated, err := fn(existing)
	if err != nil {
		return err
	}

	if updated == nil {
		return tx.Commit(ctx)
	}

	if updated.MACAddress == "" {
		updated.MACAddress = mac
	}

	hw := updated.Hardware

	if _, err := tx.Exec(ctx, upsertFingerprintSQL,
		updated.MACAddress,
		updated.DeviceID,
		hw.CPUModel,
		hw.CPUCount,
		hw.TotalMemory,
		hw.DiskPartitions,
		hw.NetworkInterfaces,
		hw.PlatformMachine,
		hw.PlatformArch,
		updated.FingerprintHash,
		updated.RiskScore,
		updated.IsSuspicious,
		updated.FirstSeen.UTC(),
		updated.LastSeen.UTC(),
	); err != nil {
		return fmt.Errorf("%w: fingerprint upsert: %w", ErrFailedToInsert, err)
	}

	return tx.Commit(ctx)
}

func scanFingerprint(row pgx.Row) (*models.DeviceFingerprint, error) {
	fp := &models.DeviceFingerprint{}

	err := row.Scan(
		&fp.MACAddress,
		&fp.DeviceID,
		&fp.Hardware.CPUModel,
		&fp.Hardware.CPUCount,
		&fp.Hardware.TotalMemory,
		&fp.Hardware.DiskPartitions,
		&fp.Hardware.NetworkInterfaces,
		&fp.Hardware.PlatformMachine,
		&fp.Hardware.PlatformArch,
		&fp.FingerprintHash,
		&fp.RiskScore,
		&fp.IsSuspicious,
		&fp.FirstSeen,
		&fp.LastSeen,
	)
	if err != nil {
		return nil, err
	}

	return fp, nil
}
