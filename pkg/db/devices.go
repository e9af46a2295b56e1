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
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gridpulse/devicegate/pkg/models"
)

const (
	authorizedDeviceSelection = `
SELECT mac_address, device_name, user_name, registered_date, last_seen, is_active, COALESCE(notes, '')
FROM authorized_devices`

	upsertAuthorizedDeviceSQL = `
INSERT INTO authorized_devices (
	mac_address,
	device_name,
	user_name,
	registered_date,
	last_seen,
	is_active,
	notes
) VALUES (
	$1,$2,$3,$4,$5,$6,NULLIF($7,'')
)
ON CONFLICT (mac_address) DO UPDATE SET
	device_name = EXCLUDED.device_name,
	user_name = EXCLUDED.user_name,
	registered_date = EXCLUDED.registered_date,
	is_active = EXCLUDED.is_active,
	notes = EXCLUDED.notes`

	deactivateAuthorizedDeviceSQL = `
UPDATE authorized_devices SET is_active = FALSE WHERE mac_address = $1`

	// last_seen only ever moves forward; a stale concurrent touch must not
	// revert it.
	touchDeviceLastSeenSQL = `
UPDATE authorized_devices
SET last_seen = $2
WHERE mac_address = $1
  AND (last_seen IS NULL OR last_seen < $2)`
)

// GetAuthorizedDevice returns the whitelist entry for a normalized MAC.
// Absence is reported as ErrDeviceNotFound and is an expected outcome.
func (db *DB) GetAuthorizedDevice(ctx context.Context, mac string) (*models.AuthorizedDevice, error) {
	if mac == "" {
		return nil, ErrMACRequired
	}

	row := db.pool.QueryRow(ctx, authorizedDeviceSelection+` WHERE mac_address = $1`, mac)

	device, err := scanAuthorizedDevice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, mac)
		}

		return nil, fmt.Errorf("%w: authorized device: %w", ErrFailedToQuery, err)
	}

	return device, nil
}

// UpsertAuthorizedDevice inserts or overwrites a whitelist entry.
func (db *DB) UpsertAuthorizedDevice(ctx context.Context, device *models.AuthorizedDevice) error {
	if device == nil {
		return ErrDeviceNil
	}

	if device.MACAddress == "" {
		return ErrMACRequired
	}

	registered := device.RegisteredDate
	if registered.IsZero() {
		registered = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx, upsertAuthorizedDeviceSQL,
		device.MACAddress,
		device.DeviceName,
		device.UserName,
		registered,
		device.LastSeen,
		device.IsActive,
		device.Notes,
	)
	if err != nil {
		return fmt.Errorf("%w: authorized device: %w", ErrFailedToInsert, err)
	}

	return nil
}

// DeactivateAuthorizedDevice marks a whitelist entry inactive. It reports
// whether a row was affected.
func (db *DB) DeactivateAuthorizedDevice(ctx context.Context, mac string) (bool, error) {
	if mac == "" {
		return false, ErrMACRequired
	}

	tag, err := db.pool.Exec(ctx, deactivateAuthorizedDeviceSQL, mac)
	if err != nil {
		return false, fmt.Errorf("%w: deactivate device: %w", ErrFailedToQuery, err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListAuthorizedDevices returns whitelist entries, optionally only active ones.
func (db *DB) ListAuthorizedDevices(ctx context.Context, activeOnly bool) ([]*models.AuthorizedDevice, error) {
	query := authorizedDeviceSelection
	if activeOnly {
		query += ` WHERE is_active`
	}

	query += ` ORDER BY mac_address ASC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list authorized devices: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	devices := make([]*models.AuthorizedDevice, 0)

	for rows.Next() {
		device, err := scanAuthorizedDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: authorized device: %w", ErrFailedToScan, err)
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list authorized devices: %w", ErrFailedToQuery, err)
	}

	return devices, nil
}

// TouchDeviceLastSeen advances the whitelist entry's last-seen timestamp.
func (db *DB) TouchDeviceLastSeen(ctx context.Context, mac string, when time.Time) error {
	if mac == "" {
		return ErrMACRequired
	}

	if _, err := db.pool.Exec(ctx, touchDeviceLastSeenSQL, mac, when.UTC()); err != nil {
		return fmt.Errorf("%w: touch last seen: %w", ErrFailedToQuery, err)
	}

	return nil
}

func scanAuthorizedDevice(row pgx.Row) (*models.AuthorizedDevice, error) {
	device := &models.AuthorizedDevice{}

	err := row.Scan(
		&device.MACAddress,
		&device.DeviceName,
		&device.UserName,
		&device.RegisteredDate,
		&device.LastSeen,
		&device.IsActive,
		&device.Notes,
	)
	if err != nil {
		return nil, err
	}

	return device, nil
}
