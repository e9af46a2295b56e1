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

import "errors"

var (

	// Core database errors.

	ErrFailedOpenDB   = errors.New("failed to open database")
	ErrFailedToQuery  = errors.New("failed to query")
	ErrFailedToScan   = errors.New("failed to scan")
	ErrFailedToInsert = errors.New("failed to insert")
	ErrFailedToInit   = errors.New("failed to initialize schema")

	// Not-found conditions. These are expected outcomes, not faults:
	// callers branch on them rather than propagating.

	ErrDeviceNotFound      = errors.New("authorized device not found")
	ErrFingerprintNotFound = errors.New("device fingerprint not found")

	// Validation errors.

	ErrMACRequired    = errors.New("mac address is required")
	ErrDeviceNil      = errors.New("authorized device is nil")
	ErrFingerprintNil = errors.New("device fingerprint is nil")

	// TLS helpers.

	ErrLackingTLSFiles = errors.New("postgres tls requires cert_file, key_file, and ca_file")
	ErrAppendCACert    = errors.New("postgres tls: unable to append CA certificate")
)
