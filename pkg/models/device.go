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

import "time"

// AuthorizedDevice is one whitelist entry. MAC addresses are stored
// normalized (upper case, colon separated) and are unique across the table.
// Rows are created by administrative action only, never by ingestion traffic.
type AuthorizedDevice struct {
	MACAddress     string     `json:"mac_address"`
	DeviceName     string     `json:"device_name"`
	UserName       string     `json:"user_name"`
	RegisteredDate time.Time  `json:"registered_date"`
	LastSeen       *time.Time `json:"last_seen,omitempty"`
	IsActive       bool       `json:"is_active"`
	Notes          string     `json:"notes,omitempty"`
}

// HardwareAttributes is the hardware profile reported by an agent. Pointer
// fields distinguish "not reported" from zero values; the canonicalizer
// encodes absent attributes with an explicit sentinel so that fingerprints
// over different attribute sets still hash deterministically.
type HardwareAttributes struct {
	CPUModel          *string `json:"cpu_model,omitempty"`
	CPUCount          *int    `json:"cpu_count,omitempty"`
	TotalMemory       *int64  `json:"total_memory,omitempty"`
	DiskPartitions    *int    `json:"disk_partitions,omitempty"`
	NetworkInterfaces *int    `json:"network_interfaces,omitempty"`
	PlatformMachine   *string `json:"platform_machine,omitempty"`
	PlatformArch      *string `json:"platform_architecture,omitempty"`
}

// Report is the MAC address and hardware attribute set extracted from one
// telemetry submission. It is owned by a single resolver invocation and is
// never shared across concurrent invocations.
type Report struct {
	MACAddress  string             `json:"mac_address"`
	DeviceID    string             `json:"device_id,omitempty"`
	Certificate string             `json:"device_certificate,omitempty"`
	Hardware    HardwareAttributes `json:"hardware"`
}

// DeviceFingerprint is the stored hardware profile for one MAC address.
// There is at most one row per MAC; subsequent observations update the row
// in place. The risk score is re-derived from the current comparison on
// every observation, never accumulated.
type DeviceFingerprint struct {
	MACAddress      string             `json:"mac_address"`
	DeviceID        string             `json:"device_id,omitempty"`
	Hardware        HardwareAttributes `json:"hardware"`
	FingerprintHash string             `json:"fingerprint_hash"`
	RiskScore       float64            `json:"risk_score"`
	IsSuspicious    bool               `json:"is_suspicious"`
	FirstSeen       time.Time          `json:"first_seen"`
	LastSeen        time.Time          `json:"last_seen"`
}
