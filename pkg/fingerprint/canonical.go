// Package fingerprint canonicalizes reported hardware attributes into a
// deterministic form, derives a stable hash from it, and scores divergence
// between a new profile and the stored baseline for a MAC address.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/gridpulse/devicegate/pkg/models"
)

// AbsentSentinel encodes an attribute the agent did not report. Absent
// attributes are never omitted from the canonical form so that two
// fingerprints with different sets of known attributes still hash
// deterministically and remain comparable field by field.
const AbsentSentinel = "__absent__"

// Canonical attribute names, matching the persisted column names.
const (
	FieldCPUModel          = "cpu_model"
	FieldCPUCount          = "cpu_count"
	FieldTotalMemory       = "total_memory"
	FieldDiskPartitions    = "disk_partitions"
	FieldNetworkInterfaces = "network_interfaces"
	FieldPlatformMachine   = "platform_machine"
	FieldPlatformArch      = "platform_architecture"
)

// Fields lists every canonical attribute. Hashing iterates them in sorted
// order, so the digest is invariant to the order attributes arrived in.
var Fields = []string{
	FieldCPUModel,
	FieldCPUCount,
	FieldTotalMemory,
	FieldDiskPartitions,
	FieldNetworkInterfaces,
	FieldPlatformMachine,
	FieldPlatformArch,
}

// CanonicalForm maps every canonical attribute name to its normalized value.
// Every key in Fields is always present.
type CanonicalForm map[string]string

// Canonicalize normalizes a hardware attribute set: strings are lower-cased
// and trimmed, numeric values are preserved exactly (drift detection relies
// on small deltas), and missing attributes become the absent sentinel.
func Canonicalize(attrs models.HardwareAttributes) CanonicalForm {
	form := make(CanonicalForm, len(Fields))

	form[FieldCPUModel] = canonicalString(attrs.CPUModel)
	form[FieldCPUCount] = canonicalInt(attrs.CPUCount)
	form[FieldTotalMemory] = canonicalInt64(attrs.TotalMemory)
	form[FieldDiskPartitions] = canonicalInt(attrs.DiskPartitions)
	form[FieldNetworkInterfaces] = canonicalInt(attrs.NetworkInterfaces)
	form[FieldPlatformMachine] = canonicalString(attrs.PlatformMachine)
	form[FieldPlatformArch] = canonicalString(attrs.PlatformArch)

	return form
}

// Hash derives the fingerprint hash: SHA-256 over the sorted field names and
// values with separator bytes, hex encoded. Stable across process restarts.
func (c CanonicalForm) Hash() string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	h := sha256.New()

	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(c[k]))
		h.Write([]byte{0xff})
	}

	return hex.EncodeToString(h.Sum(nil))
}

func canonicalString(v *string) string {
	if v == nil {
		return AbsentSentinel
	}

	trimmed := strings.ToLower(strings.TrimSpace(*v))
	if trimmed == "" {
		return AbsentSentinel
	}

	return trimmed
}

func canonicalInt(v *int) string {
	if v == nil {
		return AbsentSentinel
	}

	return strconv.Itoa(*v)
}

func canonicalInt64(v *int64) string {
	if v == nil {
		return AbsentSentinel
	}

	return strconv.FormatInt(*v, 10)
}
