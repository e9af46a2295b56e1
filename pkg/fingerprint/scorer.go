package fingerprint

import "github.com/gridpulse/devicegate/pkg/models"

// DefaultSuspiciousThreshold is the risk score above which a profile change
// is flagged when no threshold is configured.
const DefaultSuspiciousThreshold = 0.5

// attributeWeights is the fixed per-attribute divergence weight table.
// Weights sum to 1.0. Identity-defining attributes (CPU model, platform
// architecture) weigh more than volatile ones (memory, disk count), so a
// RAM upgrade scores low while a CPU swap scores high.
var attributeWeights = map[string]float64{
	FieldCPUModel:          0.30,
	FieldPlatformArch:      0.20,
	FieldPlatformMachine:   0.15,
	FieldCPUCount:          0.15,
	FieldTotalMemory:       0.10,
	FieldDiskPartitions:    0.05,
	FieldNetworkInterfaces: 0.05,
}

// identityDefining marks the attributes whose simultaneous change is treated
// as cloning or spoofing evidence regardless of the aggregate score.
var identityDefining = []string{FieldCPUModel, FieldPlatformArch}

// Weight returns the divergence weight of a canonical attribute.
func Weight(field string) float64 {
	return attributeWeights[field]
}

// Scorer compares a new fingerprint against the stored baseline for a MAC
// and produces a risk score in [0,1] plus a suspicious flag. It never blocks
// a report outright; the admit/reject decision belongs to the resolver.
type Scorer struct {
	threshold float64
}

// NewScorer builds a scorer with the given suspicious threshold. A zero or
// negative threshold selects the default.
func NewScorer(threshold float64) *Scorer {
	if threshold <= 0 {
		threshold = DefaultSuspiciousThreshold
	}

	return &Scorer{threshold: threshold}
}

// Threshold reports the configured suspicious threshold.
func (s *Scorer) Threshold() float64 {
	return s.threshold
}

// Score compares the new profile against the stored fingerprint. A nil
// stored fingerprint is the first observation and seeds the baseline at
// risk 0.0. The score is re-derived from this comparison alone, never
// accumulated across calls.
func (s *Scorer) Score(newHash string, newForm CanonicalForm, stored *models.DeviceFingerprint) (riskScore float64, suspicious bool) {
	if stored == nil {
		return 0.0, false
	}

	if stored.FingerprintHash == newHash {
		return 0.0, false
	}

	storedForm := Canonicalize(stored.Hardware)

	changed := make(map[string]bool, len(Fields))

	for _, field := range Fields {
		if newForm[field] != storedForm[field] {
			changed[field] = true
			riskScore += attributeWeights[field]
		}
	}

	if riskScore > 1.0 {
		riskScore = 1.0
	}

	suspicious = riskScore > s.threshold

	if !suspicious {
		defining := 0

		for _, field := range identityDefining {
			if changed[field] {
				defining++
			}
		}

		if defining > 1 {
			suspicious = true
		}
	}

	return riskScore, suspicious
}
