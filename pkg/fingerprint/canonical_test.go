package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridpulse/devicegate/pkg/models"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int { return &i }
func int64Ptr(i int64) *int64 { return &i }

func sampleAttrs() models.HardwareAttributes {
	return models.HardwareAttributes{
		CPUModel:          strPtr("Intel i7"),
		CPUCount:          intPtr(8),
		TotalMemory:       int64Ptr(16000000000),
		DiskPartitions:    intPtr(3),
		NetworkInterfaces: intPtr(2),
		PlatformMachine:   strPtr("x86_64"),
		PlatformArch:      strPtr("64bit"),
	}
}

func TestCanonicalizeNormalizesStrings(t *testing.T) {
	attrs := models.HardwareAttributes{
		CPUModel:     strPtr("  Intel I7  "),
		PlatformArch: strPtr("64BIT"),
	}

	form := Canonicalize(attrs)

	assert.Equal(t, "intel i7", form[FieldCPUModel])
	assert.Equal(t, "64bit", form[FieldPlatformArch])
}

func TestCanonicalizeEncodesAbsentAttributes(t *testing.T) {
	form := Canonicalize(models.HardwareAttributes{})

	require.Len(t, form, len(Fields))

	for _, field := range Fields {
		assert.Equal(t, AbsentSentinel, form[field], field)
	}
}

func TestCanonicalizePreservesExactNumericValues(t *testing.T) {
	form := Canonicalize(sampleAttrs())

	assert.Equal(t, "16000000000", form[FieldTotalMemory])
	assert.Equal(t, "8", form[FieldCPUCount])
}

func TestHashDeterministic(t *testing.T) {
	first := Canonicalize(sampleAttrs()).Hash()
	second := Canonicalize(sampleAttrs()).Hash()

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestHashInvariantToStringCase(t *testing.T) {
	upper := sampleAttrs()
	upper.CPUModel = strPtr("INTEL I7")

	assert.Equal(t, Canonicalize(sampleAttrs()).Hash(), Canonicalize(upper).Hash())
}

func TestHashChangesWithValues(t *testing.T) {
	changed := sampleAttrs()
	changed.TotalMemory = int64Ptr(32000000000)

	assert.NotEqual(t, Canonicalize(sampleAttrs()).Hash(), Canonicalize(changed).Hash())
}

func TestHashDistinguishesAbsentFromZero(t *testing.T) {
	zero := models.HardwareAttributes{CPUCount: intPtr(0)}
	absent := models.HardwareAttributes{}

	assert.NotEqual(t, Canonicalize(zero).Hash(), Canonicalize(absent).Hash())
}
