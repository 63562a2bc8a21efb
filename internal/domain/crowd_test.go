package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovementMixNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   MovementMix
	}{
		{"already normalized", DefaultMovementMix},
		{"oversampled", MovementMix{0.6, 0.4, 0.3, 0.15, 0.15}},
		{"undersampled", MovementMix{0.3, 0.2, 0.1, 0.05, 0.05}},
		{"negative clipped", MovementMix{-1, 0.5, 0.5, 0, 0}},
		{"all zero", MovementMix{}},
		{"nan clipped", MovementMix{math.NaN(), 1, 1, 1, 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			assert.InDelta(t, 1.0, got.Sum(), 1e-9)
			for _, v := range []float64{got.Stationary, got.SlowMoving, got.FastMoving, got.Entering, got.Exiting} {
				assert.GreaterOrEqual(t, v, 0.0)
			}
		})
	}
}

func TestDensityClamps(t *testing.T) {
	assert.Equal(t, 0.0, Density(0, 100))
	assert.Equal(t, 0.0, Density(10, 0))
	assert.InDelta(t, 0.5, Density(50, 100), 1e-12)
	assert.Equal(t, 1.0, Density(150, 100))
}

func TestCrowdSnapshotIsolatedFromCaller(t *testing.T) {
	entries := map[string]LocationCrowd{
		"b": {LocationID: "b", Count: 5, Capacity: 10, Density: 0.5},
		"a": {LocationID: "a", Count: 1, Capacity: 10, Density: 0.1},
	}
	snap := NewCrowdSnapshot(3, time.Unix(0, 0), "test", 1, entries, nil)

	entries["a"] = LocationCrowd{LocationID: "a", Density: 0.9}
	delete(entries, "b")

	require.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"a", "b"}, snap.IDs())
	assert.InDelta(t, 0.1, snap.DensityOf("a"), 1e-12)
	assert.Equal(t, 0.0, snap.DensityOf("missing"))
	assert.Equal(t, uint64(3), snap.Version())
}

func TestSeverityTotalOrder(t *testing.T) {
	for i := 1; i < len(AllSeverities); i++ {
		assert.Less(t, AllSeverities[i-1], AllSeverities[i])
		assert.Less(t, AllSeverities[i-1].Weight(), AllSeverities[i].Weight())
	}

	s, err := ParseSeverity("critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, s)

	_, err = ParseSeverity("catastrophic")
	assert.Error(t, err)
}

func TestPreferenceDefaultPolicies(t *testing.T) {
	p := PreferenceProfile{}
	assert.Equal(t, []Policy{PolicyOptimal, PolicyFastest, PolicySafest}, p.DefaultPolicies())

	p.AccessibilityRequired = true
	assert.Equal(t, []Policy{PolicyOptimal, PolicyFastest, PolicySafest, PolicyAccessible}, p.DefaultPolicies())

	p = PreferenceProfile{Policy: PolicyAccessible}
	assert.Equal(t, []Policy{PolicyOptimal, PolicyFastest, PolicySafest, PolicyAccessible}, p.DefaultPolicies())
}
