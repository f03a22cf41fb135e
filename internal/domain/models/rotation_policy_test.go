package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotationPolicyFromPreset(t *testing.T) {
	tests := []struct {
		preset string
		want   RotationPolicy
	}{
		{RotationPresetStrict, RotationPolicy{Enabled: true, DetectReplayAttacks: true, RevokeOnReplay: true}},
		{RotationPresetBalanced, RotationPolicy{Enabled: true, DetectReplayAttacks: true, RevokeOnReplay: true, GracePeriod: 10 * time.Second}},
		{RotationPresetLenient, RotationPolicy{Enabled: true, GracePeriod: time.Minute}},
		{RotationPresetDisabled, RotationPolicy{}},
		// An unset preset falls back to the balanced default.
		{"", RotationPolicy{Enabled: true, DetectReplayAttacks: true, RevokeOnReplay: true, GracePeriod: 10 * time.Second}},
	}
	for _, tc := range tests {
		policy, err := RotationPolicyFromPreset(tc.preset)
		require.NoError(t, err, "preset=%q", tc.preset)
		assert.Equal(t, tc.want, policy, "preset=%q", tc.preset)
	}

	_, err := RotationPolicyFromPreset("paranoid")
	assert.Error(t, err)
}
