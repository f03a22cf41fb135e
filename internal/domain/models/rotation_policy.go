package models

import (
	"fmt"
	"time"
)

// RotationPolicy parameterizes refresh-token rotation and replay handling.
type RotationPolicy struct {
	// Enabled turns rotation on. When false the legacy single-use path
	// applies: a redeemed refresh token is deleted outright.
	Enabled bool
	// DetectReplayAttacks flags redemptions of an already-used token
	// outside the grace window as replays.
	DetectReplayAttacks bool
	// RevokeOnReplay revokes the whole token family when a replay is
	// detected.
	RevokeOnReplay bool
	// GracePeriod is the window after first use during which a repeat
	// redemption counts as a benign client retry.
	GracePeriod time.Duration
}

// Rotation policy preset names accepted in configuration.
const (
	RotationPresetStrict   = "strict"
	RotationPresetBalanced = "balanced"
	RotationPresetLenient  = "lenient"
	RotationPresetDisabled = "disabled"
)

// StrictRotationPolicy tolerates no retries: any second redemption is a
// replay.
func StrictRotationPolicy() RotationPolicy {
	return RotationPolicy{
		Enabled:             true,
		DetectReplayAttacks: true,
		RevokeOnReplay:      true,
		GracePeriod:         0,
	}
}

// BalancedRotationPolicy is the default: a short grace window absorbs
// duplicate network retries, anything later is a replay.
func BalancedRotationPolicy() RotationPolicy {
	return RotationPolicy{
		Enabled:             true,
		DetectReplayAttacks: true,
		RevokeOnReplay:      true,
		GracePeriod:         10 * time.Second,
	}
}

// LenientRotationPolicy rotates but never raises replay errors.
func LenientRotationPolicy() RotationPolicy {
	return RotationPolicy{
		Enabled:             true,
		DetectReplayAttacks: false,
		RevokeOnReplay:      false,
		GracePeriod:         time.Minute,
	}
}

// DisabledRotationPolicy restores the legacy single-use refresh flow.
func DisabledRotationPolicy() RotationPolicy {
	return RotationPolicy{}
}

// RotationPolicyFromPreset resolves a preset name to its policy.
func RotationPolicyFromPreset(name string) (RotationPolicy, error) {
	switch name {
	case RotationPresetStrict:
		return StrictRotationPolicy(), nil
	case RotationPresetBalanced, "":
		return BalancedRotationPolicy(), nil
	case RotationPresetLenient:
		return LenientRotationPolicy(), nil
	case RotationPresetDisabled:
		return DisabledRotationPolicy(), nil
	default:
		return RotationPolicy{}, fmt.Errorf("unknown rotation preset %q", name)
	}
}
