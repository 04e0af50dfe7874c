// Package fees computes the marketplace platform fee split.
package fees

import (
	"errors"
	"math"
)

var (
	// ErrInvalidGross is returned for a non-positive gross amount.
	ErrInvalidGross = errors.New("gross amount must be positive")
	// ErrInvalidPercentage is returned for a fee percentage outside [0,1).
	ErrInvalidPercentage = errors.New("fee percentage must be a fraction in [0,1)")
)

// Compute splits a gross amount (integer minor units) into the platform fee
// and the trainer payout. The fee is rounded half-up to minor-unit precision
// and the payout is the exact remainder, so fee + payout == gross always
// holds with no rounding drift.
func Compute(grossMinor int64, feePct float64) (feeMinor, payoutMinor int64, err error) {
	if grossMinor <= 0 {
		return 0, 0, ErrInvalidGross
	}
	if feePct < 0 || feePct >= 1 || math.IsNaN(feePct) {
		return 0, 0, ErrInvalidPercentage
	}
	feeMinor = int64(math.Floor(float64(grossMinor)*feePct + 0.5))
	return feeMinor, grossMinor - feeMinor, nil
}
