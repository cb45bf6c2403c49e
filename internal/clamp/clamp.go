// Package clamp provides a generic constrain-to-range helper shared by
// stepcore and the companion driver packages.
package clamp

import "golang.org/x/exp/constraints"

// Clamp constrains value to the inclusive range [low, high].
func Clamp[T constraints.Ordered](value, low, high T) T {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
