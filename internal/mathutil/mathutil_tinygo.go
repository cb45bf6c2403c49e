//go:build tinygo

package mathutil

import "github.com/orsinium-labs/tinymath"

func Sqrt(v float32) float32 {
	return tinymath.Sqrt(v)
}

func Ceil(v float32) float32 {
	return tinymath.Ceil(v)
}

func Round(v float32) float32 {
	return tinymath.Round(v)
}

func Min(a, b float32) float32 {
	return tinymath.Min(a, b)
}

func Max(a, b float32) float32 {
	return tinymath.Max(a, b)
}
