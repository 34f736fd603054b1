// Package bucket provides deterministic string bucketing shared by the
// flag cache and the experiment engine. It uses the classic 31-multiplier
// string hash with 32-bit signed overflow so that bucket assignments are
// stable across processes and across client implementations in other
// languages that hash the same way.
package bucket

import "unicode/utf16"

// Hash returns a non-negative hash of key.
// Each UTF-16 code unit folds into a 32-bit signed accumulator
// (h = h*31 + unit); the absolute value of the final accumulator is
// returned. Iterating code units rather than runes keeps supplementary
// characters (which encode as surrogate pairs) hashing the same as in
// client implementations on UTF-16 runtimes.
func Hash(key string) int {
	var h int32
	for _, u := range utf16.Encode([]rune(key)) {
		h = h*31 + int32(u)
	}
	// Widen before negating so the minimum int32 doesn't overflow.
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return int(v)
}

// Bucket maps key onto [0, modulus). A modulus of 100 yields the
// percentage buckets used for experiment variant assignment.
func Bucket(key string, modulus int) int {
	if modulus <= 0 {
		return 0
	}
	return Hash(key) % modulus
}
