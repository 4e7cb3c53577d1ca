package telemetry

import "math"

// Retry calls read at most n times and returns the first successful value.
// n below 1 still makes one attempt. Every error kind counts as a failed attempt; when all attempts fail the result is NaN.
func Retry(n int, read func() (float64, error)) float64 {
	return RetryValue(n, read, math.NaN())
}

// RetryValue is Retry for any value type, returning fallback on exhaustion.
func RetryValue[T any](n int, read func() (T, error), fallback T) T {
	for range max(n, 1) {
		v, err := read()
		if err == nil {
			return v
		}
	}
	return fallback
}
