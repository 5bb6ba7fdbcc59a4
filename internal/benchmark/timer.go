package benchmark

import (
	"bytes"
	"time"
)

// Measure times exactly one invocation of op on the monotonic clock and
// returns the elapsed time in microseconds.
func Measure[T any](op func() (T, error)) (T, float64, error) {
	start := time.Now()
	result, err := op()
	elapsed := time.Since(start)
	return result, toMicros(elapsed), err
}

func toMicros(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e3
}

// VerifyRoundTrip reports whether decrypt(encrypt(x)) returned x.
func VerifyRoundTrip(original, recovered []byte) bool {
	return bytes.Equal(original, recovered)
}

// VerifyDeterminism reports whether two digests of the same input agree.
func VerifyDeterminism(digestA, digestB []byte) bool {
	return len(digestA) > 0 && bytes.Equal(digestA, digestB)
}

func correctnessViolation(profile string, size, iteration int, msg string) error {
	return &Error{
		Kind:      KindCorrectnessViolation,
		Stage:     StateMeasuring,
		Profile:   profile,
		FileSize:  size,
		Iteration: iteration,
		Message:   msg,
	}
}
