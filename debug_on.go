//go:build samplerdebug

package sampler

// Build with -tags samplerdebug to enable the contract checks.
// The checks are too expensive for the real-time path in release builds.

func assert(cond bool, msg string) {
	if !cond {
		panic("sampler: contract violation: " + msg)
	}
}
