//go:build !samplerdebug

package sampler

func assert(cond bool, msg string) {}
