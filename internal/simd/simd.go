// Package simd implements the per-sample numeric kernels used by the voices.
//
// Every kernel has a scalar reference implementation that defines
// its exact semantics. The other levels process the data in wider
// blocks and may differ from the reference only by the floating
// point rounding caused by a different order of operations.
//
// The kernel table is selected once, during the package initialization,
// based on the detected CPU features. Callers should grab the table
// with Default() and keep the pointer.
//
// Kernels never allocate and never resize their arguments.
// The number of processed elements is the minimum length of the
// slices involved.
package simd

import (
	"os"

	"golang.org/x/sys/cpu"
)

// Level identifies a kernel table implementation.
type Level int

const (
	// LevelScalar is the reference implementation.
	LevelScalar Level = iota

	// LevelUnrolled processes 4 lanes per iteration in plain Go.
	LevelUnrolled

	// LevelAccelerated uses vector instructions (AVX2/NEON) for
	// the element-wise arithmetic; the rest comes from LevelUnrolled.
	LevelAccelerated
)

func (l Level) String() string {
	switch l {
	case LevelScalar:
		return "scalar"
	case LevelUnrolled:
		return "unrolled"
	case LevelAccelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// Kernels is a table of kernel implementations of the same level.
//
// In-place operation is allowed for every kernel where dst and src
// are the same slice; partially overlapping slices are not supported.
type Kernels struct {
	Level Level

	// Fill sets every dst element to v.
	Fill func(dst []float32, v float32)

	// Copy copies src to dst.
	Copy func(dst, src []float32)

	// Add computes dst[i] += src[i].
	Add func(dst, src []float32)

	// Subtract computes dst[i] -= src[i].
	Subtract func(dst, src []float32)

	// Multiply computes dst[i] *= src[i].
	Multiply func(dst, src []float32)

	// ApplyGain computes dst[i] = gain * src[i].
	ApplyGain func(dst, src []float32, gain float32)

	// ApplyGainSpan computes dst[i] = gain[i] * src[i].
	ApplyGainSpan func(dst, src, gain []float32)

	// MultiplyAdd computes dst[i] += gain[i] * src[i].
	MultiplyAdd func(dst, src, gain []float32)

	// MultiplyAddScalar computes dst[i] += gain * src[i].
	MultiplyAddScalar func(dst, src []float32, gain float32)

	// LinearRamp fills dst with start+step, start+2*step, ...
	// and returns the last written value.
	LinearRamp func(dst []float32, start, step float32) float32

	// MultiplicativeRamp fills dst with start*step, start*step^2, ...
	// and returns the last written value.
	MultiplicativeRamp func(dst []float32, start, step float32) float32

	// Pan applies the equal-power pan law; pan values are in [-1, 1].
	Pan func(pan, left, right []float32)

	// Width applies a stereo width; 1 is a no-op, 0 is mono, -1 swaps the channels.
	Width func(width, left, right []float32)

	// Cumsum computes the running sum: dst[0] = src[0], dst[i] = dst[i-1] + src[i].
	Cumsum func(dst, src []float32)

	// MeanSquared returns the mean of squared values; 0 for an empty slice.
	MeanSquared func(src []float32) float32

	// LoopingIndex emits the interpolation index and coefficients for
	// the current position and then advances it by jumps[i].
	// A position reaching loopEnd wraps back into [loopStart, loopEnd).
	// The updated position is returned.
	LoopingIndex func(jumps, left, right []float32, indices []int, pos, loopStart, loopEnd float64) float64

	// SaturatingIndex is like LoopingIndex, but the position saturates at end:
	// once it's reached, indices are end-1 with left=0 and right=1.
	// It returns the updated position and the number of frames that were
	// emitted before the saturation.
	SaturatingIndex func(jumps, left, right []float32, indices []int, pos, end float64) (float64, int)

	// InterpolationCast splits fractional positions into integer
	// indices and the linear interpolation coefficients.
	InterpolationCast func(positions, left, right []float32, indices []int)
}

var (
	scalarKernels      = newScalarKernels()
	unrolledKernels    = newUnrolledKernels()
	acceleratedKernels = newAcceleratedKernels()

	defaultKernels = For(detectLevel())
)

// Default returns the kernel table selected for this process.
func Default() *Kernels { return defaultKernels }

// For returns the kernel table of the specified level.
func For(l Level) *Kernels {
	switch l {
	case LevelScalar:
		return scalarKernels
	case LevelAccelerated:
		return acceleratedKernels
	default:
		return unrolledKernels
	}
}

// detectLevel picks the best level for the host CPU.
// SAMPLER_SIMD=scalar|unrolled|accelerated overrides the detection.
func detectLevel() Level {
	switch os.Getenv("SAMPLER_SIMD") {
	case "scalar":
		return LevelScalar
	case "unrolled":
		return LevelUnrolled
	case "accelerated":
		return LevelAccelerated
	}

	if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
		return LevelAccelerated
	}
	if cpu.ARM64.HasASIMD {
		return LevelAccelerated
	}
	return LevelUnrolled
}
