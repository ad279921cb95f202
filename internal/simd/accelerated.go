package simd

import (
	"github.com/tphakala/simd/f32"
)

// The accelerated kernels delegate the element-wise arithmetic to the
// tphakala/simd assembly routines. The index and ramp kernels carry
// a loop dependency and stay on the unrolled code.

func newAcceleratedKernels() *Kernels {
	k := *newUnrolledKernels()
	k.Level = LevelAccelerated
	k.Add = addAccelerated
	k.Subtract = subtractAccelerated
	k.Multiply = multiplyAccelerated
	k.ApplyGain = applyGainAccelerated
	k.ApplyGainSpan = applyGainSpanAccelerated
	k.MeanSquared = meanSquaredAccelerated
	return &k
}

func addAccelerated(dst, src []float32) {
	n := min(len(dst), len(src))
	f32.Add(dst[:n], dst[:n], src[:n])
}

func subtractAccelerated(dst, src []float32) {
	n := min(len(dst), len(src))
	f32.Sub(dst[:n], dst[:n], src[:n])
}

func multiplyAccelerated(dst, src []float32) {
	n := min(len(dst), len(src))
	f32.Mul(dst[:n], dst[:n], src[:n])
}

func applyGainAccelerated(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	f32.Scale(dst[:n], src[:n], gain)
}

func applyGainSpanAccelerated(dst, src, gain []float32) {
	n := min(len(dst), len(src), len(gain))
	f32.Mul(dst[:n], src[:n], gain[:n])
}

func meanSquaredAccelerated(src []float32) float32 {
	if len(src) == 0 {
		return 0
	}
	return f32.DotProduct(src, src) / float32(len(src))
}
