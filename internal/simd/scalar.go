package simd

import "math"

func newScalarKernels() *Kernels {
	return &Kernels{
		Level:              LevelScalar,
		Fill:               fillScalar,
		Copy:               copyScalar,
		Add:                addScalar,
		Subtract:           subtractScalar,
		Multiply:           multiplyScalar,
		ApplyGain:          applyGainScalar,
		ApplyGainSpan:      applyGainSpanScalar,
		MultiplyAdd:        multiplyAddScalar,
		MultiplyAddScalar:  multiplyAddValueScalar,
		LinearRamp:         linearRampScalar,
		MultiplicativeRamp: multiplicativeRampScalar,
		Pan:                panScalar,
		Width:              widthScalar,
		Cumsum:             cumsumScalar,
		MeanSquared:        meanSquaredScalar,
		LoopingIndex:       loopingIndexScalar,
		SaturatingIndex:    saturatingIndexScalar,
		InterpolationCast:  interpolationCastScalar,
	}
}

func fillScalar(dst []float32, v float32) {
	for i := range dst {
		dst[i] = v
	}
}

func copyScalar(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = src[i]
	}
}

func addScalar(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += src[i]
	}
}

func subtractScalar(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] -= src[i]
	}
}

func multiplyScalar(dst, src []float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] *= src[i]
	}
}

func applyGainScalar(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = gain * src[i]
	}
}

func applyGainSpanScalar(dst, src, gain []float32) {
	n := min(len(dst), len(src), len(gain))
	for i := 0; i < n; i++ {
		dst[i] = gain[i] * src[i]
	}
}

func multiplyAddScalar(dst, src, gain []float32) {
	n := min(len(dst), len(src), len(gain))
	for i := 0; i < n; i++ {
		dst[i] += gain[i] * src[i]
	}
}

func multiplyAddValueScalar(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] += gain * src[i]
	}
}

func linearRampScalar(dst []float32, start, step float32) float32 {
	v := start
	for i := range dst {
		v += step
		dst[i] = v
	}
	return v
}

func multiplicativeRampScalar(dst []float32, start, step float32) float32 {
	v := start
	for i := range dst {
		v *= step
		dst[i] = v
	}
	return v
}

func panScalar(pan, left, right []float32) {
	n := min(len(pan), len(left), len(right))
	for i := 0; i < n; i++ {
		panOne(pan[i], &left[i], &right[i])
	}
}

func widthScalar(width, left, right []float32) {
	n := min(len(width), len(left), len(right))
	for i := 0; i < n; i++ {
		widthOne(width[i], &left[i], &right[i])
	}
}

func cumsumScalar(dst, src []float32) {
	n := min(len(dst), len(src))
	if n == 0 {
		return
	}
	dst[0] = src[0]
	for i := 1; i < n; i++ {
		dst[i] = dst[i-1] + src[i]
	}
}

func meanSquaredScalar(src []float32) float32 {
	if len(src) == 0 {
		return 0
	}
	var sum float32
	for _, v := range src {
		sum += v * v
	}
	return sum / float32(len(src))
}

func wrapPosition(pos, loopStart, loopEnd float64) float64 {
	length := loopEnd - loopStart
	pos -= length
	if pos >= loopEnd {
		// A jump longer than the loop itself.
		pos = loopStart + modPositive(pos-loopStart, length)
	}
	return pos
}

func loopingIndexScalar(jumps, left, right []float32, indices []int, pos, loopStart, loopEnd float64) float64 {
	n := min(len(jumps), len(left), len(right), len(indices))
	for i := 0; i < n; i++ {
		index := int(pos)
		indices[i] = index
		right[i] = float32(pos - float64(index))
		left[i] = 1 - right[i]
		pos += float64(jumps[i])
		if pos >= loopEnd {
			pos = wrapPosition(pos, loopStart, loopEnd)
		}
	}
	return pos
}

func saturatingIndexScalar(jumps, left, right []float32, indices []int, pos, end float64) (float64, int) {
	n := min(len(jumps), len(left), len(right), len(indices))
	last := int(end) - 1
	emitted := 0
	for i := 0; i < n; i++ {
		if pos >= end {
			pos = end
			indices[i] = last
			left[i] = 0
			right[i] = 1
			continue
		}
		index := int(pos)
		indices[i] = index
		right[i] = float32(pos - float64(index))
		left[i] = 1 - right[i]
		pos += float64(jumps[i])
		emitted++
	}
	if pos > end {
		pos = end
	}
	return pos, emitted
}

func interpolationCastScalar(positions, left, right []float32, indices []int) {
	n := min(len(positions), len(left), len(right), len(indices))
	for i := 0; i < n; i++ {
		index := int(positions[i])
		indices[i] = index
		right[i] = positions[i] - float32(index)
		left[i] = 1 - right[i]
	}
}

func modPositive(x, m float64) float64 {
	r := math.Mod(x, m)
	if r < 0 {
		r += m
	}
	return r
}
