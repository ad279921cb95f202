package simd

// The unrolled kernels process 4 lanes per iteration and finish the
// remainder with the scalar code. They're measurably faster than the
// scalar versions due to the reduced bounds checking and better ILP.

func newUnrolledKernels() *Kernels {
	k := *newScalarKernels()
	k.Level = LevelUnrolled
	k.Fill = fillUnrolled
	k.Copy = copyUnrolled
	k.Add = addUnrolled
	k.Subtract = subtractUnrolled
	k.Multiply = multiplyUnrolled
	k.ApplyGain = applyGainUnrolled
	k.ApplyGainSpan = applyGainSpanUnrolled
	k.MultiplyAdd = multiplyAddUnrolled
	k.MultiplyAddScalar = multiplyAddValueUnrolled
	k.LinearRamp = linearRampUnrolled
	k.MultiplicativeRamp = multiplicativeRampUnrolled
	k.Cumsum = cumsumUnrolled
	k.MeanSquared = meanSquaredUnrolled
	k.InterpolationCast = interpolationCastUnrolled
	return &k
}

func fillUnrolled(dst []float32, v float32) {
	i := 0
	for ; i+4 <= len(dst); i += 4 {
		d := dst[i : i+4 : i+4]
		d[0] = v
		d[1] = v
		d[2] = v
		d[3] = v
	}
	fillScalar(dst[i:], v)
}

func copyUnrolled(dst, src []float32) {
	copy(dst, src)
}

func addUnrolled(dst, src []float32) {
	n := min(len(dst), len(src))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		d[0] += s[0]
		d[1] += s[1]
		d[2] += s[2]
		d[3] += s[3]
	}
	addScalar(dst[i:n], src[i:n])
}

func subtractUnrolled(dst, src []float32) {
	n := min(len(dst), len(src))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		d[0] -= s[0]
		d[1] -= s[1]
		d[2] -= s[2]
		d[3] -= s[3]
	}
	subtractScalar(dst[i:n], src[i:n])
}

func multiplyUnrolled(dst, src []float32) {
	n := min(len(dst), len(src))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		d[0] *= s[0]
		d[1] *= s[1]
		d[2] *= s[2]
		d[3] *= s[3]
	}
	multiplyScalar(dst[i:n], src[i:n])
}

func applyGainUnrolled(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		d[0] = gain * s[0]
		d[1] = gain * s[1]
		d[2] = gain * s[2]
		d[3] = gain * s[3]
	}
	applyGainScalar(dst[i:n], src[i:n], gain)
}

func applyGainSpanUnrolled(dst, src, gain []float32) {
	n := min(len(dst), len(src), len(gain))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		g := gain[i : i+4 : i+4]
		d[0] = g[0] * s[0]
		d[1] = g[1] * s[1]
		d[2] = g[2] * s[2]
		d[3] = g[3] * s[3]
	}
	applyGainSpanScalar(dst[i:n], src[i:n], gain[i:n])
}

func multiplyAddUnrolled(dst, src, gain []float32) {
	n := min(len(dst), len(src), len(gain))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		g := gain[i : i+4 : i+4]
		d[0] += g[0] * s[0]
		d[1] += g[1] * s[1]
		d[2] += g[2] * s[2]
		d[3] += g[3] * s[3]
	}
	multiplyAddScalar(dst[i:n], src[i:n], gain[i:n])
}

func multiplyAddValueUnrolled(dst, src []float32, gain float32) {
	n := min(len(dst), len(src))
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		d[0] += gain * s[0]
		d[1] += gain * s[1]
		d[2] += gain * s[2]
		d[3] += gain * s[3]
	}
	multiplyAddValueScalar(dst[i:n], src[i:n], gain)
}

func linearRampUnrolled(dst []float32, start, step float32) float32 {
	v := start
	step4 := 4 * step
	i := 0
	for ; i+4 <= len(dst); i += 4 {
		d := dst[i : i+4 : i+4]
		d[0] = v + step
		d[1] = v + 2*step
		d[2] = v + 3*step
		d[3] = v + step4
		v = d[3]
	}
	return linearRampScalar(dst[i:], v, step)
}

func multiplicativeRampUnrolled(dst []float32, start, step float32) float32 {
	v := start
	step2 := step * step
	step3 := step2 * step
	step4 := step2 * step2
	i := 0
	for ; i+4 <= len(dst); i += 4 {
		d := dst[i : i+4 : i+4]
		d[0] = v * step
		d[1] = v * step2
		d[2] = v * step3
		d[3] = v * step4
		v = d[3]
	}
	return multiplicativeRampScalar(dst[i:], v, step)
}

func cumsumUnrolled(dst, src []float32) {
	n := min(len(dst), len(src))
	var carry float32
	i := 0
	for ; i+4 <= n; i += 4 {
		d := dst[i : i+4 : i+4]
		s := src[i : i+4 : i+4]
		a := s[0]
		b := a + s[1]
		c := b + s[2]
		e := c + s[3]
		d[0] = carry + a
		d[1] = carry + b
		d[2] = carry + c
		d[3] = carry + e
		carry = d[3]
	}
	for ; i < n; i++ {
		carry += src[i]
		dst[i] = carry
	}
}

func meanSquaredUnrolled(src []float32) float32 {
	if len(src) == 0 {
		return 0
	}
	var s0, s1, s2, s3 float32
	i := 0
	for ; i+4 <= len(src); i += 4 {
		s := src[i : i+4 : i+4]
		s0 += s[0] * s[0]
		s1 += s[1] * s[1]
		s2 += s[2] * s[2]
		s3 += s[3] * s[3]
	}
	sum := (s0 + s1) + (s2 + s3)
	for ; i < len(src); i++ {
		sum += src[i] * src[i]
	}
	return sum / float32(len(src))
}

func interpolationCastUnrolled(positions, left, right []float32, indices []int) {
	n := min(len(positions), len(left), len(right), len(indices))
	i := 0
	for ; i+4 <= n; i += 4 {
		p := positions[i : i+4 : i+4]
		idx := indices[i : i+4 : i+4]
		r := right[i : i+4 : i+4]
		l := left[i : i+4 : i+4]
		idx[0] = int(p[0])
		idx[1] = int(p[1])
		idx[2] = int(p[2])
		idx[3] = int(p[3])
		r[0] = p[0] - float32(idx[0])
		r[1] = p[1] - float32(idx[1])
		r[2] = p[2] - float32(idx[2])
		r[3] = p[3] - float32(idx[3])
		l[0] = 1 - r[0]
		l[1] = 1 - r[1]
		l[2] = 1 - r[2]
		l[3] = 1 - r[3]
	}
	interpolationCastScalar(positions[i:n], left[i:n], right[i:n], indices[i:n])
}
