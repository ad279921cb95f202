package simd

import "math"

// panSize is odd to get an equal volume at the center.
const panSize = 4095

// panTable holds cos(x) for x in [0, pi/2]; the extra element is
// a guard for the rounding at the upper bound.
var panTable = func() [panSize + 1]float32 {
	var table [panSize + 1]float32
	for i := 0; i < panSize; i++ {
		table[i] = float32(math.Cos(float64(i) * (math.Pi / 2 / (panSize - 1))))
	}
	table[panSize] = table[panSize-1]
	return table
}()

func panLookup(x float32) float32 {
	return panTable[int(0.5+x*(panSize-1))]
}

func clampUnit(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func panOne(pan float32, left, right *float32) {
	p := clampUnit((pan + 1) * 0.5)
	*left *= panLookup(p)
	*right *= panLookup(1 - p)
}

func widthOne(width float32, left, right *float32) {
	w := clampUnit((width + 1) * 0.5)
	c1 := panLookup(w)
	c2 := panLookup(1 - w)
	l := *left
	r := *right
	*left = l*c2 + r*c1
	*right = l*c1 + r*c2
}
