package sampler

import (
	"math"
	"testing"

	"github.com/quasilyte/sampler/internal/simd"
	"github.com/quasilyte/sampler/sfzfile"
)

func TestNormalizedGain(t *testing.T) {
	g := NormalizedGain(1000, 44100)
	want := math.Tan(math.Pi*1000/44100) / (1 + math.Tan(math.Pi*1000/44100))
	if math.Abs(float64(g)-want) > 1e-6 {
		t.Fatalf("gain: have %v, want %v", g, want)
	}
	if g := NormalizedGain(1e6, 44100); g != NormalizedGain(0.49*44100, 44100) {
		t.Fatalf("cutoff above the Nyquist frequency is not clamped: %v", g)
	}
	if g := NormalizedGain(-5, 44100); g != NormalizedGain(1, 44100) {
		t.Fatalf("negative cutoff is not clamped: %v", g)
	}
}

func TestOnePoleFilter(t *testing.T) {
	constant := func(n int) []float32 {
		data := make([]float32, n)
		for i := range data {
			data[i] = 1
		}
		return data
	}
	alternating := func(n int) []float32 {
		data := make([]float32, n)
		for i := range data {
			data[i] = 1
			if i%2 == 1 {
				data[i] = -1
			}
		}
		return data
	}
	tail := func(data []float32) float32 {
		peak := float32(0)
		for _, v := range data[len(data)-100:] {
			peak = max(peak, float32(math.Abs(float64(v))))
		}
		return peak
	}

	tests := []struct {
		name   string
		kind   sfzfile.FilterType
		input  []float32
		minOut float32
		maxOut float32
	}{
		{"lowpass passes DC", sfzfile.FilterLowpass, constant(4000), 0.99, 1.01},
		{"lowpass cuts Nyquist", sfzfile.FilterLowpass, alternating(4000), 0, 0.05},
		{"highpass cuts DC", sfzfile.FilterHighpass, constant(4000), 0, 0.01},
		{"highpass passes Nyquist", sfzfile.FilterHighpass, alternating(4000), 0.95, 1.05},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var f OnePoleFilter
			f.Setup(test.kind, 500, 44100)
			f.Process(0, test.input)
			peak := tail(test.input)
			if peak < test.minOut || peak > test.maxOut {
				t.Fatalf("output peak %v is out of [%v, %v]", peak, test.minOut, test.maxOut)
			}
		})
	}
}

func TestOnePoleFilterChannels(t *testing.T) {
	var f OnePoleFilter
	f.Setup(sfzfile.FilterLowpass, 500, 44100)

	left := []float32{1, 1, 1, 1}
	right := []float32{0, 0, 0, 0}
	f.Process(0, left)
	f.Process(1, right)
	for i, v := range right {
		if v != 0 {
			t.Fatalf("right frame %d: state leaked from the left channel: %v", i, v)
		}
	}

	f.Reset()
	again := []float32{1, 1, 1, 1}
	f.Process(0, again)
	for i := range again {
		if again[i] != left[i] {
			t.Fatalf("frame %d after reset: have %v, want %v", i, again[i], left[i])
		}
	}
}

func TestOnePoleFilterHighpassComplement(t *testing.T) {
	input := make([]float32, 300)
	for i := range input {
		input[i] = float32(math.Sin(float64(i) * 0.3))
	}
	for _, level := range []simd.Level{simd.LevelScalar, simd.LevelUnrolled, simd.LevelAccelerated} {
		var lowpass, highpass OnePoleFilter
		lowpass.Setup(sfzfile.FilterLowpass, 2000, 44100)
		highpass.Setup(sfzfile.FilterHighpass, 2000, 44100)
		highpass.kernels = simd.For(level)
		highpass.reserve(128)

		lp := append([]float32(nil), input...)
		hp := append([]float32(nil), input...)
		lowpass.Process(0, lp)
		// A block larger than the reserved size.
		highpass.Process(0, hp)
		for i := range input {
			if diff := math.Abs(float64(input[i] - lp[i] - hp[i])); diff > 1e-6 {
				t.Fatalf("%v: frame %d: highpass is not input minus lowpass: %v", level, i, diff)
			}
		}
	}
}
