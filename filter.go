package sampler

import (
	"math"

	"github.com/quasilyte/sampler/internal/simd"
	"github.com/quasilyte/sampler/sfzfile"
)

// OnePoleFilter is a topology-preserving transform (TPT) one-pole filter.
// It runs as a lowpass or a highpass; the state is kept per channel.
type OnePoleFilter struct {
	kernels *simd.Kernels

	kind  sfzfile.FilterType
	gain  float32
	state [2]float32

	// lowpass holds the lowpass output of the highpass mode.
	lowpass []float32
}

// NormalizedGain computes the TPT integrator gain for the cutoff frequency.
// The cutoff is clamped below the Nyquist frequency.
func NormalizedGain(cutoff, sampleRate float64) float32 {
	cutoff = clamp(cutoff, 1, 0.49*sampleRate)
	g := math.Tan(math.Pi * cutoff / sampleRate)
	return float32(g / (1 + g))
}

func (f *OnePoleFilter) Setup(kind sfzfile.FilterType, cutoff, sampleRate float64) {
	f.kind = kind
	f.gain = NormalizedGain(cutoff, sampleRate)
	f.Reset()
}

func (f *OnePoleFilter) Reset() {
	f.state = [2]float32{}
}

// reserve preallocates the highpass memory for blocks of up to n frames.
func (f *OnePoleFilter) reserve(n int) {
	f.lowpass = make([]float32, n)
}

// Process filters the channel samples in place.
// Blocks longer than the reserved size allocate.
func (f *OnePoleFilter) Process(channel int, data []float32) {
	if f.kernels == nil {
		f.kernels = simd.Default()
	}
	if f.kind != sfzfile.FilterHighpass {
		f.run(channel, data, data)
		return
	}
	if len(f.lowpass) < len(data) {
		f.reserve(len(data))
	}
	lp := f.lowpass[:len(data)]
	f.run(channel, lp, data)
	f.kernels.Subtract(data, lp)
}

// run writes the lowpass of src into dst; dst can be src.
func (f *OnePoleFilter) run(channel int, dst, src []float32) {
	s := f.state[channel]
	g := f.gain
	for i, x := range src {
		v := (x - s) * g
		lp := v + s
		s = lp + v
		dst[i] = lp
	}
	f.state[channel] = s
}
