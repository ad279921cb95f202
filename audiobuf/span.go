package audiobuf

import (
	"github.com/quasilyte/sampler/internal/simd"
)

var kernels = simd.Default()

// Span is a non-owning view over equally sized channel slices.
//
// The zero value is an empty span with no channels.
// Out of range arguments cause a panic via Go bounds checks.
type Span struct {
	channels  [MaxChannels][]float32
	nchannels int
	nframes   int
}

// NewSpan creates a span over the given channel slices.
// The span length is the length of the shortest slice.
func NewSpan(channels ...[]float32) Span {
	if len(channels) > MaxChannels {
		panic("audiobuf: too many channels")
	}
	var s Span
	s.nchannels = len(channels)
	if len(channels) != 0 {
		s.nframes = len(channels[0])
	}
	for _, ch := range channels {
		s.nframes = min(s.nframes, len(ch))
	}
	for i, ch := range channels {
		s.channels[i] = ch[:s.nframes]
	}
	return s
}

func (s Span) NumChannels() int { return s.nchannels }

func (s Span) NumFrames() int { return s.nframes }

func (s Span) Channel(i int) []float32 { return s.channels[i][:s.nframes] }

// Subspan returns a view of length frames starting at offset.
func (s Span) Subspan(offset, length int) Span {
	if offset < 0 || length < 0 || offset+length > s.nframes {
		panic("audiobuf: subspan out of range")
	}
	result := Span{nchannels: s.nchannels, nframes: length}
	for i := 0; i < s.nchannels; i++ {
		result.channels[i] = s.channels[i][offset : offset+length]
	}
	return result
}

// First returns the first n frames.
func (s Span) First(n int) Span { return s.Subspan(0, n) }

// Last returns the last n frames.
func (s Span) Last(n int) Span { return s.Subspan(s.nframes-n, n) }

// From returns the frames starting at offset.
func (s Span) From(offset int) Span { return s.Subspan(offset, s.nframes-offset) }

// Fill sets every frame of every channel to v.
func (s Span) Fill(v float32) {
	for i := 0; i < s.nchannels; i++ {
		kernels.Fill(s.channels[i][:s.nframes], v)
	}
}

// Add mixes other into s.
// A mono span is mixed into every channel of s.
func (s Span) Add(other Span) {
	for i := 0; i < s.nchannels; i++ {
		kernels.Add(s.channels[i][:s.nframes], other.Channel(min(i, other.nchannels-1)))
	}
}

// MultiplyAdd mixes other into s scaled by gain.
func (s Span) MultiplyAdd(other Span, gain float32) {
	for i := 0; i < s.nchannels; i++ {
		kernels.MultiplyAddScalar(s.channels[i][:s.nframes], other.Channel(min(i, other.nchannels-1)), gain)
	}
}

// CopyFrom copies the frames of other into s.
func (s Span) CopyFrom(other Span) {
	for i := 0; i < s.nchannels; i++ {
		kernels.Copy(s.channels[i][:s.nframes], other.Channel(min(i, other.nchannels-1)))
	}
}

// ApplyGain multiplies every frame by gain.
func (s Span) ApplyGain(gain float32) {
	for i := 0; i < s.nchannels; i++ {
		ch := s.channels[i][:s.nframes]
		kernels.ApplyGain(ch, ch, gain)
	}
}

// ApplyGainSpan multiplies every channel by the per-frame gain.
func (s Span) ApplyGainSpan(gain []float32) {
	for i := 0; i < s.nchannels; i++ {
		ch := s.channels[i][:s.nframes]
		kernels.ApplyGainSpan(ch, ch, gain)
	}
}

// MeanSquared returns the mean power over all channels.
func (s Span) MeanSquared() float32 {
	if s.nchannels == 0 {
		return 0
	}
	var sum float32
	for i := 0; i < s.nchannels; i++ {
		sum += kernels.MeanSquared(s.channels[i][:s.nframes])
	}
	return sum / float32(s.nchannels)
}

// IsSilent reports whether every frame is exactly zero.
func (s Span) IsSilent() bool {
	for i := 0; i < s.nchannels; i++ {
		for _, v := range s.channels[i][:s.nframes] {
			if v != 0 {
				return false
			}
		}
	}
	return true
}

// FirstChannels returns a view of the first n channels.
func (s Span) FirstChannels(n int) Span {
	if n < 0 || n > s.nchannels {
		panic("audiobuf: channel count out of range")
	}
	result := Span{nchannels: n, nframes: s.nframes}
	copy(result.channels[:n], s.channels[:n])
	return result
}
