package filepool

import (
	"github.com/quasilyte/sampler/audiobuf"
)

// Sample is a preloaded sample file.
//
// The sample is immutable after Preload returns it,
// so it can be shared by any number of voices.
type Sample struct {
	Name string
	Info FileInformation

	head *audiobuf.Buffer
}

// HeadFrames returns the number of frames that are always in memory.
func (s *Sample) HeadFrames() int { return s.head.NumFrames() }

// InMemory reports whether the whole file is loaded.
func (s *Sample) InMemory() bool { return s.head.NumFrames() >= s.Info.NumFrames }

// Head returns the preloaded frames.
func (s *Sample) Head() audiobuf.Span { return s.head.Span() }

// Read copies the preloaded frames starting at from into dst and
// returns the number of copied frames. The rest of dst is zeroed.
func (s *Sample) Read(dst audiobuf.Span, from int) int {
	n := 0
	if from >= 0 && from < s.head.NumFrames() {
		n = min(dst.NumFrames(), s.head.NumFrames()-from)
		dst.First(n).CopyFrom(s.head.Span().Subspan(from, n))
	}
	dst.From(n).Fill(0)
	return n
}
