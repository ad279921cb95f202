package filepool

import (
	"fmt"
	"io"
	"os"

	"github.com/quasilyte/sampler/audiobuf"
)

// FileInformation describes the sample file contents.
// It's immutable after the sample is loaded.
type FileInformation struct {
	NumFrames   int
	NumChannels int
	SampleRate  float64

	// HasLoop reports whether the file defines a loop.
	// The loop covers [LoopStart, LoopEnd) frames.
	HasLoop   bool
	LoopStart int
	LoopEnd   int
}

// Opener provides the frames of the sample files.
type Opener interface {
	Open(name string) (FrameReader, error)
}

// FrameReader is a sequential reader over the file frames.
//
// Reading the frames [a, b) is Skip(a) followed by reads of b-a frames.
type FrameReader interface {
	Info() FileInformation

	// ReadFrames decodes up to dst.NumFrames() frames into dst.
	// Only the first min(dst channels, file channels) channels are written.
	// It returns io.EOF when there are no more frames.
	ReadFrames(dst audiobuf.Span) (int, error)

	// Skip advances the read position by n frames.
	Skip(n int) error

	Close() error
}

// MemoryFile is a sample that lives in memory.
type MemoryFile struct {
	Info     FileInformation
	Channels [][]float32
}

// MemoryOpener serves the samples from memory.
// It's useful for tests and generated material.
type MemoryOpener map[string]*MemoryFile

// NewMemoryFile creates a MemoryFile for the given channel data.
func NewMemoryFile(sampleRate float64, channels ...[]float32) *MemoryFile {
	f := &MemoryFile{Channels: channels}
	f.Info.NumChannels = len(channels)
	f.Info.SampleRate = sampleRate
	if len(channels) != 0 {
		f.Info.NumFrames = len(channels[0])
	}
	return f
}

func (o MemoryOpener) Open(name string) (FrameReader, error) {
	f, ok := o[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, os.ErrNotExist)
	}
	return &memoryReader{file: f}, nil
}

type memoryReader struct {
	file *MemoryFile
	pos  int
}

func (r *memoryReader) Info() FileInformation { return r.file.Info }

func (r *memoryReader) ReadFrames(dst audiobuf.Span) (int, error) {
	n := min(dst.NumFrames(), r.file.Info.NumFrames-r.pos)
	if n <= 0 {
		return 0, io.EOF
	}
	nch := min(dst.NumChannels(), len(r.file.Channels))
	for ch := 0; ch < nch; ch++ {
		copy(dst.Channel(ch)[:n], r.file.Channels[ch][r.pos:])
	}
	r.pos += n
	return n, nil
}

func (r *memoryReader) Skip(n int) error {
	r.pos = min(r.pos+n, r.file.Info.NumFrames)
	return nil
}

func (r *memoryReader) Close() error { return nil }
