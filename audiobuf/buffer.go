// Package audiobuf provides multichannel float32 sample storage.
//
// A Buffer owns its memory; a Span is a cheap non-owning view over
// a Buffer (or any set of equally sized channel slices).
// Spans are passed by value and never allocate.
package audiobuf

import (
	"unsafe"
)

const (
	// Alignment is the byte alignment of every channel start.
	Alignment = 64

	// FramePadding is the granularity of the per-channel storage size.
	// The padding frames are always zero.
	FramePadding = 16

	// MaxChannels is the maximum number of channels a Span can hold.
	MaxChannels = 8
)

const floatsPerAlignment = Alignment / int(unsafe.Sizeof(float32(0)))

// Buffer is a fixed capacity N channels × M frames storage.
type Buffer struct {
	channels  [MaxChannels][]float32
	nchannels int
	nframes   int
	storage   []float32
}

// NewBuffer allocates a zeroed buffer.
// It panics if numChannels is not in [1, MaxChannels].
func NewBuffer(numChannels, numFrames int) *Buffer {
	b := &Buffer{}
	b.init(numChannels, numFrames, nil)
	return b
}

func paddedFrames(numFrames int) int {
	return (numFrames + FramePadding - 1) / FramePadding * FramePadding
}

// storageSize returns the number of floats needed for the buffer,
// including the slack for the alignment of the first channel.
func storageSize(numChannels, numFrames int) int {
	return numChannels*paddedFrames(numFrames) + floatsPerAlignment
}

func (b *Buffer) init(numChannels, numFrames int, storage []float32) {
	if numChannels < 1 || numChannels > MaxChannels {
		panic("audiobuf: invalid number of channels")
	}
	if numFrames < 0 {
		panic("audiobuf: negative number of frames")
	}
	if storage == nil {
		storage = make([]float32, storageSize(numChannels, numFrames))
	}

	// Go never moves heap objects, so the offset computed here stays valid.
	offset := 0
	if addr := uintptr(unsafe.Pointer(unsafe.SliceData(storage))); addr%Alignment != 0 {
		offset = int(Alignment-addr%Alignment) / int(unsafe.Sizeof(float32(0)))
	}

	stride := paddedFrames(numFrames)
	b.storage = storage
	b.nchannels = numChannels
	b.nframes = numFrames
	for i := range b.channels {
		b.channels[i] = nil
	}
	for i := 0; i < numChannels; i++ {
		start := offset + i*stride
		b.channels[i] = storage[start : start+numFrames : start+stride]
	}
}

func (b *Buffer) NumChannels() int { return b.nchannels }

func (b *Buffer) NumFrames() int { return b.nframes }

// Channel returns the frames of the i-th channel.
func (b *Buffer) Channel(i int) []float32 { return b.channels[i][:b.nframes] }

// Span returns a view over the whole buffer.
func (b *Buffer) Span() Span {
	return Span{channels: b.channels, nchannels: b.nchannels, nframes: b.nframes}
}

// Resize changes the number of frames, reallocating the storage if
// the current capacity is not enough. The contents are zeroed.
//
// Spans created before the call must not be used after it.
func (b *Buffer) Resize(numFrames int) {
	if storageSize(b.nchannels, numFrames) <= len(b.storage) {
		b.init(b.nchannels, numFrames, b.storage)
		clear(b.storage)
		return
	}
	b.init(b.nchannels, numFrames, nil)
}

// Clear zeroes all frames.
func (b *Buffer) Clear() {
	clear(b.storage)
}

// SizeBytes reports the memory owned by the buffer.
func (b *Buffer) SizeBytes() int {
	return len(b.storage)*int(unsafe.Sizeof(float32(0))) + int(unsafe.Sizeof(*b))
}
