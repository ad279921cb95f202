package sampler

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/quasilyte/sampler/audiobuf"
)

const (
	pcm16FrameSize   = 2 * 2
	float32FrameSize = 2 * 4
)

// PCM16Reader renders the synth as 16-bit little endian stereo PCM bytes.
// This is the format Ebitengine audio players expect.
//
// The reader never ends: once all voices are done it produces silence.
// Read calls RenderBlock, so the synth must not be rendered elsewhere.
type PCM16Reader struct {
	synth *Synth
	block *audiobuf.Buffer
}

// NewPCM16Reader creates a reader over the synth output.
func NewPCM16Reader(s *Synth) *PCM16Reader {
	return &PCM16Reader{
		synth: s,
		block: audiobuf.NewBuffer(2, s.SamplesPerBlock()),
	}
}

// Read fills b with as many whole frames as it can fit.
func (r *PCM16Reader) Read(b []byte) (int, error) {
	if len(b) < pcm16FrameSize {
		return 0, io.ErrShortBuffer
	}
	written := 0
	for len(b) >= pcm16FrameSize {
		out := renderNext(r.synth, r.block, len(b)/pcm16FrameSize)
		left := out.Channel(0)
		right := out.Channel(1)
		for i := range left {
			putPCM16(b[i*pcm16FrameSize:], left[i], right[i])
		}
		n := len(left) * pcm16FrameSize
		written += n
		b = b[n:]
	}
	return written, nil
}

// Float32Reader renders the synth as 32-bit float little endian stereo PCM bytes.
//
// Like PCM16Reader, it never ends and it owns the synth rendering.
type Float32Reader struct {
	synth *Synth
	block *audiobuf.Buffer
}

// NewFloat32Reader creates a reader over the synth output.
func NewFloat32Reader(s *Synth) *Float32Reader {
	return &Float32Reader{
		synth: s,
		block: audiobuf.NewBuffer(2, s.SamplesPerBlock()),
	}
}

// Read fills b with as many whole frames as it can fit.
func (r *Float32Reader) Read(b []byte) (int, error) {
	if len(b) < float32FrameSize {
		return 0, io.ErrShortBuffer
	}
	written := 0
	for len(b) >= float32FrameSize {
		out := renderNext(r.synth, r.block, len(b)/float32FrameSize)
		left := out.Channel(0)
		right := out.Channel(1)
		for i := range left {
			dst := b[i*float32FrameSize:]
			binary.LittleEndian.PutUint32(dst, math.Float32bits(left[i]))
			binary.LittleEndian.PutUint32(dst[4:], math.Float32bits(right[i]))
		}
		n := len(left) * float32FrameSize
		written += n
		b = b[n:]
	}
	return written, nil
}

// renderNext renders up to maxFrames frames, at most a block.
// The block buffer follows the synth block size changes.
func renderNext(s *Synth, block *audiobuf.Buffer, maxFrames int) audiobuf.Span {
	blockSize := s.SamplesPerBlock()
	if block.NumFrames() != blockSize {
		block.Resize(blockSize)
	}
	out := block.Span().First(min(maxFrames, blockSize))
	s.RenderBlock(out)
	return out
}

func putPCM16(b []byte, left, right float32) {
	binary.LittleEndian.PutUint16(b, uint16(floatToInt16(left)))
	binary.LittleEndian.PutUint16(b[2:], uint16(floatToInt16(right)))
}

func floatToInt16(v float32) int16 {
	return int16(clamp(v, -1, 1) * math.MaxInt16)
}
