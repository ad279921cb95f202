package filepool

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/quasilyte/sampler/audiobuf"
)

const wavFormatPCM = 1

// WAVOpener reads integer PCM WAV files (8, 16, 24 or 32 bits).
// The loop points are taken from the "smpl" chunk if it's present.
type WAVOpener struct {
	Root string
}

func (o WAVOpener) Open(name string) (FrameReader, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(o.Root, filepath.FromSlash(name))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := newWAVReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

type wavReader struct {
	f    *os.File
	dec  *wav.Decoder
	info FileInformation

	buf       audio.IntBuffer
	scale     float32
	bias      int
	remaining int
}

func newWAVReader(f *os.File) (*wavReader, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid WAV file", ErrUnsupportedFormat)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: WAV format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}

	info := FileInformation{
		NumChannels: int(dec.NumChans),
		SampleRate:  float64(dec.SampleRate),
	}
	if info.NumChannels > 2 {
		return nil, ErrTooManyChannels
	}

	// The metadata chunks can follow the data chunk, so the metadata
	// scan consumes the file. The decoding starts over after it.
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	dec = wav.NewDecoder(f)
	dec.ReadMetadata()
	if dec.Metadata != nil && dec.Metadata.SamplerInfo != nil && len(dec.Metadata.SamplerInfo.Loops) != 0 {
		loop := dec.Metadata.SamplerInfo.Loops[0]
		info.HasLoop = true
		info.LoopStart = int(loop.Start)
		info.LoopEnd = int(loop.End) + 1 // smpl loop end is inclusive
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	dec = wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		return nil, err
	}
	bytesPerFrame := int(dec.NumChans) * int(dec.BitDepth) / 8
	if bytesPerFrame == 0 {
		return nil, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, dec.BitDepth)
	}
	info.NumFrames = dec.PCMSize / bytesPerFrame
	if info.HasLoop {
		info.LoopEnd = min(info.LoopEnd, info.NumFrames)
		info.HasLoop = info.LoopStart < info.LoopEnd
	}

	r := &wavReader{
		f:         f,
		dec:       dec,
		info:      info,
		scale:     1.0 / float32(int64(1)<<(dec.BitDepth-1)),
		remaining: info.NumFrames,
	}
	if dec.BitDepth == 8 {
		// 8-bit WAV samples are unsigned.
		r.bias = 128
	}
	r.buf.Format = &audio.Format{
		NumChannels: info.NumChannels,
		SampleRate:  int(dec.SampleRate),
	}
	r.buf.SourceBitDepth = int(dec.BitDepth)
	return r, nil
}

func (r *wavReader) Info() FileInformation { return r.info }

func (r *wavReader) ReadFrames(dst audiobuf.Span) (int, error) {
	nframes := min(dst.NumFrames(), r.remaining)
	if nframes <= 0 {
		return 0, io.EOF
	}
	nch := r.info.NumChannels
	need := nframes * nch
	if cap(r.buf.Data) < need {
		r.buf.Data = make([]int, need)
	}
	r.buf.Data = r.buf.Data[:need]

	n, err := r.dec.PCMBuffer(&r.buf)
	if err != nil {
		return 0, err
	}
	got := n / nch
	if got == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	for ch := 0; ch < min(nch, dst.NumChannels()); ch++ {
		out := dst.Channel(ch)
		for i := 0; i < got; i++ {
			out[i] = float32(r.buf.Data[i*nch+ch]-r.bias) * r.scale
		}
	}
	r.remaining -= got
	return got, nil
}

func (r *wavReader) Skip(n int) error {
	var scratch [2][256]float32
	span := audiobuf.NewSpan(scratch[0][:], scratch[1][:])
	for n > 0 {
		got, err := r.ReadFrames(span.First(min(n, len(scratch[0]))))
		if err != nil {
			return err
		}
		n -= got
	}
	return nil
}

func (r *wavReader) Close() error { return r.f.Close() }
