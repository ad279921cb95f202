package sampler

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/quasilyte/sampler/audiobuf"
	"github.com/quasilyte/sampler/sfzfile"
)

func newSineSynth(t *testing.T) *Synth {
	t.Helper()
	region := sfzfile.NewRegion("*sine")
	region.PitchKeycenter = 69
	s := newTestSynth(t, Config{SamplesPerBlock: 256}, nil, region)
	s.NoteOn(0, 69, 127)
	return s
}

func TestPCM16Reader(t *testing.T) {
	s := newSineSynth(t)
	want := newSineSynth(t)
	r := NewPCM16Reader(s)

	// 1000 frames don't fit into whole blocks.
	b := make([]byte, 1000*4+3)
	n, err := r.Read(b)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1000*4 {
		t.Fatalf("read %d bytes, want %d", n, 1000*4)
	}

	out := audiobuf.NewBuffer(2, 256)
	frame := 0
	for frame < 1000 {
		span := out.Span().First(min(256, 1000-frame))
		want.RenderBlock(span)
		for i := 0; i < span.NumFrames(); i++ {
			left := int16(binary.LittleEndian.Uint16(b[(frame+i)*4:]))
			right := int16(binary.LittleEndian.Uint16(b[(frame+i)*4+2:]))
			if left != floatToInt16(span.Channel(0)[i]) || right != floatToInt16(span.Channel(1)[i]) {
				t.Fatalf("frame %d: have (%d, %d)", frame+i, left, right)
			}
		}
		frame += span.NumFrames()
	}

	if _, err := r.Read(make([]byte, 3)); !errors.Is(err, io.ErrShortBuffer) {
		t.Fatalf("short buffer: %v", err)
	}
}

func TestFloat32Reader(t *testing.T) {
	s := newSineSynth(t)
	r := NewFloat32Reader(s)

	b := make([]byte, 512*8)
	n, err := io.ReadFull(r, b)
	if err != nil || n != len(b) {
		t.Fatalf("read %d bytes: %v", n, err)
	}
	peak := 0.0
	for i := 0; i < len(b); i += 4 {
		v := float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i:])))
		if v < -1 || v > 1 {
			t.Fatalf("sample %d is out of range: %v", i/4, v)
		}
		peak = max(peak, math.Abs(v))
	}
	if peak < 0.1 {
		t.Fatalf("output is too quiet: peak=%v", peak)
	}
}

func TestFloatToInt16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, math.MaxInt16},
		{-1, -math.MaxInt16},
		{2, math.MaxInt16},
		{-2, -math.MaxInt16},
		{0.5, 16383},
	}
	for _, test := range tests {
		if have := floatToInt16(test.in); have != test.want {
			t.Errorf("floatToInt16(%v): have %d, want %d", test.in, have, test.want)
		}
	}
}
