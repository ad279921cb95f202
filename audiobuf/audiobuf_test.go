package audiobuf

import (
	"math"
	"testing"
	"unsafe"
)

func TestBufferAlignment(t *testing.T) {
	for _, numFrames := range []int{0, 1, 15, 16, 17, 512, 1000} {
		b := NewBuffer(2, numFrames)
		if b.NumFrames() != numFrames || b.NumChannels() != 2 {
			t.Fatalf("buffer %d: have %dx%d", numFrames, b.NumChannels(), b.NumFrames())
		}
		for ch := 0; ch < 2; ch++ {
			data := b.channels[ch]
			if cap(data)%FramePadding != 0 {
				t.Errorf("frames=%d channel %d: capacity %d is not padded", numFrames, ch, cap(data))
			}
			if cap(data) == 0 {
				continue
			}
			addr := uintptr(unsafe.Pointer(unsafe.SliceData(data)))
			if addr%Alignment != 0 {
				t.Errorf("frames=%d channel %d: address %x is not aligned", numFrames, ch, addr)
			}
		}
	}
}

func TestSlabBuffers(t *testing.T) {
	slab := NewSlab(4096, 2)
	for i := 0; i < 30; i++ {
		b := slab.NewBuffer(1, 300)
		addr := uintptr(unsafe.Pointer(unsafe.SliceData(b.Channel(0))))
		if addr%Alignment != 0 {
			t.Fatalf("slab buffer %d is not aligned", i)
		}
		for _, v := range b.Channel(0) {
			if v != 0 {
				t.Fatalf("slab buffer %d is not zeroed", i)
			}
		}
		b.Channel(0)[299] = 1
	}
	if slab.SizeBytes() != 2*4096*4 {
		t.Fatalf("slab size: have %d", slab.SizeBytes())
	}
	big := slab.NewBuffer(2, 10000)
	if big.NumFrames() != 10000 {
		t.Fatalf("big buffer frames: %d", big.NumFrames())
	}
}

func TestBufferResize(t *testing.T) {
	b := NewBuffer(2, 512)
	b.Channel(0)[10] = 1
	b.Resize(256)
	if b.NumFrames() != 256 || b.Span().NumFrames() != 256 {
		t.Fatalf("shrink: have %d frames", b.NumFrames())
	}
	if !b.Span().IsSilent() {
		t.Fatalf("resize must clear the buffer")
	}
	b.Resize(4096)
	if b.NumFrames() != 4096 || len(b.Channel(1)) != 4096 {
		t.Fatalf("grow: have %d frames", b.NumFrames())
	}
}

func TestSpanViews(t *testing.T) {
	b := NewBuffer(2, 8)
	for i := range b.Channel(0) {
		b.Channel(0)[i] = float32(i)
		b.Channel(1)[i] = float32(-i)
	}
	s := b.Span()

	tests := []struct {
		name      string
		span      Span
		wantFirst float32
		wantLen   int
	}{
		{"first", s.First(3), 0, 3},
		{"last", s.Last(3), 5, 3},
		{"subspan", s.Subspan(2, 4), 2, 4},
		{"from", s.From(6), 6, 2},
		{"empty", s.Subspan(8, 0), -1, 0},
	}
	for _, test := range tests {
		if test.span.NumFrames() != test.wantLen {
			t.Errorf("%s: have %d frames, want %d", test.name, test.span.NumFrames(), test.wantLen)
			continue
		}
		if test.wantLen == 0 {
			continue
		}
		if v := test.span.Channel(0)[0]; v != test.wantFirst {
			t.Errorf("%s: first frame is %v, want %v", test.name, v, test.wantFirst)
		}
		if v := test.span.Channel(1)[0]; v != -test.wantFirst {
			t.Errorf("%s: first right frame is %v, want %v", test.name, v, -test.wantFirst)
		}
	}

	// Views share the memory with the buffer.
	s.Subspan(2, 2).Fill(42)
	if b.Channel(0)[2] != 42 || b.Channel(1)[3] != 42 || b.Channel(0)[4] != 4 {
		t.Fatalf("subspan fill leaked: %v", b.Channel(0))
	}
}

func TestSpanSubspanOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected a panic")
		}
	}()
	NewBuffer(1, 4).Span().Subspan(2, 3)
}

func TestSpanArithmetic(t *testing.T) {
	a := NewSpan([]float32{1, 2, 3, 4}, []float32{1, 1, 1, 1})
	b := NewSpan([]float32{1, 1, 1, 1}, []float32{2, 2, 2, 2, 2})
	if b.NumFrames() != 4 {
		t.Fatalf("NewSpan must use the shortest channel")
	}

	a.Add(b)
	if a.Channel(0)[3] != 5 || a.Channel(1)[0] != 3 {
		t.Fatalf("add: %v %v", a.Channel(0), a.Channel(1))
	}

	a.ApplyGain(0.5)
	if a.Channel(0)[3] != 2.5 || a.Channel(1)[0] != 1.5 {
		t.Fatalf("gain: %v %v", a.Channel(0), a.Channel(1))
	}

	a.ApplyGainSpan([]float32{0, 1, 2, 0})
	if a.Channel(0)[0] != 0 || a.Channel(0)[2] != 4 || a.Channel(1)[1] != 1.5 {
		t.Fatalf("gain span: %v %v", a.Channel(0), a.Channel(1))
	}

	a.CopyFrom(b)
	if a.Channel(0)[1] != 1 || a.Channel(1)[1] != 2 {
		t.Fatalf("copy: %v %v", a.Channel(0), a.Channel(1))
	}

	a.MultiplyAdd(b, 2)
	if a.Channel(0)[1] != 3 || a.Channel(1)[1] != 6 {
		t.Fatalf("multiply-add: %v %v", a.Channel(0), a.Channel(1))
	}

	mono := NewSpan([]float32{1, 1, 1, 1})
	a.Fill(0)
	a.Add(mono)
	if a.Channel(1)[2] != 1 {
		t.Fatalf("mono must be mixed into every channel")
	}

	ms := NewSpan([]float32{1, -1}, []float32{0, 0}).MeanSquared()
	if math.Abs(float64(ms)-0.5) > 1e-6 {
		t.Fatalf("mean squared: have %v, want 0.5", ms)
	}
	if (Span{}).MeanSquared() != 0 {
		t.Fatalf("empty span power must be 0")
	}
}
