package sampler

import (
	"testing"

	"github.com/quasilyte/sampler/sfzfile"
)

// The test durations are powers of two at 1024 Hz, so the frame counts are exact.
const envelopeTestRate = 1024

func newTestEnvelope(desc sfzfile.EGDescription) *ADSREnvelope {
	var e ADSREnvelope
	e.Reset(&desc, envelopeTestRate, 1)
	return &e
}

func TestADSRStages(t *testing.T) {
	e := newTestEnvelope(sfzfile.EGDescription{
		Attack:  0.0625,  // 64 frames
		Hold:    0.03125, // 32 frames
		Decay:   0.125,   // 128 frames
		Sustain: 50,
		Release: 0.0625, // 64 frames
	})

	out := make([]float32, 300)
	e.Block(out)

	for i, v := range out {
		if v < 0 || v > 1 {
			t.Fatalf("frame %d: %v is out of [0, 1]", i, v)
		}
	}
	for i := 1; i < 64; i++ {
		if out[i] < out[i-1] {
			t.Fatalf("attack frame %d: %v < %v", i, out[i], out[i-1])
		}
	}
	if diff := 1 - out[63]; diff > 1e-5 {
		t.Fatalf("attack ends at %v, want 1", out[63])
	}
	for i := 64; i < 96; i++ {
		if out[i] != 1 {
			t.Fatalf("hold frame %d: have %v, want 1", i, out[i])
		}
	}
	for i := 96; i < 224; i++ {
		if out[i] >= out[i-1] || out[i] < 0.5 {
			t.Fatalf("decay frame %d: %v (previous %v)", i, out[i], out[i-1])
		}
	}
	for i := 224; i < len(out); i++ {
		if out[i] != 0.5 {
			t.Fatalf("sustain frame %d: have %v, want 0.5", i, out[i])
		}
	}
	if e.Stage() != StageSustain {
		t.Fatalf("stage: have %v, want %v", e.Stage(), StageSustain)
	}

	e.Release(0)
	if !e.IsReleased() {
		t.Fatal("release is not registered")
	}
	release := make([]float32, 70)
	e.Block(release)
	prev := float32(0.5)
	for i, v := range release[:64] {
		if v >= prev {
			t.Fatalf("release frame %d: %v >= %v", i, v, prev)
		}
		prev = v
	}
	for i, v := range release[64:] {
		if v != 0 {
			t.Fatalf("frame %d after the release: %v", i, v)
		}
	}
	if !e.IsDone() {
		t.Fatalf("stage: have %v, want %v", e.Stage(), StageDone)
	}
}

func TestADSRDelay(t *testing.T) {
	e := newTestEnvelope(sfzfile.EGDescription{
		Delay:   0.0625,
		Attack:  0.0625,
		Sustain: 100,
		Start:   25,
	})
	out := make([]float32, 64+64+8)
	e.Block(out)
	for i := 0; i < 64; i++ {
		if out[i] != 0.25 {
			t.Fatalf("delay frame %d: have %v, want the start level", i, out[i])
		}
	}
	if out[64] <= 0.25 {
		t.Fatalf("attack doesn't start after the delay: %v", out[64])
	}
	for i := 128; i < len(out); i++ {
		if out[i] != 1 {
			t.Fatalf("frame %d: have %v, want 1", i, out[i])
		}
	}
}

func TestADSRReleaseDuringAttack(t *testing.T) {
	e := newTestEnvelope(sfzfile.EGDescription{
		Attack:  0.0625,
		Sustain: 100,
		Release: 0.0625,
	})

	// The release is sample accurate even inside a single block.
	e.Release(10)
	out := make([]float32, 80)
	e.Block(out)

	if diff := out[9] - 10.0/64; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("value before the release: have %v, want %v", out[9], 10.0/64)
	}
	for i := 10; i < 74; i++ {
		if out[i] >= out[i-1] {
			t.Fatalf("release frame %d: %v >= %v", i, out[i], out[i-1])
		}
	}
	for i := 74; i < len(out); i++ {
		if out[i] != 0 {
			t.Fatalf("frame %d after the release: %v", i, out[i])
		}
	}
	if !e.IsDone() {
		t.Fatal("envelope is not done")
	}

	// A second release has no effect.
	e.Release(0)
	if v := e.NextValue(); v != 0 {
		t.Fatalf("done envelope produced %v", v)
	}
}

func TestADSRBlockSplitting(t *testing.T) {
	desc := sfzfile.EGDescription{
		Attack:  0.0625,
		Hold:    0.03125,
		Decay:   0.125,
		Sustain: 30,
		Release: 0.0625,
	}
	whole := newTestEnvelope(desc)
	split := newTestEnvelope(desc)
	whole.Release(200)
	split.Release(200)

	want := make([]float32, 400)
	whole.Block(want)

	have := make([]float32, 400)
	for offset := 0; offset < len(have); offset += 37 {
		split.Block(have[offset:min(offset+37, len(have))])
	}
	for i := range want {
		diff := want[i] - have[i]
		if diff > 1e-5 || diff < -1e-5 {
			t.Fatalf("frame %d: have %v, want %v", i, have[i], want[i])
		}
	}
}

func TestLinearEnvelope(t *testing.T) {
	var e LinearEnvelope
	e.Reset(0)

	e.RegisterEvent(4, 1)
	out := make([]float32, 8)
	e.Block(out)
	want := []float32{0.25, 0.5, 0.75, 1, 1, 1, 1, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("frame %d: have %v, want %v", i, out[i], want[i])
		}
	}

	// The events are consumed by the block.
	e.Block(out)
	for i, v := range out {
		if v != 1 {
			t.Fatalf("frame %d: have %v, want 1", i, v)
		}
	}

	// An event past the block end is reached at the block end.
	e.RegisterEvent(100, 0)
	e.Block(out[:4])
	if out[3] != 0 || e.Value() != 0 {
		t.Fatalf("value at the block end: %v", out[3])
	}

	// The events are applied in the delay order.
	e.Reset(0)
	e.RegisterEvent(4, 0.5)
	e.RegisterEvent(2, 1)
	e.Block(out)
	if out[1] != 1 || out[3] != 0.5 || out[7] != 0.5 {
		t.Fatalf("unexpected output: %v", out)
	}

	// With equal delays, the last event wins.
	e.Reset(0)
	e.RegisterEvent(0, 0.3)
	e.RegisterEvent(0, 0.6)
	e.Block(out)
	for i, v := range out {
		if v != 0.6 {
			t.Fatalf("frame %d: have %v, want 0.6", i, v)
		}
	}
}

func TestLinearEnvelopeOverflow(t *testing.T) {
	var e LinearEnvelope
	e.Reset(0)
	for i := 0; i < maxEnvelopeEvents+10; i++ {
		e.RegisterEvent(i, float32(i))
	}
	out := make([]float32, 64)
	e.Block(out)
	if want := float32(maxEnvelopeEvents + 9); e.Value() != want {
		t.Fatalf("final value: have %v, want %v", e.Value(), want)
	}
}
