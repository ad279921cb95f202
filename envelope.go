package sampler

import (
	"math"

	"github.com/quasilyte/sampler/internal/simd"
	"github.com/quasilyte/sampler/sfzfile"
)

// virtuallyZero is the level the exponential segments aim at,
// since they can't reach the true zero.
const virtuallyZero = 5e-5

// EnvelopeStage is a segment of the ADSR envelope.
// The stages are always visited in the declaration order,
// although some of them can be skipped by the release.
type EnvelopeStage uint8

const (
	StageDelay EnvelopeStage = iota
	StageAttack
	StageHold
	StageDecay
	StageSustain
	StageRelease
	StageDone
)

// ADSREnvelope is a delay-attack-hold-decay-sustain-release envelope generator.
//
// The attack is linear, the decay and release are exponential.
// All durations are measured in frames.
type ADSREnvelope struct {
	kernels *simd.Kernels

	stage EnvelopeStage

	delay   int
	attack  int
	hold    int
	decay   int
	release int

	start   float32
	peak    float32
	sustain float32

	value float32
	step  float32

	releasePending bool
	releaseDelay   int
}

// Reset prepares the envelope for a new note.
// depth scales all levels; it's 1 for the amplitude envelopes.
func (e *ADSREnvelope) Reset(desc *sfzfile.EGDescription, sampleRate float64, depth float32) {
	if e.kernels == nil {
		e.kernels = simd.Default()
	}
	e.stage = StageDelay
	e.delay = secondsToFrames(desc.Delay, sampleRate)
	e.attack = secondsToFrames(desc.Attack, sampleRate)
	e.hold = secondsToFrames(desc.Hold, sampleRate)
	e.decay = secondsToFrames(desc.Decay, sampleRate)
	e.release = secondsToFrames(desc.Release, sampleRate)
	e.peak = depth
	e.start = depth * clamp(desc.Start/100, 0, 1)
	e.sustain = depth * clamp(desc.Sustain/100, 0, 1)
	e.value = e.start
	e.step = 0
	e.releasePending = false
	e.releaseDelay = 0
}

func (e *ADSREnvelope) Stage() EnvelopeStage { return e.stage }

// Value returns the last produced level.
func (e *ADSREnvelope) Value() float32 { return e.value }

// IsReleased reports whether the release was started or scheduled.
func (e *ADSREnvelope) IsReleased() bool {
	return e.releasePending || e.stage >= StageRelease
}

func (e *ADSREnvelope) IsDone() bool { return e.stage == StageDone }

// Release schedules the release stage to start after delay frames,
// counting from the next produced frame.
// A release that was already scheduled or started is not changed.
func (e *ADSREnvelope) Release(delay int) {
	if e.IsReleased() {
		return
	}
	e.releasePending = true
	e.releaseDelay = clampMin(delay, 0)
}

// NextValue produces a single frame.
func (e *ADSREnvelope) NextValue() float32 {
	var v [1]float32
	e.Block(v[:])
	return v[0]
}

// Block fills out with the next len(out) envelope frames.
func (e *ADSREnvelope) Block(out []float32) {
	for len(out) != 0 {
		n := len(out)
		if e.releasePending {
			if e.releaseDelay == 0 {
				e.startRelease()
			} else {
				n = min(n, e.releaseDelay)
				e.releaseDelay -= n
			}
		}
		e.render(out[:n])
		out = out[n:]
	}
}

func (e *ADSREnvelope) startRelease() {
	e.releasePending = false
	e.stage = StageRelease
	if e.value > virtuallyZero {
		e.step = float32(math.Exp((math.Log(virtuallyZero) - math.Log(float64(e.value))) / float64(max(e.release, 1))))
	} else {
		e.step = 1
	}
}

func (e *ADSREnvelope) render(out []float32) {
	for len(out) != 0 {
		switch e.stage {
		case StageDelay:
			n := min(len(out), e.delay)
			e.kernels.Fill(out[:n], e.value)
			e.delay -= n
			out = out[n:]
			if e.delay == 0 {
				e.stage = StageAttack
				e.step = (e.peak - e.value) / float32(max(e.attack, 1))
			}

		case StageAttack:
			n := min(len(out), e.attack)
			e.value = e.kernels.LinearRamp(out[:n], e.value, e.step)
			if e.value > e.peak {
				// Rounding errors of the ramp.
				for i, v := range out[:n] {
					out[i] = min(v, e.peak)
				}
				e.value = e.peak
			}
			e.attack -= n
			out = out[n:]
			if e.attack == 0 {
				e.value = e.peak
				e.stage = StageHold
			}

		case StageHold:
			n := min(len(out), e.hold)
			e.kernels.Fill(out[:n], e.value)
			e.hold -= n
			out = out[n:]
			if e.hold == 0 {
				e.stage = StageDecay
				e.step = 1
				if e.peak > 0 {
					ratio := min(float64(e.sustain+virtuallyZero)/float64(e.peak), 1)
					e.step = float32(math.Exp(math.Log(ratio) / float64(max(e.decay, 1))))
				}
			}

		case StageDecay:
			n := min(len(out), e.decay)
			e.value = e.kernels.MultiplicativeRamp(out[:n], e.value, e.step)
			e.decay -= n
			out = out[n:]
			if e.decay == 0 {
				e.value = e.sustain
				e.stage = StageSustain
			}

		case StageSustain:
			e.kernels.Fill(out, e.value)
			return

		case StageRelease:
			n := min(len(out), e.release)
			e.value = e.kernels.MultiplicativeRamp(out[:n], e.value, e.step)
			e.release -= n
			out = out[n:]
			if e.release == 0 {
				e.value = 0
				e.stage = StageDone
			}

		default:
			e.kernels.Fill(out, 0)
			return
		}
	}
}
