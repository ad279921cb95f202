package sfzfile

import (
	"math"
	"strings"
)

// Region binds a sample and its playback parameters to the conditions
// that trigger it.
//
// A region is a read-only input for the engine: the parser (or any other
// producer) builds it once and the synth only reads from it afterwards.
// Many voices can point to the same region at the same time, so
// it must never be modified after it was handed to the synth.
//
// Ranges are expected to be normalized (Start <= End) and the numeric
// fields to be inside their valid domains already; no validation is done here.
type Region struct {
	// Sample is a path relative to the sample pool root directory.
	// Names starting with '*' are generators; only "*sine" is supported.
	Sample string

	KeyRange      Range[uint8]
	VelocityRange Range[float32] // Normalized velocity, [0, 1]

	// CCConditions must all be satisfied (normalized CC value inside the range)
	// for the region to be triggered.
	CCConditions []CCCondition

	// SequenceLength and SequencePosition implement round-robin layering.
	// The position is 1-based, a length of 1 means "always".
	SequenceLength   int
	SequencePosition int

	Trigger Trigger

	// Offset is the first sample frame to play.
	Offset int

	// SampleEnd is the last frame that can be played.
	// A zero value means "the end of the file".
	SampleEnd int

	// Delay postpones the voice start (in seconds).
	Delay float32

	LoopMode LoopMode

	// LoopRange overrides the file loop points when LoopRange.End is not zero.
	// LoopRange.End is exclusive: a cursor reaching it wraps to LoopRange.Start.
	LoopRange Range[int]

	PitchKeycenter uint8
	PitchKeytrack  int // Cents per key
	Transpose      int // Semitones
	Tune           int // Cents

	// BendUp and BendDown are the pitch shifts at the extreme
	// pitch wheel positions, in cents. BendDown is usually negative.
	BendUp   int
	BendDown int

	Volume      float32 // dB
	Amplitude   float32 // Percents, [0, 100]
	Pan         float32 // Percents, [-100, 100]
	Width       float32 // Percents, [-100, 100]
	AmpVeltrack float32 // Percents, [-100, 100]

	AmplitudeEG EGDescription

	// Cutoff enables the one-pole filter when it's above zero (Hz).
	Cutoff     float32
	FilterType FilterType

	// Group and OffBy implement the choke groups:
	// starting a region of group G releases every voice whose region has OffBy=G.
	// OffBy=0 disables the choking.
	Group   uint32
	OffBy   uint32
	OffMode OffMode

	// Polyphony limits the number of simultaneous voices of this region.
	// A zero value means "unlimited".
	Polyphony int

	// IgnoreSustain makes the region release on note-off even if
	// the sustain pedal is down.
	IgnoreSustain bool

	// NonStealable protects this region voices from the voice stealing.
	NonStealable bool

	AmplitudeCC *CCModifier
	PanCC       *CCModifier
}

// EGDescription describes an amplitude envelope.
// Times are in seconds, levels are in percents.
type EGDescription struct {
	Delay   float32
	Attack  float32
	Hold    float32
	Decay   float32
	Sustain float32
	Release float32
	Start   float32
}

type CCCondition struct {
	CC    int
	Range Range[float32] // Normalized CC value
}

// CCModifier binds a controller to a region parameter.
// Depth is expressed in the parameter units (percents for amplitude and pan).
type CCModifier struct {
	CC    int
	Depth float32
}

type LoopMode int

const (
	// LoopDefault loops if the region or the file defines loop points.
	LoopDefault LoopMode = iota
	LoopNone
	LoopOneShot
	LoopContinuous
	LoopSustain
)

type Trigger int

const (
	TriggerAttack Trigger = iota
	TriggerRelease
)

type OffMode int

const (
	OffFast OffMode = iota
	OffNormal
)

type FilterType int

const (
	FilterLowpass FilterType = iota
	FilterHighpass
)

// NewRegion returns a region with the engine defaults.
func NewRegion(sample string) *Region {
	return &Region{
		Sample:           sample,
		KeyRange:         NewRange[uint8](0, 127),
		VelocityRange:    NewRange[float32](0, 1),
		SequenceLength:   1,
		SequencePosition: 1,
		PitchKeycenter:   60,
		PitchKeytrack:    100,
		BendUp:           200,
		BendDown:         -200,
		Amplitude:        100,
		Width:            100,
		AmpVeltrack:      100,
		AmplitudeEG: EGDescription{
			Sustain: 100,
			Release: 0.001,
		},
	}
}

// IsGenerator reports whether the region plays a generated waveform
// instead of a sample file.
func (r *Region) IsGenerator() bool {
	return strings.HasPrefix(r.Sample, "*")
}

// MatchesNote checks the key and velocity conditions.
func (r *Region) MatchesNote(key uint8, velocity float32) bool {
	return r.KeyRange.ContainsWithEnd(key) && r.VelocityRange.ContainsWithEnd(velocity)
}

// MatchesCC checks the controller conditions against the current CC state.
func (r *Region) MatchesCC(cc *[128]float32) bool {
	for _, cond := range r.CCConditions {
		if cond.CC < 0 || cond.CC >= len(cc) {
			return false
		}
		if !cond.Range.ContainsWithEnd(cc[cond.CC]) {
			return false
		}
	}
	return true
}

// LoopPoints resolves the effective loop points.
// fileLoopStart and fileLoopEnd come from the sample metadata (fileHasLoop=false
// means there are none); the returned end is exclusive.
func (r *Region) LoopPoints(fileHasLoop bool, fileLoopStart, fileLoopEnd int) (start, end int, ok bool) {
	switch r.LoopMode {
	case LoopNone, LoopOneShot:
		return 0, 0, false
	}
	if r.LoopRange.End != 0 {
		return r.LoopRange.Start, r.LoopRange.End, r.LoopRange.End > r.LoopRange.Start
	}
	if fileHasLoop && fileLoopEnd > fileLoopStart {
		return fileLoopStart, fileLoopEnd, true
	}
	return 0, 0, false
}

// PitchRatio computes the playback speed multiplier for the key.
func (r *Region) PitchRatio(key uint8) float64 {
	cents := r.PitchKeytrack*(int(key)-int(r.PitchKeycenter)) + r.Tune + 100*r.Transpose
	return math.Exp2(float64(cents) / 1200)
}

// MaxPitchRatio returns the highest PitchRatio of the region keys
// with the pitch wheel bent all the way up or down.
func (r *Region) MaxPitchRatio() float64 {
	ratio := max(r.PitchRatio(r.KeyRange.Start), r.PitchRatio(r.KeyRange.End))
	bend := max(r.BendUp, r.BendDown, 0)
	return ratio * math.Exp2(float64(bend)/1200)
}

// BendCents converts a pitch wheel position in [-1, 1] to cents.
func (r *Region) BendCents(wheel float32) float32 {
	if wheel >= 0 {
		return wheel * float32(r.BendUp)
	}
	return -wheel * float32(r.BendDown)
}

// VelocityGain computes the linear gain for a normalized velocity.
// It combines the volume and the velocity tracking; the amplitude
// is applied separately as it can be modulated.
func (r *Region) VelocityGain(velocity float32) float32 {
	gain := float32(math.Pow(10, float64(r.Volume)/20))

	veltrack := r.AmpVeltrack / 100
	v := velocity
	if veltrack < 0 {
		v = 1 - velocity
		veltrack = -veltrack
	}
	return gain * (1 + veltrack*(v*v-1))
}
