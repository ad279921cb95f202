package sampler

import (
	"math"

	"github.com/quasilyte/sampler/audiobuf"
	"github.com/quasilyte/sampler/filepool"
	"github.com/quasilyte/sampler/internal/simd"
	"github.com/quasilyte/sampler/sfzfile"
)

// VoiceState is a voice lifecycle state.
//
// A voice goes Idle -> Playing on Start, Playing -> Releasing on Release
// and back to Idle when its envelope is over, the sample ended, or it was stolen.
type VoiceState uint8

const (
	VoiceIdle VoiceState = iota
	VoicePlaying
	VoiceReleasing
)

func (s VoiceState) String() string {
	switch s {
	case VoiceIdle:
		return "idle"
	case VoicePlaying:
		return "playing"
	case VoiceReleasing:
		return "releasing"
	default:
		return "unknown"
	}
}

// Voice is a single note instance of a region.
//
// Voices are owned by the Synth; the exported methods are
// mostly useful for the voice stealing policies and tests.
// A voice never allocates after it was created.
type Voice struct {
	id          int
	regionIndex int
	kernels     *simd.Kernels
	pool        *filepool.Pool

	state  VoiceState
	region *sfzfile.Region
	sample *filepool.Sample
	stream *filepool.Stream

	key       uint8
	velocity  float32
	trigger   sfzfile.Trigger
	age       uint64
	sustained bool

	sampleRate float64

	// Playback cursor state, in the sample frames.
	// speed is the unbent playback rate; the bend envelope
	// holds the pitch wheel offset in cents.
	speed            float64
	position         float64
	sourceEnd        int
	loopStart        int
	loopEnd          int
	looping          bool
	loopUntilRelease bool
	finished         bool

	// startDelay is the number of silent frames before the voice starts.
	startDelay int

	gain          float32
	width         float32
	eg            ADSREnvelope
	amplitude     LinearEnvelope
	pan           LinearEnvelope
	bend          LinearEnvelope
	wheel         float32
	filter        OnePoleFilter
	filterEnabled bool

	sinePhase float64
	sineStep  float64

	power float32

	// The per-block scratch memory.
	jumps      []float32
	steps      []float32
	positions  []float32
	left       []float32
	right      []float32
	envelope   []float32
	modulation []float32
	indices    []int
	window     *audiobuf.Buffer
}

func newVoice(id int, kernels *simd.Kernels, pool *filepool.Pool, sampleRate float64, samplesPerBlock int) *Voice {
	v := &Voice{}
	v.init(id, kernels, pool, sampleRate, samplesPerBlock)
	return v
}

func (v *Voice) init(id int, kernels *simd.Kernels, pool *filepool.Pool, sampleRate float64, samplesPerBlock int) {
	v.id = id
	v.kernels = kernels
	v.pool = pool
	v.sampleRate = sampleRate
	v.eg.kernels = kernels
	v.amplitude.kernels = kernels
	v.pan.kernels = kernels
	v.bend.kernels = kernels
	v.filter.kernels = kernels
	v.setSamplesPerBlock(samplesPerBlock)
}

func (v *Voice) setSamplesPerBlock(n int) {
	v.jumps = make([]float32, n)
	v.steps = make([]float32, n)
	v.positions = make([]float32, n)
	v.left = make([]float32, n)
	v.right = make([]float32, n)
	v.envelope = make([]float32, n)
	v.modulation = make([]float32, n)
	v.indices = make([]int, n)
	v.filter.reserve(n)
	v.window = audiobuf.NewBuffer(2, 2*n+8)
}

func (v *Voice) setSampleRate(sampleRate float64) {
	v.sampleRate = sampleRate
}

func (v *Voice) ID() int { return v.id }

func (v *Voice) State() VoiceState { return v.state }

func (v *Voice) Region() *sfzfile.Region { return v.region }

func (v *Voice) Key() uint8 { return v.key }

// Age is the note start counter value: the lower, the older.
func (v *Voice) Age() uint64 { return v.age }

// Power is the mean squared output of the last rendered block.
func (v *Voice) Power() float32 { return v.power }

// IsSustained reports whether the note was released while the sustain pedal was down.
func (v *Voice) IsSustained() bool { return v.sustained }

func (v *Voice) IsReleasing() bool { return v.state == VoiceReleasing }

// Envelope returns the amplitude envelope state.
func (v *Voice) Envelope() *ADSREnvelope { return &v.eg }

// Start binds the voice to a region and starts playing it after delay frames.
//
// sample can be nil only for the generator regions;
// Start returns false if there is nothing to play.
func (v *Voice) Start(region *sfzfile.Region, sample *filepool.Sample, key uint8, velocity float32, delay int, trigger sfzfile.Trigger, cc *[128]float32) bool {
	if sample == nil && !region.IsGenerator() {
		return false
	}

	v.state = VoicePlaying
	v.region = region
	v.sample = sample
	v.key = key
	v.velocity = velocity
	v.trigger = trigger
	v.sustained = false
	v.finished = false
	v.power = 0
	v.startDelay = clampMin(delay, 0) + secondsToFrames(region.Delay, v.sampleRate)

	v.gain = region.VelocityGain(velocity)
	v.width = region.Width / 100
	v.amplitude.Reset(v.amplitudeFor(cc))
	v.pan.Reset(v.panFor(cc))
	v.bend.Reset(region.BendCents(v.wheel))
	v.eg.Reset(&region.AmplitudeEG, v.sampleRate, 1)

	v.filterEnabled = region.Cutoff > 0
	if v.filterEnabled {
		v.filter.Setup(region.FilterType, float64(region.Cutoff), v.sampleRate)
	}

	pitch := region.PitchRatio(key)
	if sample == nil {
		freq := midiFrequency(float64(region.PitchKeycenter)) * pitch
		v.sinePhase = 0
		v.sineStep = 2 * math.Pi * freq / v.sampleRate
		v.speed = 1
		return true
	}

	info := &sample.Info
	v.speed = info.SampleRate / v.sampleRate * pitch
	if !(v.speed > 0) || math.IsInf(v.speed, 0) {
		v.speed = pitch
	}
	v.sourceEnd = info.NumFrames
	if region.SampleEnd > 0 {
		v.sourceEnd = min(v.sourceEnd, region.SampleEnd)
	}
	v.position = float64(clamp(region.Offset, 0, max(v.sourceEnd-1, 0)))

	loopStart, loopEnd, ok := region.LoopPoints(info.HasLoop, info.LoopStart, info.LoopEnd)
	loopEnd = min(loopEnd, v.sourceEnd)
	v.looping = ok && sample.InMemory() && loopStart >= 0 && loopStart < loopEnd
	v.loopStart = loopStart
	v.loopEnd = loopEnd
	v.loopUntilRelease = region.LoopMode == sfzfile.LoopSustain
	if v.looping && v.position >= float64(v.loopEnd) {
		v.position = float64(v.loopStart)
	}

	v.stream = nil
	if v.pool != nil && !v.looping && v.canStream(region) {
		v.stream = v.pool.Acquire(sample)
	}
	return true
}

// canStream reports whether the stream ring can keep up with the
// voice at the highest pitch wheel position.
// Otherwise the voice plays the preloaded frames only.
func (v *Voice) canStream(region *sfzfile.Region) bool {
	bend := max(region.BendUp, region.BendDown, 0)
	speed := v.speed * math.Exp2(float64(bend)/1200)
	return streamFits(speed, len(v.jumps), v.pool.StreamFrames())
}

func (v *Voice) amplitudeFor(cc *[128]float32) float32 {
	amplitude := v.region.Amplitude
	if mod := v.region.AmplitudeCC; mod != nil && cc != nil {
		amplitude += mod.Depth * cc[mod.CC&127]
	}
	return clamp(amplitude, 0, 100) / 100
}

func (v *Voice) panFor(cc *[128]float32) float32 {
	pan := v.region.Pan
	if mod := v.region.PanCC; mod != nil && cc != nil {
		pan += mod.Depth * cc[mod.CC&127]
	}
	return clamp(pan, -100, 100) / 100
}

// Release starts the release stage after delay frames of the next block.
// It has no effect on a voice that is not playing.
func (v *Voice) Release(delay int) {
	if v.state != VoicePlaying {
		return
	}
	v.state = VoiceReleasing
	v.sustained = false
	if v.loopUntilRelease {
		v.looping = false
	}
	// The envelope doesn't run until the start delay is over.
	v.eg.Release(clampMin(delay-v.startDelay, 0))
}

// RegisterCC updates the controller modulations of the voice.
// state holds the controller values with the change already applied.
func (v *Voice) RegisterCC(delay, cc int, state *[128]float32) {
	if v.state == VoiceIdle {
		return
	}
	delay = clampMin(delay-v.startDelay, 0)
	if mod := v.region.AmplitudeCC; mod != nil && mod.CC == cc {
		v.amplitude.RegisterEvent(delay, v.amplitudeFor(state))
	}
	if mod := v.region.PanCC; mod != nil && mod.CC == cc {
		v.pan.RegisterEvent(delay, v.panFor(state))
	}
}

// RegisterPitchWheel schedules a pitch wheel move after delay frames
// of the next block; value is normalized to [-1, 1].
func (v *Voice) RegisterPitchWheel(delay int, value float32) {
	v.wheel = value
	if v.state == VoiceIdle {
		return
	}
	v.bend.RegisterEvent(clampMin(delay-v.startDelay, 0), v.region.BendCents(value))
}

// Reset returns the voice to the idle state right away.
func (v *Voice) Reset() {
	if v.stream != nil {
		v.pool.Release(v.stream)
		v.stream = nil
	}
	v.state = VoiceIdle
	v.region = nil
	v.sample = nil
	v.sustained = false
	v.power = 0
	v.filter.Reset()
}
