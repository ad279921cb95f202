// Package sampler implements a polyphonic sample-based synthesizer.
//
// The Synth maps the note events to the matching regions and plays
// them with a fixed set of voices. The sample data comes from a
// filepool.Pool: the first frames of every sample are kept in memory,
// the rest is streamed from the disk by the background workers.
//
// RenderBlock is the real-time entry point: it never allocates,
// never blocks and doesn't take any locks. The note events can be
// sent from another goroutine via Post; the direct NoteOn/NoteOff/CC
// calls must happen on the goroutine that calls RenderBlock.
package sampler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/quasilyte/sampler/audiobuf"
	"github.com/quasilyte/sampler/filepool"
	"github.com/quasilyte/sampler/internal/simd"
	"github.com/quasilyte/sampler/internal/spsc"
	"github.com/quasilyte/sampler/sfzfile"
)

type regionData struct {
	region *sfzfile.Region
	sample *filepool.Sample

	// sequence counts the region matches for the round-robin selection.
	sequence int
}

// Synth is a polyphonic sampler.
type Synth struct {
	config  Config
	logger  *slog.Logger
	kernels *simd.Kernels

	pool     *filepool.Pool
	ownsPool bool

	regions        []regionData
	attackRegions  [128][]int
	releaseRegions [128][]int

	// The voice arena. Every slot is either in the free list or
	// in the active list, never in both.
	voices     []Voice
	free       []int
	active     []int
	candidates []*Voice
	ageCounter uint64

	cc           [128]float32
	noteVelocity [128]uint8
	noteActive   [128]bool
	sustainDown  bool
	pitchWheel   float32

	volume float32

	scratch     *audiobuf.Buffer
	fade        *audiobuf.Buffer
	fadeRamp    []float32
	fadePending bool
	// fadeRead is the number of the fade frames already mixed.
	fadeRead int

	events *spsc.Queue[Event]

	numActive    atomic.Int64
	droppedNotes atomic.Int64
	stolenVoices atomic.Int64
}

// New creates a synth with all its voices.
// The returned synth has no regions; see LoadRegions.
func New(config Config) (*Synth, error) {
	applyConfigDefaults(&config)
	if err := validateSampleRate(config.SampleRate); err != nil {
		return nil, err
	}
	if err := validateSamplesPerBlock(config.SamplesPerBlock); err != nil {
		return nil, err
	}
	if config.NumVoices < 0 {
		return nil, errors.New("negative number of voices")
	}

	s := &Synth{
		config:  config,
		logger:  config.Logger,
		kernels: simd.Default(),
		pool:    config.Pool,
		volume:  1,
		events:  spsc.New[Event](config.EventQueueSize),
	}
	if s.pool == nil {
		s.pool = filepool.New(config.PoolConfig)
		s.ownsPool = true
	}
	if err := validateStreamFrames(config.SamplesPerBlock, s.pool); err != nil {
		return nil, err
	}

	s.allocateVoices(config.NumVoices)
	s.allocateBlockBuffers()

	return s, nil
}

func (s *Synth) allocateVoices(n int) {
	s.voices = make([]Voice, n)
	s.free = make([]int, 0, n)
	s.active = make([]int, 0, n)
	s.candidates = make([]*Voice, 0, n)
	for i := range s.voices {
		s.voices[i].init(i, s.kernels, s.pool, s.config.SampleRate, s.config.SamplesPerBlock)
	}
	for i := len(s.voices) - 1; i >= 0; i-- {
		s.free = append(s.free, i)
	}
}

func (s *Synth) allocateBlockBuffers() {
	n := s.config.SamplesPerBlock
	s.scratch = audiobuf.NewBuffer(2, n)
	s.fade = audiobuf.NewBuffer(2, n)
	s.fadeRamp = make([]float32, n)
	s.kernels.LinearRamp(s.fadeRamp, 1, -1/float32(n))
	s.fadePending = false
	s.fadeRead = 0
}

// Pool returns the sample pool used by the synth.
func (s *Synth) Pool() *filepool.Pool { return s.pool }

// Start launches the sample streaming if the synth owns its pool.
func (s *Synth) Start(ctx context.Context) error {
	if !s.ownsPool {
		return nil
	}
	return s.pool.Start(ctx)
}

// Close stops all voices and the sample streaming if the synth owns its pool.
func (s *Synth) Close() error {
	s.AllSoundOff()
	if !s.ownsPool {
		return nil
	}
	return s.pool.Close()
}

// LoadRegions replaces the instrument regions.
//
// The samples are preloaded, so this call does blocking I/O and
// must not be called concurrently with RenderBlock.
// A region whose sample can't be loaded stays silent; the load errors
// are logged and returned joined, but they don't stop the loading.
func (s *Synth) LoadRegions(regions []*sfzfile.Region) error {
	s.AllSoundOff()

	s.regions = s.regions[:0]
	for i := range s.attackRegions {
		s.attackRegions[i] = s.attackRegions[i][:0]
		s.releaseRegions[i] = s.releaseRegions[i][:0]
	}

	var errs []error
	for _, r := range regions {
		rd := regionData{region: r}
		if !r.IsGenerator() {
			sample, err := s.pool.Preload(r.Sample, regionLoops(r))
			if err != nil {
				s.logger.Warn("region sample is not loaded",
					slog.String("sample", r.Sample),
					slog.Any("err", err))
				errs = append(errs, err)
			}
			rd.sample = sample
			if err := s.fitStreamBudget(&rd); err != nil {
				errs = append(errs, err)
			}
		}

		index := len(s.regions)
		s.regions = append(s.regions, rd)
		for key := int(r.KeyRange.Start); key <= int(r.KeyRange.End) && key < 128; key++ {
			if r.Trigger == sfzfile.TriggerRelease {
				s.releaseRegions[key] = append(s.releaseRegions[key], index)
			} else {
				s.attackRegions[key] = append(s.attackRegions[key], index)
			}
		}
	}

	s.logger.Debug("regions loaded",
		slog.Int("regions", len(regions)),
		slog.Int("errors", len(errs)))
	return errors.Join(errs...)
}

// fitStreamBudget loads the region sample whole when its fastest
// playback would read more than the stream rings can hold.
func (s *Synth) fitStreamBudget(rd *regionData) error {
	if rd.sample == nil || rd.sample.InMemory() {
		return nil
	}
	speed := rd.sample.Info.SampleRate / s.config.SampleRate * rd.region.MaxPitchRatio()
	if streamFits(speed, s.config.SamplesPerBlock, s.pool.StreamFrames()) {
		return nil
	}
	sample, err := s.pool.Preload(rd.region.Sample, true)
	if err != nil {
		s.logger.Warn("region sample is too fast to stream and can't be loaded whole",
			slog.String("sample", rd.region.Sample),
			slog.Any("err", err))
		return err
	}
	s.logger.Debug("region sample is loaded whole",
		slog.String("sample", rd.region.Sample),
		slog.Float64("speed", speed))
	rd.sample = sample
	return nil
}

func (s *Synth) refitStreamBudget() {
	for i := range s.regions {
		// The errors were logged; the region keeps its head.
		_ = s.fitStreamBudget(&s.regions[i])
	}
}

// regionLoops reports whether the region may need a loop.
// The looped samples are always loaded whole.
func regionLoops(r *sfzfile.Region) bool {
	switch r.LoopMode {
	case sfzfile.LoopNone, sfzfile.LoopOneShot:
		return false
	case sfzfile.LoopContinuous, sfzfile.LoopSustain:
		return true
	default:
		return r.LoopRange.End != 0
	}
}

// SetSampleRate changes the output sample rate.
// All voices are stopped. The rate is unchanged if the error is returned.
// The samples that become too fast to stream are loaded whole,
// so this call may do blocking I/O.
//
// Must not be called concurrently with RenderBlock.
func (s *Synth) SetSampleRate(sampleRate float64) error {
	if err := validateSampleRate(sampleRate); err != nil {
		return err
	}
	s.AllSoundOff()
	s.config.SampleRate = sampleRate
	for i := range s.voices {
		s.voices[i].setSampleRate(sampleRate)
	}
	s.refitStreamBudget()
	return nil
}

func (s *Synth) SampleRate() float64 { return s.config.SampleRate }

// SetSamplesPerBlock changes the max RenderBlock size.
// The size is unchanged if the error is returned.
// Like SetSampleRate, it may load some samples whole.
//
// Must not be called concurrently with RenderBlock.
func (s *Synth) SetSamplesPerBlock(n int) error {
	if err := validateSamplesPerBlock(n); err != nil {
		return err
	}
	if err := validateStreamFrames(n, s.pool); err != nil {
		return err
	}
	s.config.SamplesPerBlock = n
	for i := range s.voices {
		s.voices[i].setSamplesPerBlock(n)
	}
	s.allocateBlockBuffers()
	s.refitStreamBudget()
	return nil
}

func (s *Synth) SamplesPerBlock() int { return s.config.SamplesPerBlock }

// SetNumVoices changes the max polyphony.
// All voices are stopped.
//
// Must not be called concurrently with RenderBlock.
func (s *Synth) SetNumVoices(n int) error {
	if n < 0 {
		return errors.New("negative number of voices")
	}
	s.AllSoundOff()
	s.config.NumVoices = n
	s.allocateVoices(n)
	return nil
}

func (s *Synth) NumVoices() int { return len(s.voices) }

// SetVolume sets the linear output gain.
func (s *Synth) SetVolume(volume float32) {
	s.volume = clampMin(volume, 0)
}

// SetVolumeDB sets the output gain in decibels.
func (s *Synth) SetVolumeDB(db float64) {
	s.SetVolume(float32(db2mag(db)))
}

func (s *Synth) Volume() float32 { return s.volume }

// NumActiveVoices returns the number of voices that are not idle.
// It's safe to call it from any goroutine.
func (s *Synth) NumActiveVoices() int {
	return int(s.numActive.Load())
}

// Post queues the event to be applied at the start of the next RenderBlock.
// It's safe to call Post from one goroutine concurrently with RenderBlock.
// It returns false if the queue is full.
func (s *Synth) Post(e Event) bool {
	return s.events.Push(e)
}

// RenderBlock renders the next block of audio into out.
// out must be a stereo span of at most SamplesPerBlock frames.
// The output is not clipped.
func (s *Synth) RenderBlock(out audiobuf.Span) {
	assert(out.NumChannels() == 2, "output must be stereo")
	assert(out.NumFrames() <= s.config.SamplesPerBlock, "output is larger than the block size")

	s.drainEvents()

	n := out.NumFrames()
	out.Fill(0)
	if s.fadePending {
		s.mixFade(out)
	}

	scratch := s.scratch.Span().First(n)
	for i := 0; i < len(s.active); {
		v := &s.voices[s.active[i]]
		v.RenderBlock(scratch)
		out.MultiplyAdd(scratch, s.volume)
		if v.state == VoiceIdle {
			s.retireAt(i)
			continue
		}
		i++
	}
}

func (s *Synth) drainEvents() {
	for {
		e, ok := s.events.Pop()
		if !ok {
			return
		}
		switch e.Kind {
		case EventNoteOn:
			key, velocity := e.NoteData()
			s.NoteOn(e.Delay, key, velocity)
		case EventNoteOff:
			key, velocity := e.NoteData()
			s.NoteOff(e.Delay, key, velocity)
		case EventCC:
			cc, value := e.CCData()
			s.CC(e.Delay, cc, value)
		case EventPitchWheel:
			s.PitchWheel(e.Delay, e.PitchWheelData())
		case EventAllSoundOff:
			s.AllSoundOff()
		}
	}
}

// AllSoundOff stops every voice immediately.
func (s *Synth) AllSoundOff() {
	for _, index := range s.active {
		s.voices[index].Reset()
		s.free = append(s.free, index)
	}
	s.active = s.active[:0]
	s.fade.Clear()
	s.fadePending = false
	s.fadeRead = 0
	s.sustainDown = false
	s.numActive.Store(0)
}

func (s *Synth) allocateVoice() *Voice {
	if len(s.free) == 0 {
		if !s.stealVoice() {
			return nil
		}
	}
	index := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.active = append(s.active, index)
	s.numActive.Store(int64(len(s.active)))
	return &s.voices[index]
}

// retireAt moves the i-th active voice to the free list.
func (s *Synth) retireAt(i int) {
	index := s.active[i]
	last := len(s.active) - 1
	s.active[i] = s.active[last]
	s.active = s.active[:last]
	s.free = append(s.free, index)
	s.numActive.Store(int64(len(s.active)))
}

func (s *Synth) retire(v *Voice) {
	for i, index := range s.active {
		if index == v.id {
			s.retireAt(i)
			return
		}
	}
}

func (s *Synth) stealVoice() bool {
	s.candidates = s.candidates[:0]
	for _, index := range s.active {
		v := &s.voices[index]
		if v.region.NonStealable {
			continue
		}
		if s.config.ProtectSustained && v.sustained {
			continue
		}
		s.candidates = append(s.candidates, v)
	}
	choice := s.config.StealPolicy.Choose(s.candidates)
	if choice < 0 || choice >= len(s.candidates) {
		return false
	}
	s.fadeOut(s.candidates[choice])
	s.stolenVoices.Add(1)
	return true
}

// fadeOut renders one more block of the voice with a fade out ramp
// and stops it. The faded frames are mixed into the next rendered blocks.
func (s *Synth) fadeOut(v *Voice) {
	n := s.config.SamplesPerBlock
	tmp := s.scratch.Span().First(n)
	v.RenderBlock(tmp)

	// The victim fade is aligned with the frames that are not mixed yet,
	// so a pending fade of another voice is never cut.
	s.compactFade()
	fade := s.fade.Span()
	for ch := 0; ch < fade.NumChannels(); ch++ {
		s.kernels.MultiplyAdd(fade.Channel(ch), tmp.Channel(ch), s.fadeRamp)
	}
	s.fadePending = true

	v.Reset()
	s.retire(v)
}

// compactFade moves the unmixed fade frames to the buffer start.
func (s *Synth) compactFade() {
	if s.fadeRead == 0 {
		return
	}
	fade := s.fade.Span()
	rest := fade.NumFrames() - s.fadeRead
	for ch := 0; ch < fade.NumChannels(); ch++ {
		samples := fade.Channel(ch)
		copy(samples, samples[s.fadeRead:])
		clear(samples[rest:])
	}
	s.fadeRead = 0
}

// mixFade adds the pending fade frames to out.
// The blocks shorter than SamplesPerBlock get the fade in parts.
func (s *Synth) mixFade(out audiobuf.Span) {
	fade := s.fade.Span()
	m := min(out.NumFrames(), fade.NumFrames()-s.fadeRead)
	out.First(m).MultiplyAdd(fade.Subspan(s.fadeRead, m), s.volume)
	s.fadeRead += m
	if s.fadeRead == fade.NumFrames() {
		s.fade.Clear()
		s.fadeRead = 0
		s.fadePending = false
	}
}
