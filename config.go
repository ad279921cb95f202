package sampler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/quasilyte/sampler/filepool"
)

var (
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	ErrInvalidBlockSize  = errors.New("invalid block size")
)

const (
	maxSampleRate      = 384000
	maxSamplesPerBlock = 8192

	// minStreamBlocks is the min streaming ring size in blocks
	// of the source frames a voice reads.
	minStreamBlocks = 2
)

// Config configures the Synth.
//
// Only the SampleRate and SamplesPerBlock can be changed after
// the synth is created, see Synth.SetSampleRate and Synth.SetSamplesPerBlock.
type Config struct {
	// SampleRate is the output sample rate.
	//
	// A zero value means 44100.
	SampleRate float64

	// SamplesPerBlock is the max number of frames rendered by a single RenderBlock call.
	// All voice buffers are preallocated for this size.
	//
	// A zero value means 512.
	SamplesPerBlock int

	// NumVoices is the max polyphony.
	// When all voices are busy, new notes steal the voices selected by the StealPolicy.
	//
	// A zero value means 64.
	NumVoices int

	// StealPolicy selects the voice to steal.
	//
	// A zero value means OldestReleasingFirst.
	StealPolicy StealPolicy

	// ProtectSustained forbids stealing the voices that are
	// held only by the sustain pedal.
	ProtectSustained bool

	// EventQueueSize is the capacity of the Post event queue.
	//
	// A zero value means 1024.
	EventQueueSize int

	// Pool is the sample pool used by the synth.
	// The synth doesn't start or close a pool it didn't create.
	//
	// A zero value means "create a pool using PoolConfig".
	Pool *filepool.Pool

	// PoolConfig is used to create a pool when Pool is nil.
	PoolConfig filepool.Config

	// Logger is used to report non-fatal loading problems.
	// It's never called from RenderBlock.
	//
	// A zero value means slog.Default().
	Logger *slog.Logger
}

func applyConfigDefaults(config *Config) {
	if config.SampleRate == 0 {
		config.SampleRate = 44100
	}
	if config.SamplesPerBlock == 0 {
		config.SamplesPerBlock = 512
	}
	if config.NumVoices == 0 {
		config.NumVoices = 64
	}
	if config.StealPolicy == nil {
		config.StealPolicy = OldestReleasingFirst{}
	}
	if config.EventQueueSize == 0 {
		config.EventQueueSize = 1024
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.PoolConfig.Logger == nil {
		config.PoolConfig.Logger = config.Logger
	}
}

func validateSampleRate(sampleRate float64) error {
	if math.IsNaN(sampleRate) || sampleRate <= 0 || sampleRate > maxSampleRate {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, sampleRate)
	}
	return nil
}

func validateSamplesPerBlock(n int) error {
	if n < 1 || n > maxSamplesPerBlock {
		return fmt.Errorf("%w: %d (want [1, %d])", ErrInvalidBlockSize, n, maxSamplesPerBlock)
	}
	return nil
}

func validateStreamFrames(n int, pool *filepool.Pool) error {
	if pool == nil || streamFits(1, n, pool.StreamFrames()) {
		return nil
	}
	return fmt.Errorf("%w: %d-frame blocks don't fit %d-frame stream rings",
		ErrInvalidBlockSize, n, pool.StreamFrames())
}

// streamFits reports whether a ring of capacity frames holds minStreamBlocks
// blocks of the source frames read at the given playback speed.
func streamFits(speed float64, samplesPerBlock, capacity int) bool {
	need := int(math.Ceil(speed * float64(samplesPerBlock)))
	return need*minStreamBlocks <= capacity
}
