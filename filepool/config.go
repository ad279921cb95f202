package filepool

import (
	"log/slog"
	"time"
)

// Config configures the Pool.
//
// These settings can't be changed after the pool is created.
type Config struct {
	// RootDir is the directory the sample names are resolved against.
	// It's only used by the default WAVOpener.
	//
	// A zero value means "current directory".
	RootDir string

	// PreloadFrames is the number of frames of every sample that are
	// loaded into memory by Preload. These frames are available for the
	// playback immediately, the rest is streamed in the background.
	//
	// PreloadAll (or any negative value) disables the streaming:
	// every file is loaded whole.
	//
	// A zero value means DefaultPreloadFrames.
	PreloadFrames int

	// StreamFrames is the capacity of every streaming ring buffer.
	// It should cover several render blocks at the highest playback rate;
	// the synth rejects a pool whose rings are too small for its block size.
	//
	// A zero value means 4*DefaultPreloadFrames.
	StreamFrames int

	// NumStreams is the max number of concurrently streamed voices.
	// When there are no free streams, the voice plays the preloaded frames only.
	//
	// A zero value means 64.
	NumStreams int

	// NumWorkers is the number of background streaming goroutines.
	//
	// A zero value means 2.
	NumWorkers int

	// ChunkFrames is the max number of frames a worker decodes at once.
	//
	// A zero value means 1024.
	ChunkFrames int

	// PollInterval is the period of the worker wakeups in addition
	// to the explicit wakeups caused by Acquire.
	//
	// A zero value means 5ms.
	PollInterval time.Duration

	// OpenRetries is the number of extra attempts a worker makes to open
	// a file that fails to open (e.g. a slow network share).
	// Files that don't exist are never retried.
	//
	// A zero value means 3.
	OpenRetries int

	// Opener provides access to the sample files.
	//
	// A zero value means WAVOpener{Root: RootDir}.
	Opener Opener

	// Logger is used for the recoverable conditions reporting.
	//
	// A zero value means slog.Default().
	Logger *slog.Logger
}

const (
	// DefaultPreloadFrames is the Config.PreloadFrames default.
	DefaultPreloadFrames = 8192

	// PreloadAll is a Config.PreloadFrames value that loads the files whole.
	PreloadAll = -1
)

func applyConfigDefaults(config *Config) {
	if config.PreloadFrames == 0 {
		config.PreloadFrames = DefaultPreloadFrames
	}
	if config.StreamFrames == 0 {
		config.StreamFrames = 4 * DefaultPreloadFrames
	}
	if config.NumStreams == 0 {
		config.NumStreams = 64
	}
	if config.NumWorkers == 0 {
		config.NumWorkers = 2
	}
	if config.ChunkFrames == 0 {
		config.ChunkFrames = 1024
	}
	if config.PollInterval == 0 {
		config.PollInterval = 5 * time.Millisecond
	}
	if config.OpenRetries == 0 {
		config.OpenRetries = 3
	}
	if config.Opener == nil {
		config.Opener = WAVOpener{Root: config.RootDir}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
}
