// Package filepool implements the sample storage of the synthesizer.
//
// Every sample has its first frames (the head) preloaded into memory,
// so a voice can start playing it right away. The rest of the file is
// streamed by the background workers into a ring buffer owned by the
// voice for the duration of the note.
//
// Preload does blocking I/O and must not be called from the audio goroutine.
// Acquire, Release and the Stream methods are lock-free and never allocate.
package filepool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/quasilyte/sampler/audiobuf"
)

// Pool owns the preloaded samples and the streaming buffers.
type Pool struct {
	config Config
	logger *slog.Logger

	mu      sync.Mutex
	samples map[string]*Sample
	slab    *audiobuf.Slab

	streams []Stream
	free    *indexStack
	wakeups []chan struct{}

	activeStreams atomic.Int64
	underruns     atomic.Int64
	loadErrors    atomic.Int64

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New creates a pool with all its streaming buffers.
// The workers are not running until Start is called.
func New(config Config) *Pool {
	applyConfigDefaults(&config)

	p := &Pool{
		config:  config,
		logger:  config.Logger,
		samples: make(map[string]*Sample),
		slab:    audiobuf.NewSlab(1<<20, 64),
		streams: make([]Stream, config.NumStreams),
		free:    newIndexStack(config.NumStreams),
		wakeups: make([]chan struct{}, config.NumWorkers),
	}
	for i := range p.wakeups {
		p.wakeups[i] = make(chan struct{}, 1)
	}
	for i := len(p.streams) - 1; i >= 0; i-- {
		st := &p.streams[i]
		st.index = i
		st.pool = p
		st.capacity = config.StreamFrames
		st.ring = audiobuf.NewBuffer(2, config.StreamFrames)
		p.free.push(i)
	}
	return p
}

// Preload loads the sample metadata and its head into memory.
// Loaded samples are cached by name.
//
// When loadWhole is true, or the pool is configured to preload whole
// files, the entire file is loaded and the sample never needs a stream.
// Samples that define a loop are loaded whole as well.
//
// A sample that fails to load is reported as *LoadError.
func (p *Pool) Preload(name string, loadWhole bool) (*Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.samples[name]; ok {
		if s.InMemory() || !loadWhole {
			return s, nil
		}
		// Upgrade: the voices that hold the old sample keep using it.
	}

	s, err := p.load(name, loadWhole)
	if err != nil {
		p.loadErrors.Add(1)
		return nil, err
	}
	p.samples[name] = s
	return s, nil
}

func (p *Pool) load(name string, loadWhole bool) (*Sample, error) {
	r, err := p.open(context.Background(), name)
	if err != nil {
		return nil, &LoadError{Name: name, Op: "open", Err: err}
	}
	defer r.Close()

	info := r.Info()
	if info.NumChannels == 0 {
		return nil, &LoadError{Name: name, Op: "decode", Err: ErrUnsupportedFormat}
	}
	if info.NumChannels > 2 {
		return nil, &LoadError{Name: name, Op: "decode", Err: ErrTooManyChannels}
	}

	numFrames := info.NumFrames
	if !loadWhole && !info.HasLoop && p.config.PreloadFrames > 0 {
		numFrames = min(numFrames, p.config.PreloadFrames)
	}

	head := p.slab.NewBuffer(info.NumChannels, numFrames)
	span := head.Span()
	for span.NumFrames() != 0 {
		n, err := r.ReadFrames(span)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, &LoadError{Name: name, Op: "read", Err: err}
		}
		span = span.From(n)
	}

	return &Sample{Name: name, Info: info, head: head}, nil
}

// open opens the file, retrying the failures that may be temporary.
func (p *Pool) open(ctx context.Context, name string) (FrameReader, error) {
	var r FrameReader
	op := func() error {
		var err error
		r, err = p.config.Opener.Open(name)
		if err != nil && (errors.Is(err, os.ErrNotExist) || errors.Is(err, ErrUnsupportedFormat) || errors.Is(err, ErrTooManyChannels)) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Millisecond
	policy.MaxInterval = 100 * time.Millisecond
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(p.config.OpenRetries)), ctx))
	return r, err
}

// StreamFrames returns the capacity of the streaming ring buffers.
func (p *Pool) StreamFrames() int { return p.config.StreamFrames }

// Acquire returns a stream for the part of s that follows its head.
//
// It returns nil if the sample is fully in memory or all streams are busy;
// the voice should play the head frames only in that case.
// The stream must be returned with Release.
func (p *Pool) Acquire(s *Sample) *Stream {
	if s == nil || s.InMemory() {
		return nil
	}
	index := p.free.pop()
	if index == -1 {
		return nil
	}
	st := &p.streams[index]
	st.reset(s)
	st.state.Store(int32(streamPending))
	p.activeStreams.Add(1)

	select {
	case p.wakeups[index%len(p.wakeups)] <- struct{}{}:
	default:
	}
	return st
}

// Release returns the stream to the pool.
// The stream must not be used after this call.
//
// The ring buffer is reclaimed by the stream worker once it stops
// producing for it; without the running workers, it's reclaimed right away.
func (p *Pool) Release(st *Stream) {
	if st == nil {
		return
	}
	st.state.Store(int32(streamAbandoned))
	p.activeStreams.Add(-1)
	if !p.running.Load() {
		p.recycle(st)
	}
}

func (p *Pool) recycle(st *Stream) {
	if !st.state.CompareAndSwap(int32(streamAbandoned), int32(streamFree)) {
		return
	}
	st.sample = nil
	p.free.push(st.index)
}

// Start launches the streaming workers and the housekeeping goroutine.
// They run until ctx is canceled or Close is called.
func (p *Pool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	p.cancel = cancel
	p.group = g

	for i := range p.wakeups {
		w := newWorker(p, i)
		g.Go(func() error {
			return w.run(ctx)
		})
	}
	g.Go(func() error {
		return p.housekeeping(ctx)
	})
	return nil
}

// Close stops the workers and waits for them to exit.
func (p *Pool) Close() error {
	if !p.running.Load() {
		return nil
	}
	p.cancel()
	err := p.group.Wait()
	p.running.Store(false)
	for i := range p.streams {
		p.recycle(&p.streams[i])
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// housekeeping reports the recoverable conditions.
// The reports are rate limited as underruns tend to come in bursts.
func (p *Pool) housekeeping(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(5*time.Second), 1)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	reported := p.underruns.Load()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		underruns := p.underruns.Load()
		if underruns == reported || !limiter.Allow() {
			continue
		}
		p.logger.Warn("sample streaming underrun",
			slog.Int64("frames", underruns-reported),
			slog.Int64("active_streams", p.activeStreams.Load()))
		reported = underruns
	}
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	PreloadedSamples int
	ActiveStreams    int
	NumStreams       int
	UnderrunFrames   int64
	LoadErrors       int64

	// MemoryUsage is the approximate number of bytes used by the
	// sample heads and the streaming buffers.
	MemoryUsage int

	// SlabBytes is the memory reserved for the sample heads.
	SlabBytes int
}

// Stats returns the current pool counters.
// It's safe to call it concurrently with the audio goroutine.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	preloaded := len(p.samples)
	memoryUsage := 0
	for _, s := range p.samples {
		memoryUsage += s.head.SizeBytes() + int(unsafe.Sizeof(*s))
	}
	slabBytes := p.slab.SizeBytes()
	p.mu.Unlock()

	memoryUsage += len(p.streams) * int(unsafe.Sizeof(Stream{}))
	for i := range p.streams {
		memoryUsage += p.streams[i].ring.SizeBytes()
	}

	return Stats{
		PreloadedSamples: preloaded,
		ActiveStreams:    int(p.activeStreams.Load()),
		NumStreams:       len(p.streams),
		UnderrunFrames:   p.underruns.Load(),
		LoadErrors:       p.loadErrors.Load(),
		MemoryUsage:      memoryUsage,
		SlabBytes:        slabBytes,
	}
}
