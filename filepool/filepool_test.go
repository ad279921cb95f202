package filepool

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/quasilyte/sampler/audiobuf"
)

// rampFile returns a stereo file where the left channel frame i is i
// and the right channel frame i is -i.
func rampFile(numFrames int) *MemoryFile {
	left := make([]float32, numFrames)
	right := make([]float32, numFrames)
	for i := range left {
		left[i] = float32(i)
		right[i] = -float32(i)
	}
	return NewMemoryFile(44100, left, right)
}

func newTestPool(t *testing.T, config Config, files MemoryOpener) *Pool {
	t.Helper()
	config.Opener = files
	p := New(config)
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("close: %v", err)
		}
	})
	return p
}

func checkRamp(t *testing.T, span audiobuf.Span, from, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		want := float32(from + i)
		if have := span.Channel(0)[i]; have != want {
			t.Fatalf("frame %d: left=%v, want %v", from+i, have, want)
		}
		if have := span.Channel(1)[i]; have != -want {
			t.Fatalf("frame %d: right=%v, want %v", from+i, have, -want)
		}
	}
}

func TestIndexStack(t *testing.T) {
	s := newIndexStack(4)
	for i := 0; i < 4; i++ {
		s.push(i)
	}
	for want := 3; want >= 0; want-- {
		if have := s.pop(); have != want {
			t.Fatalf("pop: have %d, want %d", have, want)
		}
	}
	if s.pop() != -1 {
		t.Fatalf("pop from an empty stack")
	}

	// Concurrent pushers and poppers must never lose or duplicate an index.
	const size = 64
	s = newIndexStack(size)
	for i := 0; i < size; i++ {
		s.push(i)
	}
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10000; i++ {
				if index := s.pop(); index != -1 {
					s.push(index)
				}
			}
		}()
	}
	wg.Wait()
	seen := make(map[int]bool)
	for {
		index := s.pop()
		if index == -1 {
			break
		}
		if seen[index] {
			t.Fatalf("index %d is duplicated", index)
		}
		seen[index] = true
	}
	if len(seen) != size {
		t.Fatalf("have %d indexes, want %d", len(seen), size)
	}
}

func TestPreload(t *testing.T) {
	files := MemoryOpener{"ramp.wav": rampFile(20000)}

	tests := []struct {
		name          string
		preloadFrames int
		loadWhole     bool
		wantHead      int
	}{
		{"head", 8192, false, 8192},
		{"whole", 8192, true, 20000},
		{"preload all", PreloadAll, false, 20000},
		{"default", 0, false, DefaultPreloadFrames},
		{"short file", 30000, false, 20000},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := newTestPool(t, Config{PreloadFrames: test.preloadFrames}, files)
			s, err := p.Preload("ramp.wav", test.loadWhole)
			if err != nil {
				t.Fatal(err)
			}
			if s.HeadFrames() != test.wantHead {
				t.Fatalf("head frames: have %d, want %d", s.HeadFrames(), test.wantHead)
			}
			if s.InMemory() != (test.wantHead == 20000) {
				t.Fatalf("InMemory()=%v", s.InMemory())
			}
			if s.Info.NumFrames != 20000 || s.Info.NumChannels != 2 || s.Info.SampleRate != 44100 {
				t.Fatalf("bad info: %+v", s.Info)
			}
			checkRamp(t, s.Head(), 0, s.HeadFrames())

			again, err := p.Preload("ramp.wav", false)
			if err != nil || again != s {
				t.Fatalf("the sample is not cached")
			}
		})
	}
}

func TestPreloadUpgrade(t *testing.T) {
	files := MemoryOpener{"ramp.wav": rampFile(20000)}
	p := newTestPool(t, Config{PreloadFrames: 1024}, files)

	head, err := p.Preload("ramp.wav", false)
	if err != nil {
		t.Fatal(err)
	}
	whole, err := p.Preload("ramp.wav", true)
	if err != nil {
		t.Fatal(err)
	}
	if head.InMemory() || !whole.InMemory() {
		t.Fatalf("the upgrade didn't load the whole file")
	}
	if s, _ := p.Preload("ramp.wav", false); s != whole {
		t.Fatalf("the upgraded sample is not cached")
	}
}

func TestPreloadLoopedFile(t *testing.T) {
	f := rampFile(20000)
	f.Info.HasLoop = true
	f.Info.LoopStart = 100
	f.Info.LoopEnd = 19000
	p := newTestPool(t, Config{PreloadFrames: 1024}, MemoryOpener{"loop.wav": f})
	s, err := p.Preload("loop.wav", false)
	if err != nil {
		t.Fatal(err)
	}
	if !s.InMemory() {
		t.Fatalf("looped samples must be loaded whole")
	}
}

func TestPreloadMissing(t *testing.T) {
	p := newTestPool(t, Config{}, MemoryOpener{})
	s, err := p.Preload("missing.wav", false)
	if s != nil {
		t.Fatalf("expected a nil sample")
	}
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected *LoadError, have %T", err)
	}
	if loadErr.Name != "missing.wav" || loadErr.Op != "open" {
		t.Fatalf("unexpected error: %v", loadErr)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("the error must wrap os.ErrNotExist: %v", err)
	}
	if p.Stats().LoadErrors != 1 {
		t.Fatalf("load errors: have %d, want 1", p.Stats().LoadErrors)
	}
}

func TestAcquire(t *testing.T) {
	files := MemoryOpener{"ramp.wav": rampFile(20000), "short.wav": rampFile(100)}
	p := newTestPool(t, Config{PreloadFrames: 1024, NumStreams: 2}, files)

	short, _ := p.Preload("short.wav", false)
	if p.Acquire(short) != nil {
		t.Fatalf("in-memory samples don't need a stream")
	}
	if p.Acquire(nil) != nil {
		t.Fatalf("nil samples don't need a stream")
	}

	s, _ := p.Preload("ramp.wav", false)
	a := p.Acquire(s)
	b := p.Acquire(s)
	if a == nil || b == nil || a == b {
		t.Fatalf("expected two distinct streams")
	}
	if p.Acquire(s) != nil {
		t.Fatalf("expected no free streams")
	}
	if have := p.Stats().ActiveStreams; have != 2 {
		t.Fatalf("active streams: have %d, want 2", have)
	}

	p.Release(a)
	c := p.Acquire(s)
	if c != a {
		t.Fatalf("the released stream is not reused")
	}
	p.Release(b)
	p.Release(c)
	if have := p.Stats().ActiveStreams; have != 0 {
		t.Fatalf("active streams: have %d, want 0", have)
	}
}

func TestStreamCursorInvariant(t *testing.T) {
	const numFrames = 50000
	files := MemoryOpener{"ramp.wav": rampFile(numFrames)}
	p := newTestPool(t, Config{PreloadFrames: 512, StreamFrames: 1000}, files)
	s, _ := p.Preload("ramp.wav", false)
	st := p.Acquire(s)
	r, _ := files.Open("ramp.wav")
	r.Skip(st.start)

	buf := audiobuf.NewBuffer(2, 700)
	produceSizes := []int{300, 1000, 7, 128, 999}
	readSizes := []int{100, 700, 1, 333, 64, 512}
	pos := 0
	for step := 0; pos < numFrames; step++ {
		if _, err := st.produce(r, produceSizes[step%len(produceSizes)]); err != nil && err != io.EOF {
			t.Fatal(err)
		}
		read, write := st.read.Load(), st.write.Load()
		if !(read <= write && write <= read+int64(st.capacity)) {
			t.Fatalf("step %d: broken cursors: read=%d write=%d capacity=%d", step, read, write, st.capacity)
		}

		n := min(readSizes[step%len(readSizes)], st.Available()-pos)
		span := buf.Span().First(n)
		if got := st.Read(span, pos); got != n {
			t.Fatalf("step %d: read %d frames, want %d", step, got, n)
		}
		checkRamp(t, span, pos, n)
		pos += n
		st.Consume(pos)

		read, write = st.read.Load(), st.write.Load()
		if !(read <= write && write <= read+int64(st.capacity)) {
			t.Fatalf("step %d: broken cursors after consume: read=%d write=%d", step, read, write)
		}
	}
	if st.Underruns() != 0 {
		t.Fatalf("unexpected underruns: %d", st.Underruns())
	}

	// Past the end: silence, but not an underrun.
	span := buf.Span().First(10)
	span.Fill(1)
	if got := st.Read(span, numFrames); got != 0 || !span.IsSilent() {
		t.Fatalf("reading past the end must produce silence")
	}
	if st.Underruns() != 0 {
		t.Fatalf("reading past the end is not an underrun")
	}
	p.Release(st)
}

func TestStreamStalledProducer(t *testing.T) {
	files := MemoryOpener{"ramp.wav": rampFile(20000)}
	p := newTestPool(t, Config{PreloadFrames: 1024, StreamFrames: 4096}, files)
	s, _ := p.Preload("ramp.wav", false)
	st := p.Acquire(s)
	r, _ := files.Open("ramp.wav")
	r.Skip(st.start)

	// Fill the ring, then stall the producer.
	for st.space() != 0 {
		st.produce(r, 4096)
	}
	if have := st.Available(); have != 1024+4096 {
		t.Fatalf("available: have %d, want %d", have, 1024+4096)
	}

	buf := audiobuf.NewBuffer(2, 512)
	buf.Span().Fill(123)
	got := st.Read(buf.Span(), 1024+4000)
	if got != 96 {
		t.Fatalf("read %d frames, want 96", got)
	}
	checkRamp(t, buf.Span(), 1024+4000, 96)
	if !buf.Span().From(96).IsSilent() {
		t.Fatalf("the frames beyond the streamed data must be exact zeros")
	}
	if st.Underruns() != 512-96 {
		t.Fatalf("underruns: have %d, want %d", st.Underruns(), 512-96)
	}

	// The producer can't overwrite unread frames.
	if n, _ := st.produce(r, 100); n != 0 {
		t.Fatalf("produced %d frames into a full ring", n)
	}
	p.Release(st)
	if have := p.Stats().UnderrunFrames; have != 512-96 {
		t.Fatalf("pool underruns: have %d", have)
	}
}

func TestWorkersStream(t *testing.T) {
	const numFrames = 30000
	files := MemoryOpener{"ramp.wav": rampFile(numFrames)}
	p := newTestPool(t, Config{PreloadFrames: 1024, StreamFrames: 2048, NumStreams: 3, PollInterval: time.Millisecond}, files)
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start: %v", err)
	}

	s, _ := p.Preload("ramp.wav", false)
	st := p.Acquire(s)

	buf := audiobuf.NewBuffer(2, 256)
	deadline := time.Now().Add(10 * time.Second)
	pos := 0
	for pos < numFrames {
		if time.Now().After(deadline) {
			t.Fatalf("streaming is stuck at frame %d", pos)
		}
		n := min(256, st.Available()-pos)
		if n == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		span := buf.Span().First(n)
		st.Read(span, pos)
		checkRamp(t, span, pos, n)
		pos += n
		st.Consume(pos)
	}

	// Abandon a stream in the middle and check that it's recycled.
	other := p.Acquire(s)
	p.Release(other)
	p.Release(st)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("the streams are not recycled")
		}
		if other.loadState() == streamFree && st.loadState() == streamFree {
			break
		}
		time.Sleep(time.Millisecond)
	}
	for i := 0; i < 3; i++ {
		if p.Acquire(s) == nil {
			t.Fatalf("stream %d is leaked", i)
		}
	}
}

func TestWorkersMissingFile(t *testing.T) {
	files := MemoryOpener{"ramp.wav": rampFile(20000)}
	p := newTestPool(t, Config{PreloadFrames: 1024, OpenRetries: 1, PollInterval: time.Millisecond}, files)
	s, _ := p.Preload("ramp.wav", false)

	// The file disappears after the preload.
	delete(files, "ramp.wav")
	st := p.Acquire(s)
	if err := p.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for !st.failed.Load() {
		if time.Now().After(deadline) {
			t.Fatalf("the stream failure is not detected")
		}
		time.Sleep(time.Millisecond)
	}
	buf := audiobuf.NewBuffer(2, 64)
	buf.Span().Fill(1)
	st.Read(buf.Span(), 2000)
	if !buf.Span().IsSilent() {
		t.Fatalf("a failed stream must produce silence")
	}
	if st.Underruns() != 0 {
		t.Fatalf("a failed stream is not an underrun")
	}
	p.Release(st)
}

func TestWAVOpener(t *testing.T) {
	dir := t.TempDir()
	const numFrames = 3000

	f, err := os.Create(filepath.Join(dir, "tone.wav"))
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 48000, 16, 2, 1)
	data := make([]int, numFrames*2)
	for i := 0; i < numFrames; i++ {
		data[i*2] = (i % 200) * 100
		data[i*2+1] = -(i % 200) * 100
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 48000},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	p := New(Config{RootDir: dir, PreloadFrames: 1000})
	s, err := p.Preload("tone.wav", false)
	if err != nil {
		t.Fatal(err)
	}
	if s.Info.NumFrames != numFrames || s.Info.NumChannels != 2 || s.Info.SampleRate != 48000 {
		t.Fatalf("bad info: %+v", s.Info)
	}
	if s.HeadFrames() != 1000 {
		t.Fatalf("head frames: %d", s.HeadFrames())
	}

	r, err := WAVOpener{Root: dir}.Open("tone.wav")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Skip(1500); err != nil {
		t.Fatal(err)
	}
	out := audiobuf.NewBuffer(2, 400)
	n, err := r.ReadFrames(out.Span())
	if err != nil || n != 400 {
		t.Fatalf("read: n=%d err=%v", n, err)
	}
	for i := 0; i < n; i++ {
		frame := 1500 + i
		want := float32((frame%200)*100) / 32768
		if have := out.Channel(0)[i]; have != want {
			t.Fatalf("frame %d: have %v, want %v", frame, have, want)
		}
		if have := out.Channel(1)[i]; have != -want {
			t.Fatalf("frame %d: right: have %v, want %v", frame, have, -want)
		}
	}

	_, err = p.Preload("nothing.wav", false)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file: %v", err)
	}
}

func TestMemoryUsage(t *testing.T) {
	files := MemoryOpener{"ramp.wav": rampFile(20000)}
	p := newTestPool(t, Config{PreloadFrames: 1024, NumStreams: 2, StreamFrames: 4096}, files)
	before := p.Stats().MemoryUsage
	if before < 2*2*4096*4 {
		t.Fatalf("the ring buffers are not accounted: %d", before)
	}
	p.Preload("ramp.wav", false)
	stats := p.Stats()
	if stats.MemoryUsage < before+2*1024*4 {
		t.Fatalf("the sample head is not accounted: %d -> %d", before, stats.MemoryUsage)
	}
	if stats.PreloadedSamples != 1 || stats.NumStreams != 2 || stats.SlabBytes == 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
