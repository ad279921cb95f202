package filepool

import (
	"sync/atomic"

	"github.com/quasilyte/sampler/audiobuf"
)

type streamState int32

const (
	streamFree streamState = iota
	streamPending
	streamActive
	streamAbandoned
)

// Stream delivers the frames of a sample that follow its preloaded head.
//
// A stream is a single producer, single consumer ring buffer.
// The producer is a pool worker, the consumer is the voice that
// acquired the stream. The cursors count the frames since the
// stream start and only grow:
//
//	read <= write <= read + capacity
//
// The write cursor is stored by the producer after the frames are in
// the ring, so the consumer never observes the cursor before the data.
type Stream struct {
	index  int
	pool   *Pool
	sample *Sample

	ring     *audiobuf.Buffer
	capacity int

	// start is the file frame that maps to the cursor value 0.
	start int
	// end is the number of the stream frames (file frames - start).
	end int

	state  atomic.Int32
	write  atomic.Int64
	read   atomic.Int64
	failed atomic.Bool

	underruns atomic.Int64
}

func (st *Stream) reset(s *Sample) {
	st.sample = s
	st.start = s.HeadFrames()
	st.end = s.Info.NumFrames - st.start
	st.write.Store(0)
	st.read.Store(0)
	st.failed.Store(false)
	st.underruns.Store(0)
}

func (st *Stream) loadState() streamState { return streamState(st.state.Load()) }

func (st *Stream) Sample() *Sample { return st.sample }

// Capacity returns the ring buffer size in frames.
func (st *Stream) Capacity() int { return st.capacity }

// Underruns returns the number of frames that were requested
// before they were streamed.
func (st *Stream) Underruns() int64 { return st.underruns.Load() }

// Available returns the number of file frames that can be read
// right now, counting from the sample start.
func (st *Stream) Available() int {
	return st.start + int(st.write.Load())
}

// Read copies the file frames starting at from into dst.
// The head frames come from the sample memory, the rest from the ring.
// It returns the number of copied frames; the rest of dst is zeroed.
//
// Frames that are not streamed yet are counted as an underrun.
// Frames that precede the read cursor are not available anymore.
func (st *Stream) Read(dst audiobuf.Span, from int) int {
	n := 0
	if from < st.start {
		n = st.sample.Read(dst, from)
		if n < dst.NumFrames() && from+n < st.start {
			// A negative position.
			return n
		}
		from += n
		dst = dst.From(n)
	}

	rel := int64(from - st.start)
	if rel < st.read.Load() {
		// Already consumed.
		dst.Fill(0)
		return n
	}
	write := st.write.Load()
	copied := 0
	if rel < write {
		copied = int(min(int64(dst.NumFrames()), write-rel))
		st.copyFromRing(dst.First(copied), rel)
	}
	dst.From(copied).Fill(0)

	// Frames past the file end are a normal silence.
	missing := min(int64(dst.NumFrames()-copied), int64(st.end)-rel-int64(copied))
	if missing > 0 && !st.failed.Load() {
		st.underruns.Add(missing)
		st.pool.underruns.Add(missing)
	}

	return n + copied
}

func (st *Stream) copyFromRing(dst audiobuf.Span, rel int64) {
	ring := st.ring.Span().FirstChannels(st.sample.Info.NumChannels)
	pos := int(rel % int64(st.capacity))
	first := min(dst.NumFrames(), st.capacity-pos)
	dst.First(first).CopyFrom(ring.Subspan(pos, first))
	if rest := dst.NumFrames() - first; rest > 0 {
		dst.From(first).CopyFrom(ring.First(rest))
	}
}

// Consume tells the producer that the file frames before upTo
// won't be read anymore, so their ring space can be reused.
func (st *Stream) Consume(upTo int) {
	rel := int64(upTo - st.start)
	if rel <= st.read.Load() {
		return
	}
	st.read.Store(min(rel, st.write.Load()))
}

// space returns the number of frames the producer can write.
func (st *Stream) space() int {
	used := st.write.Load() - st.read.Load()
	return st.capacity - int(used)
}

// remaining returns the number of frames that are not streamed yet.
func (st *Stream) remaining() int {
	return st.end - int(st.write.Load())
}

// produce decodes up to maxFrames frames from r into the ring.
func (st *Stream) produce(r FrameReader, maxFrames int) (int, error) {
	write := st.write.Load()
	pos := int(write % int64(st.capacity))
	n := min(maxFrames, st.space(), st.remaining(), st.capacity-pos)
	if n <= 0 {
		return 0, nil
	}
	got, err := r.ReadFrames(st.ring.Span().Subspan(pos, n))
	if got > 0 {
		st.write.Store(write + int64(got))
	}
	return got, err
}
