package filepool

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// worker is the producer for every stream with index%numWorkers == id.
type worker struct {
	pool    *Pool
	id      int
	streams []*Stream
	readers []FrameReader
	wakeup  chan struct{}
}

func newWorker(p *Pool, id int) *worker {
	w := &worker{
		pool:   p,
		id:     id,
		wakeup: p.wakeups[id],
	}
	for i := id; i < len(p.streams); i += len(p.wakeups) {
		w.streams = append(w.streams, &p.streams[i])
	}
	w.readers = make([]FrameReader, len(w.streams))
	return w
}

func (w *worker) run(ctx context.Context) error {
	ticker := time.NewTicker(w.pool.config.PollInterval)
	defer ticker.Stop()
	defer w.closeReaders()

	for {
		for w.step(ctx) {
			if ctx.Err() != nil {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-w.wakeup:
		case <-ticker.C:
		}
	}
}

// step makes a single pass over the owned streams.
// It reports whether any progress was made.
func (w *worker) step(ctx context.Context) bool {
	progress := false
	for i, st := range w.streams {
		switch st.loadState() {
		case streamFree:
			continue

		case streamAbandoned:
			w.closeReader(i)
			w.pool.recycle(st)

		case streamPending:
			if !st.state.CompareAndSwap(int32(streamPending), int32(streamActive)) {
				continue // Released in the meantime
			}
			w.readers[i] = w.openStream(ctx, st)
			progress = true

		case streamActive:
			if w.readers[i] == nil {
				continue
			}
			n, err := st.produce(w.readers[i], w.pool.config.ChunkFrames)
			if err != nil && !errors.Is(err, io.EOF) {
				w.pool.logger.Error("sample streaming failed",
					slog.String("sample", st.sample.Name),
					slog.Any("err", err))
				st.failed.Store(true)
				w.pool.loadErrors.Add(1)
				w.closeReader(i)
				continue
			}
			if st.remaining() == 0 {
				w.closeReader(i)
			}
			if n > 0 {
				progress = true
			}
		}
	}
	return progress
}

func (w *worker) openStream(ctx context.Context, st *Stream) FrameReader {
	r, err := w.pool.open(ctx, st.sample.Name)
	if err == nil {
		err = r.Skip(st.start)
		if err != nil {
			r.Close()
		}
	}
	if err != nil {
		if ctx.Err() == nil {
			w.pool.logger.Error("can't open the sample stream",
				slog.String("sample", st.sample.Name),
				slog.Any("err", err))
			w.pool.loadErrors.Add(1)
		}
		st.failed.Store(true)
		return nil
	}
	return r
}

func (w *worker) closeReader(i int) {
	if w.readers[i] == nil {
		return
	}
	w.readers[i].Close()
	w.readers[i] = nil
}

func (w *worker) closeReaders() {
	for i := range w.readers {
		w.closeReader(i)
	}
}
