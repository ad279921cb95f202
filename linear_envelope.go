package sampler

import (
	"github.com/quasilyte/sampler/internal/simd"
)

const maxEnvelopeEvents = 16

type envelopeEvent struct {
	delay int
	value float32
}

// LinearEnvelope turns timestamped parameter changes into a smooth
// per-frame trajectory: the value ramps linearly from one event to the next.
//
// It's used for the controller modulations, so an abrupt CC
// change doesn't produce a click.
type LinearEnvelope struct {
	kernels *simd.Kernels

	value  float32
	events [maxEnvelopeEvents]envelopeEvent
	count  int
}

// Reset sets the current value and discards the pending events.
func (e *LinearEnvelope) Reset(value float32) {
	if e.kernels == nil {
		e.kernels = simd.Default()
	}
	e.value = value
	e.count = 0
}

func (e *LinearEnvelope) Value() float32 { return e.value }

// RegisterEvent schedules the value to be reached after delay frames
// of the next Block call. Events past the block end are reached at the block end.
// When the event list is full, the latest event is replaced.
func (e *LinearEnvelope) RegisterEvent(delay int, value float32) {
	delay = clampMin(delay, 0)
	if e.count == len(e.events) {
		e.count--
	}
	// Keep the events sorted by delay; equal delays keep the arrival order.
	i := e.count
	for i > 0 && e.events[i-1].delay > delay {
		e.events[i] = e.events[i-1]
		i--
	}
	e.events[i] = envelopeEvent{delay: delay, value: value}
	e.count++
}

// Block fills out with the next len(out) frames and clears the events.
func (e *LinearEnvelope) Block(out []float32) {
	pos := 0
	for _, ev := range e.events[:e.count] {
		target := min(ev.delay, len(out))
		length := target - pos
		if length <= 0 {
			// Several events at the same frame: the last one wins.
			e.value = ev.value
			continue
		}
		step := (ev.value - e.value) / float32(length)
		e.kernels.LinearRamp(out[pos:target], e.value, step)
		e.value = ev.value
		out[target-1] = ev.value
		pos = target
	}
	e.kernels.Fill(out[pos:], e.value)
	e.count = 0
}
