package sampler

import (
	"math"
)

// EventKind is an event tag that should be used to differentiate between different event types.
type EventKind uint8

const (
	// EventUnknown is a sentinel value.
	EventUnknown EventKind = iota

	// EventNoteOn starts the note; use Event.NoteData to get the key and velocity.
	EventNoteOn

	// EventNoteOff releases the note; use Event.NoteData to get the key and velocity.
	EventNoteOff

	// EventCC changes a controller value; use Event.CCData to get the data.
	EventCC

	// EventAllSoundOff silences every voice immediately.
	EventAllSoundOff

	// EventPitchWheel moves the pitch wheel; use Event.PitchWheelData to get the position.
	EventPitchWheel
)

// Event is a synth input marshaled to the audio goroutine via Synth.Post.
//
// Delay is the event offset in frames from the start of the next rendered block.
type Event struct {
	Kind  EventKind
	Delay int

	value uint64
}

func NoteOnEvent(delay int, key, velocity uint8) Event {
	return Event{Kind: EventNoteOn, Delay: delay, value: uint64(key) | uint64(velocity)<<8}
}

func NoteOffEvent(delay int, key, velocity uint8) Event {
	return Event{Kind: EventNoteOff, Delay: delay, value: uint64(key) | uint64(velocity)<<8}
}

// CCEvent creates a controller event; the value is normalized to [0, 1].
func CCEvent(delay, cc int, value float32) Event {
	return Event{Kind: EventCC, Delay: delay, value: uint64(uint8(cc)) | uint64(math.Float32bits(value))<<8}
}

// PitchWheelEvent creates a pitch wheel event; the position is normalized to [-1, 1].
func PitchWheelEvent(delay int, value float32) Event {
	return Event{Kind: EventPitchWheel, Delay: delay, value: uint64(math.Float32bits(value))}
}

func AllSoundOffEvent() Event {
	return Event{Kind: EventAllSoundOff}
}

// NoteData returns the event data if e.Kind is EventNoteOn or EventNoteOff.
func (e Event) NoteData() (key, velocity uint8) {
	return uint8(e.value), uint8(e.value >> 8)
}

// CCData returns the event data if e.Kind=EventCC.
func (e Event) CCData() (cc int, value float32) {
	return int(uint8(e.value)), math.Float32frombits(uint32(e.value >> 8))
}

// PitchWheelData returns the event data if e.Kind=EventPitchWheel.
func (e Event) PitchWheelData() float32 {
	return math.Float32frombits(uint32(e.value))
}
