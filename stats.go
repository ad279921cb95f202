package sampler

import (
	"github.com/quasilyte/sampler/filepool"
)

// Stats is a snapshot of the synth counters.
type Stats struct {
	// ActiveVoices is the number of voices that are not idle.
	ActiveVoices int

	// DroppedNotes counts the region starts that got no voice:
	// all voices were busy and none of them could be stolen.
	DroppedNotes int64

	// StolenVoices counts the voices that were taken over by the new notes.
	StolenVoices int64

	Pool filepool.Stats
}

// Stats returns the current counters.
// It's safe to call it from any goroutine.
func (s *Synth) Stats() Stats {
	return Stats{
		ActiveVoices: s.NumActiveVoices(),
		DroppedNotes: s.droppedNotes.Load(),
		StolenVoices: s.stolenVoices.Load(),
		Pool:         s.pool.Stats(),
	}
}
