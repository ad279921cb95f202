package sampler

import (
	"github.com/quasilyte/sampler/sfzfile"
)

// The controllers with a special meaning.
const (
	ccSustain      = 64
	ccAllSoundOff  = 120
	ccAllNotesOff  = 123
	sustainPressed = 0.5
)

// NoteOn starts the matching attack regions of the key.
// delay is the offset in frames inside the next rendered block.
// A zero velocity is treated as a note off.
func (s *Synth) NoteOn(delay int, key, velocity uint8) {
	if key > 127 {
		return
	}
	if velocity == 0 {
		s.NoteOff(delay, key, 0)
		return
	}
	velocity = min(velocity, 127)
	s.noteVelocity[key] = velocity
	s.noteActive[key] = true
	s.startRegions(s.attackRegions[key], delay, key, normalizeVelocity(velocity), sfzfile.TriggerAttack)
}

// NoteOff releases the voices started by the key and
// triggers the release regions.
func (s *Synth) NoteOff(delay int, key, velocity uint8) {
	if key > 127 {
		return
	}
	s.noteActive[key] = false

	for _, index := range s.active {
		v := &s.voices[index]
		if v.key != key || v.state != VoicePlaying || v.trigger != sfzfile.TriggerAttack {
			continue
		}
		if v.region.LoopMode == sfzfile.LoopOneShot {
			continue
		}
		if s.sustainDown && !v.region.IgnoreSustain {
			v.sustained = true
			continue
		}
		v.Release(delay)
	}

	// The release regions use the velocity of the matching note on.
	noteVelocity := s.noteVelocity[key]
	if noteVelocity == 0 {
		noteVelocity = velocity
	}
	s.startRegions(s.releaseRegions[key], delay, key, normalizeVelocity(noteVelocity), sfzfile.TriggerRelease)
}

// CC applies a controller change; value is normalized to [0, 1].
func (s *Synth) CC(delay, cc int, value float32) {
	if cc < 0 || cc > 127 {
		return
	}
	value = clamp(value, 0, 1)
	s.cc[cc] = value

	switch cc {
	case ccSustain:
		pressed := value >= sustainPressed
		if s.sustainDown && !pressed {
			for _, index := range s.active {
				v := &s.voices[index]
				if v.sustained {
					v.Release(delay)
				}
			}
		}
		s.sustainDown = pressed
	case ccAllSoundOff:
		s.AllSoundOff()
		return
	case ccAllNotesOff:
		s.allNotesOff(delay)
		return
	}

	for _, index := range s.active {
		s.voices[index].RegisterCC(delay, cc, &s.cc)
	}
}

// PitchWheel bends the pitch of the active and future voices.
// value is normalized to [-1, 1]; the bend range is set per region.
func (s *Synth) PitchWheel(delay int, value float32) {
	value = clamp(value, -1, 1)
	s.pitchWheel = value
	for _, index := range s.active {
		s.voices[index].RegisterPitchWheel(delay, value)
	}
}

// allNotesOff releases every playing voice, ignoring the sustain pedal.
// The release regions are not triggered.
func (s *Synth) allNotesOff(delay int) {
	for _, index := range s.active {
		v := &s.voices[index]
		if v.region.LoopMode == sfzfile.LoopOneShot {
			continue
		}
		v.Release(delay)
	}
	clear(s.noteActive[:])
	s.sustainDown = false
}

func (s *Synth) startRegions(list []int, delay int, key uint8, velocity float32, trigger sfzfile.Trigger) {
	for _, regionIndex := range list {
		rd := &s.regions[regionIndex]
		r := rd.region
		if !r.MatchesNote(key, velocity) || !r.MatchesCC(&s.cc) {
			continue
		}

		// Round-robin: the counter moves on every match,
		// the region plays only on its turn.
		turn := rd.sequence%max(r.SequenceLength, 1) == max(r.SequencePosition, 1)-1
		rd.sequence++
		if !turn {
			continue
		}
		if rd.sample == nil && !r.IsGenerator() {
			continue
		}

		s.chokeGroup(delay, r)
		s.enforcePolyphony(regionIndex)

		v := s.allocateVoice()
		if v == nil {
			s.droppedNotes.Add(1)
			continue
		}
		s.ageCounter++
		v.age = s.ageCounter
		v.regionIndex = regionIndex
		v.wheel = s.pitchWheel
		if !v.Start(r, rd.sample, key, velocity, delay, trigger, &s.cc) {
			v.Reset()
			s.retire(v)
		}
	}
}

// chokeGroup stops the voices whose regions are turned off by
// the group of the starting region.
func (s *Synth) chokeGroup(delay int, r *sfzfile.Region) {
	if r.Group == 0 {
		return
	}
	// Walking backwards keeps the iteration valid while the
	// fast-killed voices are removed from the active list.
	for i := len(s.active) - 1; i >= 0; i-- {
		v := &s.voices[s.active[i]]
		if v.region.OffBy != r.Group {
			continue
		}
		switch v.region.OffMode {
		case sfzfile.OffFast:
			s.fadeOut(v)
		default:
			v.Release(delay)
		}
	}
}

// enforcePolyphony makes a room for one more voice of the region
// by fading out its oldest voices.
func (s *Synth) enforcePolyphony(regionIndex int) {
	limit := s.regions[regionIndex].region.Polyphony
	if limit <= 0 {
		return
	}
	for {
		count := 0
		var oldest *Voice
		for _, index := range s.active {
			v := &s.voices[index]
			if v.regionIndex != regionIndex {
				continue
			}
			count++
			if oldest == nil || v.age < oldest.age {
				oldest = v
			}
		}
		if count < limit {
			return
		}
		s.fadeOut(oldest)
	}
}
