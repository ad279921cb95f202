package sampler

// StealPolicy selects a voice to steal when all voices are busy.
//
// The candidates never include the protected voices.
// Choose returns an index into candidates, or -1 to drop the new note.
type StealPolicy interface {
	Choose(candidates []*Voice) int
}

// OldestReleasingFirst steals the oldest releasing voice.
// When no voice is releasing, it steals the oldest playing one.
type OldestReleasingFirst struct{}

func (OldestReleasingFirst) Choose(candidates []*Voice) int {
	best := -1
	for i, v := range candidates {
		if !v.IsReleasing() {
			continue
		}
		if best == -1 || v.age < candidates[best].age {
			best = i
		}
	}
	if best != -1 {
		return best
	}
	return OldestFirst{}.Choose(candidates)
}

// OldestFirst steals the voice that was started first.
type OldestFirst struct{}

func (OldestFirst) Choose(candidates []*Voice) int {
	best := -1
	for i, v := range candidates {
		if best == -1 || v.age < candidates[best].age {
			best = i
		}
	}
	return best
}

// QuietestFirst steals the voice with the lowest output power.
// The ties are resolved in favor of the older voice.
type QuietestFirst struct{}

func (QuietestFirst) Choose(candidates []*Voice) int {
	best := -1
	for i, v := range candidates {
		if best == -1 {
			best = i
			continue
		}
		b := candidates[best]
		if v.power < b.power || (v.power == b.power && v.age < b.age) {
			best = i
		}
	}
	return best
}
