package sfzfile

type numeric interface {
	~uint8 | ~int | ~int32 | ~uint32 | ~float32 | ~float64
}

// Range is a closed [Start, End] interval.
//
// The Start <= End invariant is maintained by NewRange and the setters;
// constructing a Range literal with Start > End is a caller error.
type Range[T numeric] struct {
	Start T
	End   T
}

// NewRange creates a range; an end smaller than start is raised to start.
func NewRange[T numeric](start, end T) Range[T] {
	return Range[T]{Start: start, End: max(start, end)}
}

func (r Range[T]) Length() T { return r.End - r.Start }

// Midpoint returns the center of the range.
// For integer types the result is rounded down.
func (r Range[T]) Midpoint() T {
	return r.Start + (r.End-r.Start)/2
}

// SetStart moves the start point, dragging the end along if needed.
func (r *Range[T]) SetStart(v T) {
	r.Start = v
	if v > r.End {
		r.End = v
	}
}

// SetEnd moves the end point, dragging the start along if needed.
func (r *Range[T]) SetEnd(v T) {
	r.End = v
	if v < r.Start {
		r.Start = v
	}
}

// Clamp returns v constrained to [Start, End].
func (r Range[T]) Clamp(v T) T {
	if v < r.Start {
		return r.Start
	}
	if v > r.End {
		return r.End
	}
	return v
}

// ContainsWithEnd reports whether v is in [Start, End].
func (r Range[T]) ContainsWithEnd(v T) bool {
	return v >= r.Start && v <= r.End
}

// Contains reports whether v is in [Start, End).
func (r Range[T]) Contains(v T) bool {
	return v >= r.Start && v < r.End
}

// ShrinkIfSmaller narrows the range to fit inside [start, end].
// The arguments can be passed in any order.
func (r *Range[T]) ShrinkIfSmaller(start, end T) {
	if start > end {
		start, end = end, start
	}
	if start > r.Start {
		r.Start = start
	}
	if end < r.End {
		r.End = end
	}
	if r.Start > r.End {
		// The ranges did not overlap; collapse to the nearest point.
		r.End = r.Start
	}
}

// ExpandTo grows the range so it contains v.
func (r *Range[T]) ExpandTo(v T) {
	if r.ContainsWithEnd(v) {
		return
	}
	if v > r.End {
		r.End = v
	} else {
		r.Start = v
	}
}
