package sampler

import (
	"math"
)

type numeric interface {
	~uint8 | ~int | ~float32 | ~float64
}

func clampMin[T numeric](v, min T) T {
	if v < min {
		return min
	}
	return v
}

func clamp[T numeric](v, min, max T) T {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func db2mag(db float64) float64 {
	return math.Pow(10, db/20)
}

func secondsToFrames(seconds float32, sampleRate float64) int {
	if seconds <= 0 {
		return 0
	}
	return int(float64(seconds) * sampleRate)
}

func midiFrequency(key float64) float64 {
	return 440 * math.Exp2((key-69)/12)
}

func normalizeVelocity(velocity uint8) float32 {
	return float32(min(velocity, 127)) / 127
}
