package sampler

import (
	"math"

	"github.com/quasilyte/sampler/audiobuf"
)

// RenderBlock writes the voice output into out, overwriting its contents.
// out must be a stereo span of at most SamplesPerBlock frames.
//
// A voice that finishes during this block goes idle after it
// contributed its final frames.
func (v *Voice) RenderBlock(out audiobuf.Span) {
	assert(out.NumChannels() == 2, "voice output must be stereo")
	assert(out.NumFrames() <= len(v.jumps), "voice output is larger than the block size")

	if v.state == VoiceIdle {
		out.Fill(0)
		return
	}

	delay := min(v.startDelay, out.NumFrames())
	out.First(delay).Fill(0)
	v.startDelay -= delay
	span := out.From(delay)
	if span.NumFrames() == 0 {
		return
	}

	numChannels := 1
	if v.sample != nil {
		numChannels = v.sample.Info.NumChannels
	}
	source := span.FirstChannels(numChannels)

	switch {
	case v.sample == nil:
		v.fillWithGenerator(source)
	case v.looping:
		v.fillLooped(source)
	case v.stream != nil:
		v.fillStreamed(source)
	default:
		v.fillInMemory(source)
	}

	if v.filterEnabled {
		for ch := 0; ch < numChannels; ch++ {
			v.filter.Process(ch, source.Channel(ch))
		}
	}
	v.applyAmplitude(source)
	v.applyPanning(span, numChannels)

	v.power = span.MeanSquared()

	if v.finished || v.eg.IsDone() {
		v.Reset()
	}
}

func (v *Voice) applyAmplitude(span audiobuf.Span) {
	n := span.NumFrames()
	env := v.envelope[:n]
	mod := v.modulation[:n]
	v.eg.Block(env)
	v.amplitude.Block(mod)
	v.kernels.Multiply(env, mod)
	v.kernels.ApplyGain(env, env, v.gain)
	span.ApplyGainSpan(env)
}

func (v *Voice) applyPanning(span audiobuf.Span, numChannels int) {
	n := span.NumFrames()
	left := span.Channel(0)
	right := span.Channel(1)
	mod := v.modulation[:n]

	if numChannels == 1 {
		v.kernels.Copy(right, left)
	} else if v.width != 1 {
		v.kernels.Fill(mod, v.width)
		v.kernels.Width(mod, left, right)
	}

	v.pan.Block(mod)
	v.kernels.Pan(mod, left, right)
}

// fillJumps writes the per-frame cursor steps: jumps[i] is the
// distance from the frame i position to the next one.
func (v *Voice) fillJumps(jumps []float32) {
	if v.bend.count == 0 {
		ratio := v.speed * math.Exp2(float64(v.bend.Value())/1200)
		v.kernels.Fill(jumps, float32(ratio))
		return
	}
	v.bend.Block(jumps)
	for i, cents := range jumps {
		jumps[i] = float32(v.speed * math.Exp2(float64(cents)/1200))
	}
}

func (v *Voice) fillWithGenerator(span audiobuf.Span) {
	out := span.Channel(0)
	jumps := v.jumps[:len(out)]
	v.fillJumps(jumps)
	if v.region.Sample != "*sine" {
		v.kernels.Fill(out, 0)
		return
	}
	phase := v.sinePhase
	for i := range out {
		out[i] = float32(math.Sin(phase))
		phase += v.sineStep * float64(jumps[i])
	}
	v.sinePhase = math.Mod(phase, 2*math.Pi)
}

func (v *Voice) fillLooped(span audiobuf.Span) {
	n := span.NumFrames()
	jumps := v.jumps[:n]
	left := v.left[:n]
	right := v.right[:n]
	indices := v.indices[:n]

	v.fillJumps(jumps)
	v.position = v.kernels.LoopingIndex(jumps, left, right, indices, v.position, float64(v.loopStart), float64(v.loopEnd))

	head := v.sample.Head()
	for ch := 0; ch < span.NumChannels(); ch++ {
		src := head.Channel(ch)
		out := span.Channel(ch)
		for i, j := range indices {
			k := j + 1
			if k >= v.loopEnd {
				k = v.loopStart
			}
			out[i] = src[j]*left[i] + src[k]*right[i]
		}
	}
}

func (v *Voice) fillInMemory(span audiobuf.Span) {
	n := span.NumFrames()
	end := v.sourceEnd
	if !v.sample.InMemory() {
		// No stream was available: play what's preloaded.
		end = min(end, v.sample.HeadFrames())
	}
	if end < 2 {
		span.Fill(0)
		v.finished = true
		return
	}

	jumps := v.jumps[:n]
	left := v.left[:n]
	right := v.right[:n]
	indices := v.indices[:n]

	v.fillJumps(jumps)
	position, emitted := v.kernels.SaturatingIndex(jumps, left, right, indices, v.position, float64(end-1))
	v.position = position

	head := v.sample.Head()
	for ch := 0; ch < span.NumChannels(); ch++ {
		src := head.Channel(ch)
		out := span.Channel(ch)
		for i, j := range indices[:emitted] {
			out[i] = src[j]*left[i] + src[j+1]*right[i]
		}
	}
	span.From(emitted).Fill(0)
	if emitted < n {
		v.finished = true
	}
}

func (v *Voice) fillStreamed(span audiobuf.Span) {
	n := span.NumFrames()
	allJumps := v.jumps[:n]
	v.fillJumps(allJumps)
	maxJump := float32(0)
	for _, jump := range allJumps {
		maxJump = max(maxJump, jump)
	}
	windowFrames := v.window.NumFrames()
	chunkFrames := max(1, int(float32(windowFrames-4)/maxJump))

	// The chunk positions are float32 offsets from base, but the
	// cursor itself advances in float64, like in the in-memory path.
	position := v.position
	for done := 0; done < n; {
		m := min(n-done, chunkFrames)
		jumps := allJumps[done : done+m]
		steps := v.steps[:m]
		positions := v.positions[:m]
		left := v.left[:m]
		right := v.right[:m]
		indices := v.indices[:m]

		base := int(position)
		// positions[i] = frac + jumps[0] + ... + jumps[i-1]
		steps[0] = float32(position - float64(base))
		copy(steps[1:], jumps[:m-1])
		v.kernels.Cumsum(positions, steps)
		v.kernels.InterpolationCast(positions, left, right, indices)

		// The frames that need the data past the sample end are silent.
		valid := m
		for valid > 0 && base+indices[valid-1]+1 >= v.sourceEnd {
			valid--
		}
		out := span.Subspan(done, m)
		if valid > 0 {
			window := v.window.Span().FirstChannels(span.NumChannels()).First(min(indices[valid-1]+2, windowFrames))
			v.stream.Read(window, base)
			for ch := 0; ch < span.NumChannels(); ch++ {
				src := window.Channel(ch)
				dst := out.Channel(ch)
				for i, j := range indices[:valid] {
					dst[i] = src[j]*left[i] + src[j+1]*right[i]
				}
			}
		}
		if valid < m {
			out.From(valid).Fill(0)
			span.From(done + m).Fill(0)
			v.finished = true
			break
		}

		for _, jump := range jumps {
			position += float64(jump)
		}
		done += m
	}

	v.position = position
	v.stream.Consume(int(position))
}
