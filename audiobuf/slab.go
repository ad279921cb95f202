package audiobuf

// Slab hands out buffers carved from a few large allocations.
//
// It's used for the many small and long-lived buffers like the
// preloaded sample heads, where a separate allocation per buffer
// would fragment the heap. Buffers larger than the block size are
// allocated directly. A Slab is not safe for concurrent use.
type Slab struct {
	blocks    []slabBlock
	blockSize int
	maxBlocks int
}

type slabBlock struct {
	data []float32
	used int
}

func (b *slabBlock) available() int { return len(b.data) - b.used }

func (b *slabBlock) take(n int) []float32 {
	s := b.data[b.used : b.used+n : b.used+n]
	b.used += n
	return s
}

// NewSlab creates a slab with blocks of blockSize floats.
// After maxBlocks are allocated, the buffers are allocated individually.
func NewSlab(blockSize, maxBlocks int) *Slab {
	return &Slab{
		blocks:    make([]slabBlock, 0, maxBlocks),
		blockSize: blockSize,
		maxBlocks: maxBlocks,
	}
}

// NewBuffer is like the package-level NewBuffer, but the storage
// comes from the slab when possible.
func (p *Slab) NewBuffer(numChannels, numFrames int) *Buffer {
	b := &Buffer{}
	b.init(numChannels, numFrames, p.makeSlice(storageSize(numChannels, numFrames)))
	return b
}

func (p *Slab) makeSlice(n int) []float32 {
	if n > p.blockSize {
		// This chunk can't fit in any of the blocks.
		return make([]float32, n)
	}

	for i := range p.blocks {
		b := &p.blocks[i]
		if b.available() >= n {
			return b.take(n)
		}
	}

	if len(p.blocks) < p.maxBlocks {
		p.blocks = append(p.blocks, slabBlock{
			data: make([]float32, p.blockSize),
		})
		return p.blocks[len(p.blocks)-1].take(n)
	}

	// The slab is out of space.
	return make([]float32, n)
}

// SizeBytes reports the memory allocated by the slab blocks.
func (p *Slab) SizeBytes() int {
	return len(p.blocks) * p.blockSize * 4
}
