package filepool

import (
	"sync/atomic"
)

// indexStack is a lock-free LIFO of stream indexes.
//
// The head packs a modification tag into the upper 32 bits
// to protect the pops against ABA; the lower 32 bits
// hold the top index+1 (0 means "empty").
type indexStack struct {
	head atomic.Uint64
	next []atomic.Uint32
}

func newIndexStack(size int) *indexStack {
	return &indexStack{next: make([]atomic.Uint32, size)}
}

func (s *indexStack) push(index int) {
	for {
		old := s.head.Load()
		s.next[index].Store(uint32(old))
		tag := (old >> 32) + 1
		if s.head.CompareAndSwap(old, tag<<32|uint64(index+1)) {
			return
		}
	}
}

// pop returns -1 if the stack is empty.
func (s *indexStack) pop() int {
	for {
		old := s.head.Load()
		top := uint32(old)
		if top == 0 {
			return -1
		}
		next := s.next[top-1].Load()
		tag := (old >> 32) + 1
		if s.head.CompareAndSwap(old, tag<<32|uint64(next)) {
			return int(top - 1)
		}
	}
}
