// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"unsafe"
)

const (
	// boundaryIndex is the shift that defines boundarySize.
	boundaryIndex = 12
	// boundarySize is the unit in which the allocator measures and grows
	// blocks (4 KiB).
	boundarySize = 1 << boundaryIndex
	// minAlloc is the smallest block the allocator ever grows, regardless
	// of the caller's request.
	minAlloc = 2 * boundarySize
	// maxIndex is the number of exact size-class buckets. Blocks whose
	// boundary-unit index is >= maxIndex land in the sink bucket instead.
	maxIndex = 20
	// allocatorMaxFreeUnlimited is the sentinel value of Allocator.max that
	// disables retention capping: every freed node is kept.
	allocatorMaxFreeUnlimited = 0
	// allocatorMmapReserved bounds the virtual address space a single
	// mmap-backed allocator may reserve. It is a reservation of address
	// space, not committed memory.
	allocatorMmapReserved = 64 << 30
	// sizeofMemNode is the boundary-aligned header every grown block
	// reserves for its memNode before usable space begins.
	sizeofMemNode = (unsafe.Sizeof(memNode{}) + 15) &^ 15
)

// Allocator is the page/block supplier shared by a tree of pools. It keeps
// 20 exact size-class free buckets plus one sink bucket for oversized
// blocks, and optionally grows its backing memory from an anonymous mmap
// region instead of the Go heap.
//
// All fields below mu are protected by mu.
type Allocator struct {
	mu sync.Mutex

	last    int // highest populated index in buf, -1 if buf is empty
	max     uint32
	current uint32
	buf     [maxIndex]*memNode
	sink    *memNode

	owner *Pool

	mmap  mmapArena
	cache *nodeCache
}

// AllocatorOption configures a new Allocator.
type AllocatorOption func(*Allocator)

// WithMaxFree caps the total retained free space, in bytes, an Allocator
// keeps before it starts releasing nodes back to the Go runtime instead of
// bucketing them. The default is unlimited retention.
func WithMaxFree(bytes uint64) AllocatorOption {
	return func(a *Allocator) { a.SetMax(bytes) }
}

// WithNodeCache fronts the allocator's mutex-guarded buckets with a
// lock-free warm cache of up to capacity pre-grown minAlloc-sized blocks.
// It only ever serves or accepts requests that grow to exactly minAlloc
// bytes (the size every freshly created Pool's first node uses), and
// never changes the allocator's externally observable behavior, only its
// contention under concurrent pool creation/destruction.
func WithNodeCache(capacity int) AllocatorOption {
	return func(a *Allocator) { a.cache = newNodeCache(capacity) }
}

// NewAllocator creates an Allocator with empty buckets and unlimited
// retention.
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{last: -1}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetMax sets the retention cap, in bytes, rounded up to a boundary
// multiple. Passing 0 restores unlimited retention.
func (a *Allocator) SetMax(bytes uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	maxFreeIndex := uint32(alignUp(bytes, boundarySize) >> boundaryIndex)
	a.current += maxFreeIndex
	a.current -= a.max
	a.max = maxFreeIndex
	if a.current > a.max {
		a.current = a.max
	}
}

// RunMmap switches the allocator into mmap-backed growth mode, reserving
// virtual address space upfront and mapping in initialPages boundary-sized
// pages (1024 when initialPages is 0). It is a no-op returning true if mmap mode is
// already active, and returns false if the platform has no mmap support or
// the mapping could not be established.
func (a *Allocator) RunMmap(initialPages uint32) bool {
	if initialPages == 0 {
		initialPages = 1024
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.mmap.active() {
		return true
	}
	return a.mmap.start(initialPages)
}

// alloc returns a node with at least size bytes of usable space beyond its
// header, or nil if the request cannot be satisfied.
func (a *Allocator) alloc(inSize uint32) *memNode {
	size := alignUp32(inSize+uint32(sizeofMemNode), boundarySize)
	if size < inSize {
		return nil // overflow
	}
	if size < minAlloc {
		size = minAlloc
	}

	index := int(size>>boundaryIndex) - 1
	if index < 0 {
		index = 0
	}

	if size == minAlloc && a.cache != nil {
		if node := a.cache.get(); node != nil {
			return node
		}
	}

	a.mu.Lock()

	if index < maxIndex && index <= a.last {
		maxIdx := a.last
		i := index
		for a.buf[i] == nil && i < maxIdx {
			i++
		}
		if node := a.buf[i]; node != nil {
			if a.buf[i] = node.next; a.buf[i] == nil && i >= maxIdx {
				for maxIdx > 0 && a.buf[maxIdx] == nil {
					maxIdx--
				}
				if a.buf[maxIdx] == nil {
					maxIdx = -1
				}
				a.last = maxIdx
			}

			a.current += node.index + 1
			if a.current > a.max {
				a.current = a.max
			}
			a.mu.Unlock()

			node.next = nil
			node.firstAvail = unsafe.Add(unsafe.Pointer(node), sizeofMemNode)
			return node
		}
	} else if a.sink != nil {
		var prev *memNode
		node := a.sink
		for node != nil && uint32(index) > node.index {
			prev = node
			node = node.next
		}
		if node != nil {
			if prev == nil {
				a.sink = node.next
			} else {
				prev.next = node.next
			}

			a.current += node.index + 1
			if a.current > a.max {
				a.current = a.max
			}
			a.mu.Unlock()

			node.next = nil
			node.firstAvail = unsafe.Add(unsafe.Pointer(node), sizeofMemNode)
			return node
		}
	}

	// No suitable node in any bucket. Grow fresh, either from the mmap
	// arena or the Go heap.
	var node *memNode
	if a.mmap.active() {
		node = a.mmap.grow(uint32(index)+1, size)
		a.mu.Unlock()
		if node == nil {
			return nil
		}
	} else {
		a.mu.Unlock()
		mem := make([]byte, size)
		node = (*memNode)(unsafe.Pointer(unsafe.SliceData(mem)))
	}

	node.next = nil
	node.index = uint32(index)
	node.firstAvail = unsafe.Add(unsafe.Pointer(node), sizeofMemNode)
	node.endp = unsafe.Add(unsafe.Pointer(node), size)
	return node
}

// free returns a chain of nodes (linked through node.next) to the
// allocator, bucketing each by size or, once the retention cap is
// exceeded, releasing it back to the Go runtime.
func (a *Allocator) free(node *memNode) {
	if a.cache != nil && node != nil && node.next == nil &&
		int(node.index)+1 == minAlloc>>boundaryIndex {
		if a.cache.put(node) {
			return
		}
	}

	var freelist *memNode

	a.mu.Lock()

	maxIdx := a.last
	maxFreeIndex := a.max
	currentFreeIndex := a.current

	for node != nil {
		next := node.next
		index := node.index

		switch {
		case maxFreeIndex != allocatorMaxFreeUnlimited && index+1 > currentFreeIndex:
			node.next = freelist
			freelist = node
		case int(index) < maxIndex:
			node.next = a.buf[index]
			a.buf[index] = node
			if index == 1 {
				checkDoubleFree(a.buf[index])
			}
			if int(index) > maxIdx {
				maxIdx = int(index)
			}
			if currentFreeIndex >= index+1 {
				currentFreeIndex -= index + 1
			} else {
				currentFreeIndex = 0
			}
		default:
			node.next = a.sink
			a.sink = node
			if currentFreeIndex >= index+1 {
				currentFreeIndex -= index + 1
			} else {
				currentFreeIndex = 0
			}
		}

		node = next
	}

	a.last = maxIdx
	a.current = currentFreeIndex
	mmapActive := a.mmap.active()

	a.mu.Unlock()

	if !mmapActive {
		for freelist != nil {
			next := freelist.next
			freelist = next
		}
	}
}

func alignUp(n uint64, boundary uint64) uint64 {
	return (n + boundary - 1) &^ (boundary - 1)
}

func alignUp32(n uint32, boundary uint32) uint32 {
	return (n + boundary - 1) &^ (boundary - 1)
}
