// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import "unsafe"

// blockThreshold is the request size, in bytes, at and above which Pool
// routes an allocation through allocManager's recycler instead of a plain
// arena bump. Below it, individual allocations are never freed; they are
// reclaimed only when the whole pool is cleared.
const blockThreshold = 256

// memAddr is one entry in allocManager's size-sorted free list: a
// previously-freed block, large enough to be worth recycling, parked until
// a future allocation of a compatible size claims it.
type memAddr struct {
	size    uintptr
	next    *memAddr
	address unsafe.Pointer
}

// allocRawFn carves sizeInBytes of fresh memory out of p, bypassing
// allocManager's recycler. It is how allocManager falls through to the
// pool's own bump allocator when recycling finds nothing usable.
type allocRawFn func(p *Pool, sizeInBytes uintptr) unsafe.Pointer

// allocManager is the per-pool recycler for allocations at or above
// blockThreshold. It keeps an ascending size-sorted singly-linked free
// list (buffered) of blocks the pool has freed but not yet reused, plus a
// freelist of spare memAddr record headers (freeBuffered) so recycling
// itself never needs a fresh pool allocation in the common case.
type allocManager struct {
	pool         *Pool
	buffered     *memAddr
	freeBuffered *memAddr

	allocBuffer uintptr
	allocated   uintptr
	returned    uintptr

	// tag and ptr are fed by the scope stack's PushTagged: tag holds the
	// maximum tag seen across every push for this pool, ptr the most
	// recently supplied annotation pointer. Diagnostics only; never read
	// by alloc/free.
	tag uint32
	ptr any
}

func (m *allocManager) reset(p *Pool) {
	*m = allocManager{pool: p}
}

// recordTag folds in a (tag, ptr) pair pushed via Stack.PushTagged: tag is
// kept only if it is the largest seen so far, ptr always replaced with the
// most recent value.
func (m *allocManager) recordTag(tag uint32, ptr any) {
	if tag > m.tag {
		m.tag = tag
	}
	m.ptr = ptr
}

func (m *allocManager) incrementAlloc(s uintptr) {
	m.allocated += s
	m.allocBuffer += s
}

func (m *allocManager) incrementReturn(s uintptr) {
	m.returned += s
}

// alloc looks for a previously-freed block big enough to satisfy
// sizeInBytes, reusing it if found, or falls through to allocFn for a
// fresh allocation. On reuse sizeInBytes is updated to the block's actual
// (larger) size, which is what the caller actually receives.
//
// The free list is ascending-sorted by size, so the scan stops the instant
// it sees an entry more than twice the requested size: every entry past
// that point is larger still and would be rejected too. A free block more
// than twice the request is never reused, so a request can grow fresh
// memory even while such a block sits in the list.
func (m *allocManager) alloc(sizeInBytes *uintptr, allocFn allocRawFn) unsafe.Pointer {
	if m.buffered != nil {
		lastp := &m.buffered
		for c := *lastp; c != nil; c = *lastp {
			if c.size > *sizeInBytes*2 {
				break
			} else if c.size >= *sizeInBytes {
				*lastp = c.next
				c.next = m.freeBuffered
				m.freeBuffered = c
				*sizeInBytes = c.size
				m.incrementReturn(*sizeInBytes)
				return c.address
			}
			lastp = &c.next
		}
	}
	m.incrementAlloc(*sizeInBytes)
	return allocFn(m.pool, *sizeInBytes)
}

// free deposits ptr/sizeInBytes into the free list for future reuse. It is
// a no-op if the pool has never routed an allocation through this manager
// (allocated == 0), which happens right after a pool clear: any pointer
// handed back in that state belongs to arena memory the clear already
// reclaimed wholesale.
func (m *allocManager) free(ptr unsafe.Pointer, sizeInBytes uintptr, allocFn allocRawFn) {
	if m.allocated == 0 {
		return
	}

	var addr *memAddr
	if m.freeBuffered != nil {
		addr = m.freeBuffered
		m.freeBuffered = addr.next
	} else {
		hdrSize := unsafe.Sizeof(memAddr{})
		addr = (*memAddr)(allocFn(m.pool, hdrSize))
		m.incrementAlloc(hdrSize)
	}
	if addr == nil {
		return
	}

	addr.size = sizeInBytes
	addr.address = ptr
	addr.next = nil

	if m.buffered == nil {
		m.buffered = addr
		return
	}

	lastp := &m.buffered
	for c := *lastp; c != nil; c = *lastp {
		if c.size >= sizeInBytes {
			addr.next = c
			*lastp = addr
			return
		}
		lastp = &c.next
	}
	*lastp = addr
}
