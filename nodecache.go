// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"math"
	"sync/atomic"
	"unsafe"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
	"code.hybscloud.com/mempool/internal"
)

// RingPool is a bounded, lock-free multi-producer multi-consumer pool of
// fixed storage slots, based on the algorithm in "A Scalable, Portable,
// and Memory-Efficient Lock-Free FIFO Queue" (Ruslan Nikolaev, 2019). It
// is the engine behind the package's tiered buffer pools; Allocator's
// optional warm node cache is the separate nodeCache type below.
type RingPool[T any] struct {
	_ noCopy

	items      []T
	capacity   uint32
	mask       uint32
	entries    []atomic.Uint64
	remapM     uint32
	remapN     uint32
	remapMask  uint32
	head, tail atomic.Uint32

	nonblocking bool
}

// NewRingPool creates a RingPool with the given capacity, rounded up to
// the next power of two.
func NewRingPool[T any](capacity int) *RingPool[T] {
	if capacity < 1 || capacity > math.MaxUint32 {
		panic("capacity must be between 1 and MaxUint32")
	}
	capacity--
	capacity |= capacity >> 1
	capacity |= capacity >> 2
	capacity |= capacity >> 4
	capacity |= capacity >> 8
	capacity |= capacity >> 16
	capacity++

	remapM := min(internal.CacheLineSize/unsafe.Sizeof(atomic.Uint64{}), uintptr(capacity))
	remapN := max(1, uintptr(capacity)/remapM)
	remapMask := remapN - 1

	return &RingPool[T]{
		items:     make([]T, 0, capacity),
		capacity:  uint32(capacity),
		mask:      uint32(capacity - 1),
		remapM:    uint32(remapM),
		remapN:    uint32(remapN),
		remapMask: uint32(remapMask),
	}
}

// Fill populates every slot via newFunc and marks the pool full.
func (p *RingPool[T]) Fill(newFunc func() T) {
	for range p.capacity {
		p.items = append(p.items, newFunc())
	}
	p.entries = make([]atomic.Uint64, p.capacity)
	for i := range p.capacity {
		p.entries[i].Store(uint64(i))
	}
	p.tail.Store(p.capacity)
}

// SetNonblock toggles whether Get/Put return iox.ErrWouldBlock instead of
// blocking when the pool is empty/full.
func (p *RingPool[T]) SetNonblock(nonblocking bool) {
	p.nonblocking = nonblocking
}

// Value returns the item at the given indirect index.
func (p *RingPool[T]) Value(indirect int) T {
	if indirect < 0 || indirect >= int(p.capacity) {
		panic("invalid ring pool indirect")
	}
	return p.items[indirect]
}

// SetValue overwrites the item at the given indirect index.
func (p *RingPool[T]) SetValue(indirect int, value T) {
	if indirect < 0 || indirect >= int(p.capacity) {
		panic("invalid ring pool indirect")
	}
	p.items[indirect] = value
}

// Get acquires an indirect index from the pool, blocking (with
// iox.Backoff) unless the pool is nonblocking.
func (p *RingPool[T]) Get() (indirect int, err error) {
	var aw iox.Backoff
	for {
		entry, err := p.tryGet()
		if err == nil {
			return int(entry & uint64(p.mask)), nil
		}
		if err == iox.ErrWouldBlock {
			if p.nonblocking {
				return ringPoolEntryEmpty, err
			}
			aw.Wait()
			continue
		}
		return ringPoolEntryEmpty, err
	}
}

// Put returns indirect to the pool.
func (p *RingPool[T]) Put(indirect int) error {
	entry := uint64(indirect)
	var aw iox.Backoff
	for {
		err := p.tryPut(entry)
		if err == nil {
			return nil
		}
		if err == iox.ErrWouldBlock {
			if p.nonblocking {
				return err
			}
			aw.Wait()
			continue
		}
		return err
	}
}

// Cap returns the pool's capacity.
func (p *RingPool[T]) Cap() int { return int(p.capacity) }

const (
	ringPoolEntryEmpty    = 1 << 62
	ringPoolEntryTurnMask = ringPoolEntryEmpty>>32 - 1
)

func (p *RingPool[T]) tryGet() (entry uint64, err error) {
	sw := spin.Wait{}
	for {
		h, t := p.head.Load(), p.tail.Load()
		if h == t {
			return ringPoolEntryEmpty, iox.ErrWouldBlock
		}
		hi := p.remap(h & p.mask)
		e := p.entries[hi].Load()

		if h != p.head.Load() {
			sw.Once()
			continue
		}

		nextTurn := (h/p.capacity + 1) & ringPoolEntryTurnMask
		if e == p.empty(nextTurn) {
			p.head.CompareAndSwap(h, h+1)
			sw.Once()
			continue
		}
		ok := p.entries[hi].CompareAndSwap(e, p.empty(nextTurn))
		p.head.CompareAndSwap(h, h+1)
		if ok {
			return e, nil
		}
		sw.Once()
	}
}

func (p *RingPool[T]) tryPut(e uint64) error {
	sw := spin.Wait{}
	for {
		h, t := p.head.Load(), p.tail.Load()
		if t != p.tail.Load() {
			sw.Once()
			continue
		}
		if t == h+p.capacity {
			return iox.ErrWouldBlock
		}
		turn, ti := (t/p.capacity)&ringPoolEntryTurnMask, p.remap(t)
		ok := p.entries[ti].CompareAndSwap(p.empty(turn), e)
		p.tail.CompareAndSwap(t, t+1)
		if ok {
			return nil
		}
		sw.Once()
	}
}

func (p *RingPool[T]) remap(cursor uint32) int {
	q, r := cursor/p.remapN, cursor&p.remapMask
	return int(r*p.remapM + q%p.remapM)
}

func (p *RingPool[T]) empty(turn uint32) uint64 {
	return ringPoolEntryEmpty | uint64(turn&ringPoolEntryTurnMask)
}

// nodeCache is a non-blocking warm cache of pre-grown, fixed-size
// memNode blocks consulted by Allocator.alloc/free before the
// mutex-guarded bucket path, avoiding the allocator lock entirely on the
// hit path for the pool system's most common growth size (minAlloc).
//
// Unlike RingPool, the set of node pointers passing through a nodeCache
// is not fixed at construction (nodes continually enter via free and
// leave via alloc), so the fixed-slot indirect-index scheme RingPool uses
// for buffer pools does not fit: there is no stable "indirect" a caller
// could round-trip through Get/Put. Instead nodeCache is a bounded
// Treiber stack of raw pointers, still built from the same CAS-retry-
// with-spin.Wait idiom.
type nodeCache struct {
	top      atomic.Pointer[memNode]
	size     atomic.Int32
	capacity int32
}

// newNodeCache builds an empty nodeCache that accepts up to capacity
// minAlloc-sized nodes.
func newNodeCache(capacity int) *nodeCache {
	return &nodeCache{capacity: int32(capacity)}
}

// get pops a node from the cache, or returns nil on a miss.
func (c *nodeCache) get() *memNode {
	sw := spin.Wait{}
	for {
		top := c.top.Load()
		if top == nil {
			return nil
		}
		if c.top.CompareAndSwap(top, top.next) {
			c.size.Add(-1)
			top.next = nil
			top.firstAvail = unsafe.Add(unsafe.Pointer(top), sizeofMemNode)
			return top
		}
		sw.Once()
	}
}

// put pushes node onto the cache if it is exactly minAlloc-sized and the
// cache has not reached capacity. It reports whether the node was
// accepted; a rejected node must be handed to the ordinary bucket/sink
// path instead.
func (c *nodeCache) put(node *memNode) bool {
	if int(node.index)+1 != minAlloc>>boundaryIndex {
		return false
	}
	if c.size.Load() >= c.capacity {
		return false
	}

	sw := spin.Wait{}
	for {
		top := c.top.Load()
		node.next = top
		if c.top.CompareAndSwap(top, node) {
			c.size.Add(1)
			return true
		}
		sw.Once()
	}
}
