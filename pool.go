// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"reflect"
	"sync"
	"unsafe"
)

// defaultAlign is the alignment every Palloc request is rounded up to: 16
// bytes, wide enough for SSE/NEON-class SIMD loads.
const defaultAlign = 16

// CleanupFunc runs when a pool is cleared or destroyed, or is invoked
// directly via CleanupRun. A non-nil error is logged and otherwise
// ignored; cleanups cannot abort the clear they run during.
type CleanupFunc func(data unsafe.Pointer) error

// cleanup is one registered callback, either in Pool.cleanups or
// Pool.preCleanups.
type cleanup struct {
	next *cleanup
	data unsafe.Pointer
	fn   CleanupFunc
}

// PoolFlags controls a Pool's locking behavior.
type PoolFlags uint8

const (
	// FlagNone requests no pool-level locking: Lock/Unlock are no-ops, so
	// the pool itself is single-goroutine only. The allocator still takes
	// its own mutex around every bucket operation.
	FlagNone PoolFlags = 0
	// FlagThreadSafeAllocator is implied by FlagThreadSafePool. An
	// Allocator always guards its buckets with its mutex, whatever the
	// flags, so on its own this flag changes no behavior.
	FlagThreadSafeAllocator PoolFlags = 1 << 0
	// FlagThreadSafePool makes Lock/Unlock actually take the allocator's
	// mutex around pool operations, in addition to FlagThreadSafeAllocator.
	FlagThreadSafePool PoolFlags = 1<<1 | FlagThreadSafeAllocator
	// FlagCustom is reserved for ABI compatibility with a host pool
	// implementation and is never set by this package.
	FlagCustom PoolFlags = 1 << 2
)

// Pool is a hierarchical bump-pointer arena. Individual small allocations
// are never freed; the whole pool is freed at once by Clear or Destroy.
// Larger allocations (>= blockThreshold) are tracked by an embedded
// allocManager and may be recycled within the pool's lifetime.
//
// A Pool must be created by NewPool, Create or a parent's MakeChild; the
// zero value is not usable.
type Pool struct {
	tag    string
	parent *Pool
	child  *Pool
	sibling *Pool
	ref    **Pool

	cleanups     *cleanup
	freeCleanups *cleanup
	preCleanups  *cleanup

	allocator *Allocator
	active    *memNode
	self      *memNode
	// selfFirstAvail is the first-avail watermark recorded just after the
	// Pool struct itself was carved out of self, restored by Clear.
	selfFirstAvail unsafe.Pointer

	userData *HashTable

	allocmngr allocManager

	mu         sync.Mutex
	threadSafe bool
}

// NewPool creates a standalone pool with its own Allocator.
func NewPool(flags PoolFlags) *Pool {
	return newPool(nil, NewAllocator(), flags)
}

// NewPoolWithAllocator creates a standalone pool backed by an
// already-constructed Allocator, typically one shared by several pool
// trees or configured with RunMmap/WithMaxFree.
func NewPoolWithAllocator(alloc *Allocator, flags PoolFlags) *Pool {
	return newPool(nil, alloc, flags)
}

func newPool(parent *Pool, allocator *Allocator, flags PoolFlags) *Pool {
	node := allocator.alloc(minAlloc - uint32(sizeofMemNode))
	node.next = node
	node.ref = &node.next

	p := (*Pool)(node.firstAvail)
	*p = Pool{
		parent:    parent,
		allocator: allocator,
		active:    node,
		self:      node,
		threadSafe: flags&FlagThreadSafePool == FlagThreadSafePool,
	}
	p.allocmngr.reset(p)

	poolSize := (unsafe.Sizeof(Pool{}) + defaultAlign - 1) &^ (defaultAlign - 1)
	node.firstAvail = unsafe.Add(unsafe.Pointer(p), poolSize)
	p.selfFirstAvail = node.firstAvail

	if allocator.owner == nil {
		allocator.owner = p
	}

	if parent != nil {
		allocator.mu.Lock()
		p.sibling = parent.child
		if p.sibling != nil {
			p.sibling.ref = &p.sibling
		}
		parent.child = p
		p.ref = &parent.child
		allocator.mu.Unlock()
	}

	return p
}

// MakeChild creates a child pool sharing this pool's allocator.
func (p *Pool) MakeChild() *Pool {
	return newPool(p, p.allocator, p.flags())
}

// MakeChildWithAllocator creates a child pool backed by a different
// allocator than its parent's.
func (p *Pool) MakeChildWithAllocator(allocator *Allocator) *Pool {
	return newPool(p, allocator, p.flags())
}

func (p *Pool) flags() PoolFlags {
	if p.threadSafe {
		return FlagThreadSafePool
	}
	return FlagNone
}

// Tag returns the pool's diagnostic tag, set via SetTag.
func (p *Pool) Tag() string { return p.tag }

// SetTag assigns a diagnostic tag to the pool, surfaced by debugging and
// logging but never interpreted by the allocator itself.
func (p *Pool) SetTag(tag string) { p.tag = tag }

// Lock acquires the shared allocator's mutex if the pool was created with
// FlagThreadSafePool. Otherwise it is a no-op.
func (p *Pool) Lock() {
	if p.threadSafe {
		p.allocator.mu.Lock()
	}
}

// Unlock releases the lock acquired by Lock.
func (p *Pool) Unlock() {
	if p.threadSafe {
		p.allocator.mu.Unlock()
	}
}

// Palloc allocates size bytes from the pool's arena, bumping the active
// node's pointer or pulling in a new node from the allocator when the
// active node has no room left. The returned memory is not zeroed.
func (p *Pool) Palloc(size uintptr) unsafe.Pointer {
	aligned := (size + defaultAlign - 1) &^ (defaultAlign - 1)
	if aligned < size {
		return nil // overflow
	}

	active := p.active
	if aligned <= active.freeSpace() {
		mem := active.firstAvail
		active.firstAvail = unsafe.Add(mem, aligned)
		return mem
	}

	var node *memNode
	if next := active.next; aligned <= next.freeSpace() {
		node = next
		node.remove()
	} else {
		node = p.allocator.alloc(uint32(aligned))
		if node == nil {
			return nil
		}
	}

	node.freeIndex = 0
	mem := node.firstAvail
	node.firstAvail = unsafe.Add(mem, aligned)

	node.insert(active)
	p.active = node

	// Re-rank the old active node in the ring by its remaining free
	// space so Palloc keeps finding the roomiest node first.
	remaining := uintptr(active.endp) - uintptr(active.firstAvail) + 1
	active.freeIndex = uint32((alignUp(uint64(remaining), boundarySize) - boundarySize) >> boundaryIndex)

	next := active.next
	if active.freeIndex >= next.freeIndex {
		return mem
	}
	for next.freeIndex > active.freeIndex {
		next = next.next
		if next == active.next {
			break
		}
	}
	for active.freeIndex < next.freeIndex {
		next = next.next
	}
	active.remove()
	active.insert(next)

	return mem
}

// Calloc allocates count*eltsize bytes and zeroes them.
func (p *Pool) Calloc(count, eltsize uintptr) unsafe.Pointer {
	size := count * eltsize
	ptr := p.Palloc(size)
	if ptr != nil {
		clear(unsafe.Slice((*byte)(ptr), size))
	}
	return ptr
}

// Pmemdup copies the bytes of m into freshly pool-allocated memory.
func (p *Pool) Pmemdup(m []byte) unsafe.Pointer {
	if m == nil {
		return nil
	}
	res := p.Palloc(uintptr(len(m)))
	if res != nil {
		copy(unsafe.Slice((*byte)(res), len(m)), m)
	}
	return res
}

// Pstrdup copies s into a freshly pool-allocated string backed by
// pool memory, valid for the pool's lifetime.
func (p *Pool) Pstrdup(s string) string {
	if s == "" {
		return ""
	}
	res := p.Palloc(uintptr(len(s)))
	b := unsafe.Slice((*byte)(res), len(s))
	copy(b, s)
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// Alloc allocates sizeInBytes, routing requests at or above
// blockThreshold through the pool's allocManager so they can be recycled
// by a later Free of the same (or a compatible) size. granted reports the
// size of the block actually handed back, which can exceed sizeInBytes
// when a recycled block is reused.
func (p *Pool) Alloc(sizeInBytes uintptr) (ptr unsafe.Pointer, granted uintptr) {
	p.Lock()
	defer p.Unlock()

	if sizeInBytes >= blockThreshold {
		granted = sizeInBytes
		ptr = p.allocmngr.alloc(&granted, func(pp *Pool, s uintptr) unsafe.Pointer { return pp.Palloc(s) })
		return ptr, granted
	}

	p.allocmngr.incrementAlloc(sizeInBytes)
	return p.Palloc(sizeInBytes), sizeInBytes
}

// Free returns ptr/sizeInBytes to the pool's allocManager for recycling.
// It is a no-op for allocations below blockThreshold, which are never
// individually reclaimed; they live until the pool is cleared.
func (p *Pool) Free(ptr unsafe.Pointer, sizeInBytes uintptr) {
	if sizeInBytes < blockThreshold {
		return
	}
	p.Lock()
	defer p.Unlock()
	p.allocmngr.free(ptr, sizeInBytes, func(pp *Pool, s uintptr) unsafe.Pointer { return pp.Palloc(s) })
}

// AllocatedBytes returns the running total of bytes Alloc has handed out
// fresh, plus the free-list record headers that Free allocates. Bytes
// served from the recycled free list are counted by ReturnedBytes, not
// here. It does not decrease across Free calls; Clear resets it to zero.
func (p *Pool) AllocatedBytes() uint64 {
	return uint64(p.allocmngr.allocated)
}

// ReturnedBytes returns the running total of bytes satisfied by reusing a
// previously freed block instead of a fresh pool bump.
func (p *Pool) ReturnedBytes() uint64 {
	return uint64(p.allocmngr.returned)
}

// Clear destroys every child pool, runs all cleanups, and resets the
// pool's own arena to a single empty node, without destroying the pool
// itself. The pool can continue to be used afterward; everything it
// handed out before Clear is reclaimed.
func (p *Pool) Clear() {
	s := currentStack()
	s.Push(p)
	runCleanups(&p.preCleanups)
	s.Pop()
	p.preCleanups = nil

	for p.child != nil {
		p.child.Destroy()
	}

	s.Push(p)
	runCleanups(&p.cleanups)
	s.Pop()
	p.cleanups = nil
	p.freeCleanups = nil
	p.userData = nil

	active := p.self
	p.active = active
	active.firstAvail = p.selfFirstAvail

	if active.next == active {
		p.allocmngr.reset(p)
		return
	}

	*active.ref = nil
	if active.next != nil {
		p.allocator.free(active.next)
	}
	active.next = active
	active.ref = &active.next
	p.allocmngr.reset(p)
}

// Destroy runs Clear's teardown, unlinks the pool from its parent, and
// releases the pool's own backing node to the allocator. If the pool owns
// its allocator (it was created without an explicit parent allocator),
// the allocator is released too. After Destroy the pool must not be used.
func (p *Pool) Destroy() {
	s := currentStack()
	s.Push(p)
	runCleanups(&p.preCleanups)
	s.Pop()
	p.preCleanups = nil

	for p.child != nil {
		p.child.Destroy()
	}

	s.Push(p)
	runCleanups(&p.cleanups)
	s.Pop()
	p.cleanups = nil
	p.freeCleanups = nil
	p.userData = nil

	if p.parent != nil {
		p.allocator.mu.Lock()
		sib := p.sibling
		*p.ref = p.sibling
		if sib != nil {
			sib.ref = p.ref
		}
		p.allocator.mu.Unlock()
	}

	allocator := p.allocator
	active := p.self
	*active.ref = nil

	allocator.free(active)
	if allocator.owner == p {
		allocator.owner = nil
	}
}

// CleanupRegister queues cb to run, with data, when the pool is cleared or
// destroyed. Cleanups run in LIFO order.
func (p *Pool) CleanupRegister(data unsafe.Pointer, cb CleanupFunc) {
	p.cleanups = p.newCleanup(data, cb, p.cleanups)
}

// PreCleanupRegister queues cb to run before child pools are torn down and
// before the ordinary cleanup list runs.
func (p *Pool) PreCleanupRegister(data unsafe.Pointer, cb CleanupFunc) {
	p.preCleanups = p.newCleanup(data, cb, p.preCleanups)
}

func (p *Pool) newCleanup(data unsafe.Pointer, cb CleanupFunc, next *cleanup) *cleanup {
	var c *cleanup
	if p.freeCleanups != nil {
		c = p.freeCleanups
		p.freeCleanups = c.next
	} else {
		c = (*cleanup)(p.Palloc(unsafe.Sizeof(cleanup{})))
	}
	c.data = data
	c.fn = cb
	c.next = next
	return c
}

// CleanupKill removes a previously registered cleanup (matched by data and
// function identity) from both the cleanup and pre-cleanup lists, without
// running it.
func (p *Pool) CleanupKill(data unsafe.Pointer, cb CleanupFunc) {
	p.killFrom(&p.cleanups, data, cb)
	p.killFrom(&p.preCleanups, data, cb)
}

func (p *Pool) killFrom(head **cleanup, data unsafe.Pointer, cb CleanupFunc) {
	lastp := head
	for c := *lastp; c != nil; c = *lastp {
		if c.data == data && sameCleanupFunc(c.fn, cb) {
			*lastp = c.next
			c.next = p.freeCleanups
			p.freeCleanups = c
			return
		}
		lastp = &c.next
	}
}

// CleanupRun kills (see CleanupKill) and immediately invokes cb with data.
func (p *Pool) CleanupRun(data unsafe.Pointer, cb CleanupFunc) {
	p.CleanupKill(data, cb)
	runCleanupFn(cb, data)
}

// UserdataSet stores data under key, duplicating the key into pool memory
// the first time it is seen. If cb is non-nil it is registered as a
// cleanup over data.
func (p *Pool) UserdataSet(key string, data unsafe.Pointer, cb CleanupFunc) {
	if p.userData == nil {
		p.userData = NewHashTable(p)
	}
	if p.userData.GetString(key) == nil {
		p.userData.SetString(p.Pstrdup(key), data)
	} else {
		p.userData.SetString(key, data)
	}
	if cb != nil {
		p.CleanupRegister(data, cb)
	}
}

// UserdataSetn is UserdataSet without the key-duplication: the caller is
// responsible for key outliving the pool.
func (p *Pool) UserdataSetn(key string, data unsafe.Pointer, cb CleanupFunc) {
	if p.userData == nil {
		p.userData = NewHashTable(p)
	}
	p.userData.SetString(key, data)
	if cb != nil {
		p.CleanupRegister(data, cb)
	}
}

// UserdataGet returns the value previously stored under key, or nil.
func (p *Pool) UserdataGet(key string) unsafe.Pointer {
	if p.userData == nil {
		return nil
	}
	return p.userData.GetString(key)
}

// sameCleanupFunc compares function identity the way the original C
// function-pointer equality does, since Go func values are not otherwise
// comparable.
func sameCleanupFunc(a, b CleanupFunc) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
