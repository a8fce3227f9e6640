// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"time"
	"unsafe"
)

// initialHashMax is the starting bucket-array size minus one (tunable,
// must stay a power of two minus one so `hash & max` is a valid modulo).
const initialHashMax = 15

// HashFunc computes a hash over key. It exists so callers can plug in a
// custom hash; HashTable falls back to the package's own multiply-by-33
// hash, seeded per-table, when none is supplied.
type HashFunc func(key []byte) uint32

type hashEntry struct {
	next *hashEntry
	hash uint32
	key  []byte
	val  unsafe.Pointer
}

// HashTable is an intrusive, open-chaining hash table allocated entirely
// out of a Pool: the table header, bucket array, and every entry it holds
// are pool memory, reclaimed only when the owning pool is cleared.
type HashTable struct {
	pool     *Pool
	array    []*hashEntry
	count    uint32
	max      uint32
	seed     uint32
	hashFunc HashFunc
	free     *hashEntry // recycled entry headers
}

// NewHashTable creates an empty HashTable allocated from p, using the
// default seeded hash function.
func NewHashTable(p *Pool) *HashTable {
	return NewHashTableFunc(p, nil)
}

// NewHashTableFunc is NewHashTable with an explicit hash function.
func NewHashTableFunc(p *Pool, hashFunc HashFunc) *HashTable {
	ht := (*HashTable)(p.Palloc(unsafe.Sizeof(HashTable{})))
	*ht = HashTable{}
	ht.init(p)
	ht.hashFunc = hashFunc
	return ht
}

func (ht *HashTable) init(p *Pool) {
	now := uint64(time.Now().UnixMicro())
	ht.pool = p
	ht.max = initialHashMax
	ht.seed = uint32((now>>32)^now^uint64(uintptr(unsafe.Pointer(p)))^uint64(uintptr(unsafe.Pointer(ht)))) - 1
	ht.array = allocHashArray(p, ht.max)
}

func allocHashArray(p *Pool, max uint32) []*hashEntry {
	ptr := p.Calloc(uintptr(max+1), unsafe.Sizeof((*hashEntry)(nil)))
	return unsafe.Slice((**hashEntry)(ptr), max+1)
}

// defaultHash is the classic multiply-by-33 string hash, seeded per table
// so different HashTable instances scatter identical keys differently.
func defaultHash(key []byte, seed uint32) uint32 {
	hash := seed
	for _, b := range key {
		hash = hash*33 + uint32(b)
	}
	return hash
}

func (ht *HashTable) hash(key []byte) uint32 {
	if ht.hashFunc != nil {
		return ht.hashFunc(key)
	}
	return defaultHash(key, ht.seed)
}

// findEntry scans the bucket chain for key, optionally inserting a new
// entry bound to val if none is found and val is non-nil.
func (ht *HashTable) findEntry(key []byte, val unsafe.Pointer, insertIfMissing bool) **hashEntry {
	h := ht.hash(key)
	slot := &ht.array[h&ht.max]
	for *slot != nil {
		e := *slot
		if e.hash == h && bytesEqual(e.key, key) {
			return slot
		}
		slot = &e.next
	}
	if !insertIfMissing {
		return slot
	}

	var e *hashEntry
	if ht.free != nil {
		e = ht.free
		ht.free = e.next
	} else {
		e = (*hashEntry)(ht.pool.Palloc(unsafe.Sizeof(hashEntry{})))
	}
	e.next = nil
	e.hash = h
	e.key = key
	e.val = val
	*slot = e
	ht.count++
	return slot
}

func (ht *HashTable) expand() {
	newMax := ht.max*2 + 1
	newArray := allocHashArray(ht.pool, newMax)
	for _, head := range ht.array {
		for e := head; e != nil; {
			next := e.next
			i := e.hash & newMax
			e.next = newArray[i]
			newArray[i] = e
			e = next
		}
	}
	ht.array = newArray
	ht.max = newMax
}

// Get returns the value stored under key, or nil.
func (ht *HashTable) Get(key []byte) unsafe.Pointer {
	e := *ht.findEntry(key, nil, false)
	if e == nil {
		return nil
	}
	return e.val
}

// GetString is Get for a string key.
func (ht *HashTable) GetString(key string) unsafe.Pointer {
	return ht.Get(stringToBytes(key))
}

// Set stores val under key, growing the bucket array if the chain length
// budget (count > max) is exceeded. Passing a nil val deletes the key.
func (ht *HashTable) Set(key []byte, val unsafe.Pointer) {
	slot := ht.findEntry(key, val, val != nil)
	e := *slot
	if e == nil {
		return // key absent, val nil: nothing to do
	}
	if val == nil {
		*slot = e.next
		e.next = ht.free
		ht.free = e
		ht.count--
		return
	}
	if e.val != val || e.key == nil {
		e.val = val
	}
	if ht.count > ht.max {
		ht.expand()
	}
}

// SetString is Set for a string key.
func (ht *HashTable) SetString(key string, val unsafe.Pointer) {
	ht.Set(stringToBytes(key), val)
}

// Size returns the number of entries currently stored.
func (ht *HashTable) Size() int { return int(ht.count) }

// Clear removes every entry, recycling their headers.
func (ht *HashTable) Clear() {
	for _, head := range ht.array {
		for head != nil {
			next := head.next
			ht.Set(head.key, nil)
			head = next
		}
	}
}

// Copy returns a deep copy of ht allocated from p.
func (ht *HashTable) Copy(p *Pool) *HashTable {
	res := (*HashTable)(p.Palloc(unsafe.Sizeof(HashTable{})))
	*res = HashTable{pool: p, count: ht.count, max: ht.max, seed: ht.seed, hashFunc: ht.hashFunc}
	res.array = allocHashArray(p, res.max)
	for i, head := range ht.array {
		var tail **hashEntry = &res.array[i]
		for e := head; e != nil; e = e.next {
			ne := (*hashEntry)(p.Palloc(unsafe.Sizeof(hashEntry{})))
			*ne = hashEntry{hash: e.hash, key: e.key, val: e.val}
			*tail = ne
			tail = &ne.next
		}
	}
	return res
}

// MergeFunc resolves a key present in both tables being merged; returning
// its result as the merged value.
type MergeFunc func(p *Pool, key []byte, v1, v2 unsafe.Pointer) unsafe.Pointer

// Merge combines ht and overlay into a new table allocated from p, with
// overlay's values winning on key collision.
func (ht *HashTable) Merge(p *Pool, overlay *HashTable) *HashTable {
	return ht.MergeFunc(p, overlay, nil)
}

// MergeFunc combines ht and overlay into a new table allocated from p,
// resolving collisions with merger when provided, else letting overlay
// win.
func (ht *HashTable) MergeFunc(p *Pool, overlay *HashTable, merger MergeFunc) *HashTable {
	resMax := ht.max
	if overlay.max > resMax {
		resMax = overlay.max
	}
	if ht.count+overlay.count > resMax {
		resMax = resMax*2 + 1
	}

	res := (*HashTable)(p.Palloc(unsafe.Sizeof(HashTable{})))
	*res = HashTable{pool: p, hashFunc: ht.hashFunc, count: ht.count, max: resMax, seed: ht.seed}
	res.array = allocHashArray(p, res.max)

	for _, head := range ht.array {
		for e := head; e != nil; e = e.next {
			i := e.hash & res.max
			ne := (*hashEntry)(p.Palloc(unsafe.Sizeof(hashEntry{})))
			*ne = hashEntry{hash: e.hash, key: e.key, val: e.val, next: res.array[i]}
			res.array[i] = ne
		}
	}

	for _, head := range overlay.array {
		for e := head; e != nil; e = e.next {
			h := res.hash(e.key)
			i := h & res.max
			var found *hashEntry
			for c := res.array[i]; c != nil; c = c.next {
				if bytesEqual(c.key, e.key) {
					found = c
					break
				}
			}
			if found != nil {
				if merger != nil {
					found.val = merger(p, e.key, e.val, found.val)
				} else {
					found.val = e.val
				}
				continue
			}
			ne := (*hashEntry)(p.Palloc(unsafe.Sizeof(hashEntry{})))
			*ne = hashEntry{hash: h, key: e.key, val: e.val, next: res.array[i]}
			res.array[i] = ne
			res.count++
		}
	}
	return res
}

// HashIterator walks a HashTable's entries one at a time, for callers who
// need to suspend a scan and interleave it with other work instead of
// handing control to a closure (see Foreach for that style). A zero
// HashIterator is exhausted; obtain one from HashTable.First.
type HashIterator struct {
	array []*hashEntry
	bin   int
	entry *hashEntry
}

// First returns an iterator positioned before ht's first entry. Call Next
// to advance it before reading Key/Val.
func (ht *HashTable) First() *HashIterator {
	it := &HashIterator{array: ht.array, bin: -1}
	return it
}

// Next advances the iterator to the next entry, walking the current
// bucket's chain before moving to the next bucket. It reports whether an
// entry is now available.
func (it *HashIterator) Next() bool {
	if it.entry != nil {
		if next := it.entry.next; next != nil {
			it.entry = next
			return true
		}
	}
	for it.bin++; it.bin < len(it.array); it.bin++ {
		if it.array[it.bin] != nil {
			it.entry = it.array[it.bin]
			return true
		}
	}
	it.entry = nil
	return false
}

// Key returns the current entry's key. Valid only after a Next call that
// returned true.
func (it *HashIterator) Key() []byte { return it.entry.key }

// Val returns the current entry's value. Valid only after a Next call
// that returned true.
func (it *HashIterator) Val() unsafe.Pointer { return it.entry.val }

// ForeachFunc is called once per entry by HashTable.Foreach. Returning
// false stops the scan early.
type ForeachFunc func(key []byte, val unsafe.Pointer) bool

// Foreach visits every entry in unspecified order, stopping early if comp
// returns false. It reports whether the scan ran to completion.
func (ht *HashTable) Foreach(comp ForeachFunc) bool {
	for _, head := range ht.array {
		for e := head; e != nil; e = e.next {
			if !comp(e.key, e.val) {
				return false
			}
		}
	}
	return true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func stringToBytes(s string) []byte {
	if s == "" {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
