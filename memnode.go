// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import "unsafe"

// memNode is one bump-pointer block in a pool's ring of blocks. Allocation
// within a node is a plain pointer bump from firstAvail to endp; nodes are
// recycled whole by the Allocator, never shrunk or individually freed.
type memNode struct {
	next  *memNode
	ref   **memNode
	index uint32
	// freeIndex caches the node's free space in boundary units at the time
	// it was last made inactive, used to keep the ring sorted by
	// descending free space.
	freeIndex  uint32
	firstAvail unsafe.Pointer
	endp       unsafe.Pointer
}

// freeSpace returns the number of bytes remaining between firstAvail and endp.
func (n *memNode) freeSpace() uintptr {
	return uintptr(n.endp) - uintptr(n.firstAvail)
}

// insert splices n into the ring immediately before point, taking point's
// former predecessor slot. This mirrors the ref-pointer patching of the
// original C++ ring (a singly-linked list with pointer-to-pointer back
// references instead of classic prev/next), which lets removal run in O(1)
// without walking backward.
func (n *memNode) insert(point *memNode) {
	n.ref = point.ref
	*n.ref = n
	n.next = point
	point.ref = &n.next
}

// remove splices n out of the ring it currently belongs to.
func (n *memNode) remove() {
	*n.ref = n.next
	n.next.ref = n.ref
}
