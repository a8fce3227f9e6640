// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"unsafe"
)

func TestMemNodeFreeSpace(t *testing.T) {
	buf := make([]byte, 256)
	n := &memNode{
		firstAvail: unsafe.Pointer(&buf[0]),
		endp:       unsafe.Pointer(&buf[128]),
	}
	if got, want := n.freeSpace(), uintptr(128); got != want {
		t.Errorf("freeSpace() = %d, want %d", got, want)
	}
}

func TestMemNodeInsertRemove(t *testing.T) {
	a := &memNode{}
	a.next = a
	a.ref = &a.next

	b := &memNode{}
	b.insert(a)

	if a.next != b || b.next != a {
		t.Fatalf("ring after insert: a.next=%p b.next=%p, want each other", a.next, b.next)
	}
	if b.ref != &a.next {
		t.Fatalf("b.ref not repointed at a.next")
	}

	b.remove()
	if a.next != a {
		t.Fatalf("a.next after remove = %p, want self (%p)", a.next, a)
	}
}

func TestMemNodeInsertThreeWay(t *testing.T) {
	a := &memNode{}
	a.next = a
	a.ref = &a.next

	b := &memNode{}
	b.insert(a)
	c := &memNode{}
	c.insert(a)

	// Ring should now be a -> b -> c -> a (c inserted immediately before a,
	// taking over a's predecessor slot from b).
	seen := map[*memNode]bool{}
	n := a
	for range 3 {
		seen[n] = true
		n = n.next
	}
	if !seen[a] || !seen[b] || !seen[c] {
		t.Fatalf("ring does not contain all three nodes")
	}
	if n != a {
		t.Fatalf("ring did not cycle back to a after 3 steps")
	}
}
