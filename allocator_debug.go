// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build mempooldebug

package mempool

// doubleFreeScanCap bounds the debug-only free-list sanity scan below.
// A bucket this long is not a real workload; it is a free list that has
// looped back on itself because the same node was deposited twice.
const doubleFreeScanCap = 128 * 1024

// checkDoubleFree walks head, the bucket a node was just deposited into,
// and panics if the chain is implausibly long. It exists to catch a node
// freed twice in a row, which splices it into its own bucket a second
// time and turns the singly-linked free list into a cycle.
func checkDoubleFree(head *memNode) {
	n := 0
	for node := head; node != nil; node = node.next {
		n++
		if n > doubleFreeScanCap {
			panic("mempool: suspected double-free (free bucket exceeds sanity cap)")
		}
	}
}
