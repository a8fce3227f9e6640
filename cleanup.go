// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"log"
	"unsafe"
)

// runCleanups unlinks and invokes every record on the list pointed to by
// head, in order, unlinking each one before invoking its callback. This
// lets a callback that registers or kills cleanups of its own run safely
// without corrupting the list still being walked.
func runCleanups(head **cleanup) {
	for c := *head; c != nil; c = *head {
		*head = c.next
		if c.fn != nil {
			runCleanupFn(c.fn, c.data)
		}
	}
}

// runCleanupFn invokes fn and logs a non-nil error. Cleanup failures
// cannot abort the clear or destroy they run during, so logging is the
// only signal a caller gets.
func runCleanupFn(fn CleanupFunc, data unsafe.Pointer) {
	if err := fn(data); err != nil {
		log.Printf("mempool: cleanup callback returned error: %v", err)
	}
}
