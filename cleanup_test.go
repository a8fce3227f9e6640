// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"errors"
	"testing"
	"unsafe"
)

func TestRunCleanupsOrderIsLIFO(t *testing.T) {
	var head *cleanup
	var order []int

	for i := range 3 {
		i := i
		head = &cleanup{
			next: head,
			fn:   func(unsafe.Pointer) error { order = append(order, i); return nil },
		}
	}

	runCleanups(&head)
	if head != nil {
		t.Error("runCleanups did not empty the list")
	}
	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 0 {
		t.Errorf("order = %v, want [2 1 0]", order)
	}
}

func TestRunCleanupsSurvivesSelfModification(t *testing.T) {
	var head *cleanup
	ran := 0

	second := &cleanup{fn: func(unsafe.Pointer) error { ran++; return nil }}
	first := &cleanup{
		next: second,
		fn: func(unsafe.Pointer) error {
			ran++
			// Simulate a callback that mutates the list it is running
			// inside of; runCleanups must already have unlinked `first`
			// by this point.
			head = nil
			return nil
		},
	}
	head = first

	runCleanups(&head)
	if ran != 1 {
		t.Errorf("ran = %d, want 1 (second should have been dropped once head was cleared)", ran)
	}
}

func TestRunCleanupFnLogsErrorWithoutPanicking(t *testing.T) {
	runCleanupFn(func(unsafe.Pointer) error { return errors.New("boom") }, nil)
}
