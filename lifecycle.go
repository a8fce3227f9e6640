// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import "sync"

var (
	globalMu        sync.Mutex
	globalRefs      int
	globalAllocator *Allocator
	globalPool      *Pool
)

// Initialize increments a process-wide reference count, creating the
// shared root allocator and root pool the first time it transitions from
// 0 to 1. Nested Initialize/Terminate pairs (e.g. from independent
// libraries sharing this package) are safe; only the outermost pair
// actually creates or tears down global state.
func Initialize() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalRefs == 0 {
		if globalAllocator == nil {
			globalAllocator = NewAllocator()
		}
		globalPool = newPool(nil, globalAllocator, FlagThreadSafeAllocator)
		globalPool.SetTag("Global")
		currentStack().Push(globalPool)
	}
	globalRefs++
}

// Terminate decrements the reference count Initialize incremented,
// destroying the root pool and allocator on the 1-to-0 transition.
func Terminate() {
	globalMu.Lock()
	defer globalMu.Unlock()

	globalRefs--
	if globalRefs == 0 {
		currentStack().Pop()
		globalPool.Destroy()
		globalPool = nil
		globalAllocator = nil
	}
}

// Create returns a new pool parented under parent, or under the shared
// root pool if parent is nil. Initialize must have been called first.
func Create(parent *Pool) *Pool {
	if parent != nil {
		return parent.MakeChild()
	}
	return globalPool.MakeChild()
}

// Destroy destroys p. It exists alongside Pool.Destroy for symmetry with
// the package-level Create.
func Destroy(p *Pool) {
	p.Destroy()
}
