// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"runtime"
	"strconv"
	"sync"
)

// goroutineStacks maps a goroutine id to the Stack it owns, giving
// Push/Pop/Current a per-goroutine scope without relying on any runtime-
// internal hook. Entries are created lazily, the first time a goroutine
// looks up its Stack (any function below, Pool.Clear, Pool.Destroy,
// Initialize or Terminate), and are never removed.
var goroutineStacks sync.Map // goroutine id (uint64) -> *Stack

// currentGoroutineID extracts the calling goroutine's id by parsing the
// "goroutine NNN [running]:" header runtime.Stack prints. This is the
// only public, non-linkname way to learn a goroutine's identity; it costs
// one small stack capture per call; see DESIGN.md for why no third-party
// shim is used instead.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]

	// Skip "goroutine ".
	const prefix = "goroutine "
	if len(b) < len(prefix) {
		return 0
	}
	b = b[len(prefix):]

	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	id, err := strconv.ParseUint(string(b[:i]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func currentStack() *Stack {
	id := currentGoroutineID()
	if v, ok := goroutineStacks.Load(id); ok {
		return v.(*Stack)
	}
	s := &Stack{}
	actual, _ := goroutineStacks.LoadOrStore(id, s)
	return actual.(*Stack)
}

// Push makes p the current pool for the calling goroutine.
func Push(p *Pool) {
	currentStack().Push(p)
}

// PushTagged is Push, recording a diagnostic tag and annotation.
func PushTagged(p *Pool, tag uint32, ptr any) {
	currentStack().PushTagged(p, tag, ptr)
}

// Pop restores the calling goroutine's previous current pool.
func Pop() {
	currentStack().Pop()
}

// Current returns the calling goroutine's current pool, or nil.
func Current() *Pool {
	return currentStack().Top()
}

// Info returns the calling goroutine's current tag/annotation pair.
func Info() (tag uint32, ptr any) {
	return currentStack().Info()
}
