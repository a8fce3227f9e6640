// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

// stackDepth bounds how deeply pool scopes may nest within one Stack.
const stackDepth = 32

// stackFrame is one entry of a Stack: which pool is current, and an
// optional caller-supplied tag/annotation pair used for diagnostics.
type stackFrame struct {
	pool *Pool
	tag  uint32
	ptr  any
}

// Stack is a bounded scope stack of "current pool" frames. The original
// C++ implementation keeps one of these per OS thread via thread_local
// storage; Go has no supported equivalent (goroutines are not OS threads
// and carry no user-visible thread-local storage), so here a Stack is an
// explicit value a caller owns and threads through a call chain, the same
// way context.Context carries per-call-chain state. Package-level
// Push/Pop/Current provide a goroutine-scoped convenience on top, see
// goid.go.
//
// A zero Stack is ready to use, with pool nil at the bottom frame.
type Stack struct {
	frames [stackDepth]stackFrame
	size   int
}

// Top returns the pool at the top of the stack, or nil if the stack has
// never been pushed to.
func (s *Stack) Top() *Pool {
	if s.size == 0 {
		return nil
	}
	return s.frames[s.size-1].pool
}

// Info returns the tag/annotation pair of the top frame.
func (s *Stack) Info() (tag uint32, ptr any) {
	if s.size == 0 {
		return 0, nil
	}
	f := s.frames[s.size-1]
	return f.tag, f.ptr
}

// Push makes p the current pool. p must not be nil; in debug builds
// (build tag mempooldebug) a nil pool or stack overflow aborts, matching
// the original implementation's abort-on-misuse contract. In release
// builds a nil p or an overflowing push is simply ignored/clamped.
func (s *Stack) Push(p *Pool) {
	s.push(stackFrame{pool: p})
}

// PushTagged is Push, additionally recording a diagnostic tag and
// annotation pointer retrievable via Info. When the frame is actually
// pushed, p's AllocManager records the maximum tag seen across every
// PushTagged call for that pool and the most recently supplied ptr, for
// diagnostics only; neither value is interpreted by the allocator.
func (s *Stack) PushTagged(p *Pool, tag uint32, ptr any) {
	if s.push(stackFrame{pool: p, tag: tag, ptr: ptr}) {
		p.allocmngr.recordTag(tag, ptr)
	}
}

// Pop removes the top frame.
func (s *Stack) Pop() {
	s.pop()
}

// StackVisitor is called once per frame by ForEachInfo, from the top of
// the stack down. Returning false stops the walk early.
type StackVisitor func(p *Pool, tag uint32, ptr any) bool

// ForEachInfo walks the stack from the most recently pushed frame to the
// oldest, skipping the unset bottom sentinel, until cb returns false.
func (s *Stack) ForEachInfo(cb StackVisitor) {
	for i := s.size - 1; i >= 0; i-- {
		f := s.frames[i]
		if f.pool == nil {
			continue
		}
		if !cb(f.pool, f.tag, f.ptr) {
			return
		}
	}
}

// Scoped pushes p onto s and returns a function that pops it. It is meant
// to be deferred:
//
//	defer Scoped(stack, pool)()
func Scoped(s *Stack, p *Pool) func() {
	s.Push(p)
	return s.Pop
}
