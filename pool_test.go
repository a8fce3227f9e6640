// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"testing"
	"unsafe"
)

func TestPoolPallocBasic(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ptr := p.Palloc(64)
	if ptr == nil {
		t.Fatal("Palloc(64) returned nil")
	}
}

func TestPoolPallocGrowsPastOneNode(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	// Force at least one node growth by allocating more than a single
	// minAlloc-sized node can hold.
	ptr := p.Palloc(minAlloc * 2)
	if ptr == nil {
		t.Fatal("Palloc(minAlloc*2) returned nil")
	}
}

func TestPoolPstrdup(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	s := p.Pstrdup("hello")
	if s != "hello" {
		t.Errorf("Pstrdup = %q, want %q", s, "hello")
	}
}

func TestPoolCalcoZeroes(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ptr := p.Calloc(16, 1)
	b := unsafe.Slice((*byte)(ptr), 16)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("Calloc byte[%d] = %d, want 0", i, v)
		}
	}
}

func TestPoolMakeChildAndDestroyTree(t *testing.T) {
	root := NewPool(FlagNone)
	defer root.Destroy()

	child := root.MakeChild()
	grandchild := child.MakeChild()

	ran := false
	grandchild.CleanupRegister(nil, func(unsafe.Pointer) error {
		ran = true
		return nil
	})

	child.Destroy()
	if !ran {
		t.Error("destroying an intermediate pool did not run a grandchild's cleanup")
	}
	if root.child != nil {
		t.Error("root still references the destroyed child")
	}
}

func TestPoolClearKeepsPoolUsable(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	child := p.MakeChild()
	_ = child

	ran := false
	p.CleanupRegister(nil, func(unsafe.Pointer) error {
		ran = true
		return nil
	})

	p.Clear()
	if !ran {
		t.Error("Clear() did not run registered cleanups")
	}
	if p.child != nil {
		t.Error("Clear() did not destroy child pools")
	}

	// Pool must still be usable afterward.
	if ptr := p.Palloc(32); ptr == nil {
		t.Error("Palloc() after Clear() returned nil")
	}
}

func TestPoolCleanupKillPreventsRun(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ran := false
	fn := func(unsafe.Pointer) error { ran = true; return nil }
	p.CleanupRegister(nil, fn)
	p.CleanupKill(nil, fn)

	p.Clear()
	if ran {
		t.Error("killed cleanup still ran")
	}
}

func TestPoolUserdataSetGet(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	var v int = 42
	p.UserdataSet("key", unsafe.Pointer(&v), nil)

	got := p.UserdataGet("key")
	if got != unsafe.Pointer(&v) {
		t.Errorf("UserdataGet returned %p, want %p", got, &v)
	}
}

func TestPoolAllocFreeRecyclesLargeBlock(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ptr, granted := p.Alloc(blockThreshold)
	if ptr == nil || granted < blockThreshold {
		t.Fatalf("Alloc(blockThreshold) = (%p, %d)", ptr, granted)
	}
	p.Free(ptr, granted)

	ptr2, _ := p.Alloc(blockThreshold)
	if ptr2 != ptr {
		t.Errorf("Alloc() after Free() did not reuse the block: got %p, want %p", ptr2, ptr)
	}
}

func TestPoolLargeRecycleReturnedBytes(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	a, granted := p.Alloc(512)
	if granted != 512 {
		t.Fatalf("Alloc(512) granted = %d, want 512", granted)
	}
	p.Free(a, granted)

	before := p.ReturnedBytes()
	b, grantedB := p.Alloc(400)
	if b != a {
		t.Errorf("Alloc(400) = %p, want reused block %p", b, a)
	}
	if grantedB != 512 {
		t.Errorf("Alloc(400) granted = %d, want 512 (the recycled block's actual size)", grantedB)
	}
	if got := p.ReturnedBytes() - before; got != 512 {
		t.Errorf("ReturnedBytes increased by %d, want 512", got)
	}
}

func TestPoolLargeSizeRejectionAllocatedBytes(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	a, granted := p.Alloc(512)
	p.Free(a, granted)

	before := p.AllocatedBytes()
	c, _ := p.Alloc(250)
	if c == a {
		t.Error("Alloc(250) reused a block more than twice its size (512 > 2*250)")
	}
	if got := p.AllocatedBytes() - before; got != 250 {
		t.Errorf("AllocatedBytes increased by %d, want 250", got)
	}
}
