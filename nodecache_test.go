// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"sync"
	"testing"
)

func TestNodeCachePutGet(t *testing.T) {
	c := newNodeCache(4)
	n := &memNode{index: uint32(minAlloc>>boundaryIndex) - 1}

	if !c.put(n) {
		t.Fatal("put() rejected a valid minAlloc node")
	}
	if got := c.get(); got != n {
		t.Errorf("get() = %p, want %p", got, n)
	}
	if got := c.get(); got != nil {
		t.Errorf("get() on empty cache = %p, want nil", got)
	}
}

func TestNodeCacheRejectsWrongSize(t *testing.T) {
	c := newNodeCache(4)
	n := &memNode{index: 5}
	if c.put(n) {
		t.Error("put() accepted a non-minAlloc-sized node")
	}
}

func TestNodeCacheRespectsCapacity(t *testing.T) {
	c := newNodeCache(2)
	idx := uint32(minAlloc>>boundaryIndex) - 1
	n1 := &memNode{index: idx}
	n2 := &memNode{index: idx}
	n3 := &memNode{index: idx}

	if !c.put(n1) || !c.put(n2) {
		t.Fatal("put() rejected within capacity")
	}
	if c.put(n3) {
		t.Error("put() accepted beyond capacity")
	}
}

func TestNodeCacheConcurrentPutGet(t *testing.T) {
	c := newNodeCache(64)
	idx := uint32(minAlloc>>boundaryIndex) - 1

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := &memNode{index: idx}
			if c.put(n) {
				c.get()
			}
		}()
	}
	wg.Wait()

	if c.size.Load() < 0 {
		t.Errorf("cache size went negative: %d", c.size.Load())
	}
}

func TestRingPoolGetPut(t *testing.T) {
	r := NewRingPool[int](4)
	r.Fill(func() int { return 0 })

	idx, err := r.Get()
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	r.SetValue(idx, 99)
	if err := r.Put(idx); err != nil {
		t.Fatalf("Put() error: %v", err)
	}

	idx2, err := r.Get()
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if v := r.Value(idx2); v != 99 && v != 0 {
		t.Errorf("Value(%d) = %d, want 99 or 0 depending on slot order", idx2, v)
	}
}

func TestRingPoolNonblockingEmpty(t *testing.T) {
	r := NewRingPool[int](1)
	r.SetNonblock(true)

	if _, err := r.Get(); err == nil {
		t.Error("Get() on an unfilled, empty pool should report would-block")
	}
}
