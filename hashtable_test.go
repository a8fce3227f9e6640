// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import (
	"strconv"
	"testing"
	"unsafe"
)

func TestHashTableSetGet(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ht := NewHashTable(p)
	var v int = 7
	ht.SetString("a", unsafe.Pointer(&v))

	if got := ht.GetString("a"); got != unsafe.Pointer(&v) {
		t.Errorf("GetString = %p, want %p", got, &v)
	}
	if got := ht.GetString("missing"); got != nil {
		t.Errorf("GetString(missing) = %p, want nil", got)
	}
}

func TestHashTableDeleteViaNilValue(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ht := NewHashTable(p)
	var v int
	ht.SetString("a", unsafe.Pointer(&v))
	ht.SetString("a", nil)

	if got := ht.GetString("a"); got != nil {
		t.Errorf("GetString after delete = %p, want nil", got)
	}
	if ht.Size() != 0 {
		t.Errorf("Size() after delete = %d, want 0", ht.Size())
	}
}

func TestHashTableExpandKeepsAllEntries(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ht := NewHashTable(p)
	const n = 200
	vals := make([]int, n)
	for i := range n {
		vals[i] = i
		ht.SetString(strconv.Itoa(i), unsafe.Pointer(&vals[i]))
	}

	if ht.Size() != n {
		t.Fatalf("Size() = %d, want %d", ht.Size(), n)
	}
	for i := range n {
		got := ht.GetString(strconv.Itoa(i))
		if got != unsafe.Pointer(&vals[i]) {
			t.Errorf("GetString(%d) = %p, want %p", i, got, &vals[i])
		}
	}
}

func TestHashTableForeach(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ht := NewHashTable(p)
	var a, b int
	ht.SetString("a", unsafe.Pointer(&a))
	ht.SetString("b", unsafe.Pointer(&b))

	count := 0
	complete := ht.Foreach(func(key []byte, val unsafe.Pointer) bool {
		count++
		return true
	})
	if !complete || count != 2 {
		t.Errorf("Foreach visited %d entries (complete=%v), want 2 (true)", count, complete)
	}

	count = 0
	ht.Foreach(func(key []byte, val unsafe.Pointer) bool {
		count++
		return false
	})
	if count != 1 {
		t.Errorf("Foreach did not stop early: visited %d, want 1", count)
	}
}

func TestHashTableFirstNextVisitsEveryEntry(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ht := NewHashTable(p)
	const n = 40
	vals := make([]int, n)
	want := make(map[unsafe.Pointer]bool, n)
	for i := range n {
		vals[i] = i
		ht.SetString(strconv.Itoa(i), unsafe.Pointer(&vals[i]))
		want[unsafe.Pointer(&vals[i])] = true
	}

	it := ht.First()
	got := 0
	for it.Next() {
		val := it.Val()
		if !want[val] {
			t.Fatalf("iterator produced an unexpected value %p", val)
		}
		delete(want, val)
		got++
	}
	if got != n {
		t.Errorf("iterator visited %d entries, want %d", got, n)
	}
	if len(want) != 0 {
		t.Errorf("iterator missed %d entries", len(want))
	}
	if it.Next() {
		t.Error("Next() returned true past exhaustion")
	}
}

func TestHashTableFirstOnEmptyTable(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	ht := NewHashTable(p)
	it := ht.First()
	if it.Next() {
		t.Error("Next() on an empty table returned true")
	}
}

func TestHashTableCopyIsIndependent(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()
	p2 := NewPool(FlagNone)
	defer p2.Destroy()

	ht := NewHashTable(p)
	var v int = 1
	ht.SetString("a", unsafe.Pointer(&v))

	cp := ht.Copy(p2)
	var v2 int = 2
	cp.SetString("a", unsafe.Pointer(&v2))

	if ht.GetString("a") != unsafe.Pointer(&v) {
		t.Error("original table mutated by writing to the copy")
	}
	if cp.GetString("a") != unsafe.Pointer(&v2) {
		t.Error("copy did not take the new value")
	}
}

func TestHashTableMergeOverlayWins(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	base := NewHashTable(p)
	overlay := NewHashTable(p)

	var baseOnly, shared1, shared2, overlayOnly int
	base.SetString("shared", unsafe.Pointer(&shared1))
	base.SetString("base-only", unsafe.Pointer(&baseOnly))
	overlay.SetString("shared", unsafe.Pointer(&shared2))
	overlay.SetString("overlay-only", unsafe.Pointer(&overlayOnly))

	merged := base.Merge(p, overlay)

	if merged.GetString("shared") != unsafe.Pointer(&shared2) {
		t.Error("Merge did not let overlay win on collision")
	}
	if merged.GetString("base-only") != unsafe.Pointer(&baseOnly) {
		t.Error("Merge dropped a base-only key")
	}
	if merged.GetString("overlay-only") != unsafe.Pointer(&overlayOnly) {
		t.Error("Merge dropped an overlay-only key")
	}
}

func TestHashTableMergeFuncCombines(t *testing.T) {
	p := NewPool(FlagNone)
	defer p.Destroy()

	base := NewHashTable(p)
	overlay := NewHashTable(p)

	a, b := 10, 32
	base.SetString("k", unsafe.Pointer(&a))
	overlay.SetString("k", unsafe.Pointer(&b))

	var combined int
	merged := base.MergeFunc(p, overlay, func(p *Pool, key []byte, v1, v2 unsafe.Pointer) unsafe.Pointer {
		combined = *(*int)(v1) + *(*int)(v2)
		return unsafe.Pointer(&combined)
	})

	if got := merged.GetString("k"); got != unsafe.Pointer(&combined) {
		t.Errorf("MergeFunc result = %p, want %p", got, &combined)
	}
	if combined != 42 {
		t.Errorf("combined = %d, want 42", combined)
	}
}
