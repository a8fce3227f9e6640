// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package mempool

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// mmapArena is the allocator's optional growth strategy: reserve a large
// span of virtual address space up front, then grow the committed prefix
// of it in place via mremap instead of asking the Go heap for more memory.
// This lets freshly grown nodes sit at stable addresses across growths,
// which the allocator relies on (outstanding pointers into earlier nodes
// must stay valid).
type mmapArena struct {
	file    *os.File
	ptr     unsafe.Pointer
	current uint32 // boundary units committed and handed out so far
	limit   uint32 // boundary units currently mapped (>= current)
}

func (m *mmapArena) active() bool {
	return m.ptr != nil
}

// start reserves allocatorMmapReserved bytes of address space and maps in
// the first initialPages boundary-sized pages, backed by an unlinked
// temporary file so the mapping can be grown with mremap.
func (m *mmapArena) start(initialPages uint32) bool {
	f, err := os.CreateTemp("", fmt.Sprintf("mempool.%d.*.mmap", os.Getpid()))
	if err != nil {
		return false
	}
	_ = os.Remove(f.Name()) // unlink immediately; the fd keeps it alive

	size := int64(initialPages) * boundarySize
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return false
	}

	reserved, err := unix.Mmap(-1, 0, allocatorMmapReserved, unix.PROT_NONE,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		_ = f.Close()
		return false
	}
	base := unsafe.Pointer(unsafe.SliceData(reserved))

	_, _, errno := unix.Syscall6(unix.SYS_MMAP, uintptr(base), uintptr(size),
		uintptr(unix.PROT_READ|unix.PROT_WRITE),
		uintptr(unix.MAP_SHARED|unix.MAP_FIXED|unix.MAP_NORESERVE),
		uintptr(f.Fd()), 0)
	if errno != 0 {
		_ = unix.Munmap(reserved)
		_ = f.Close()
		return false
	}

	m.file = f
	m.ptr = base
	m.current = 0
	m.limit = initialPages
	return true
}

// grow hands out nUnits boundary-sized pages from the arena, growing the
// backing mapping in place if necessary, and returns a memNode header
// placed at the start of the new block.
func (m *mmapArena) grow(nUnits uint32, size uint32) *memNode {
	if m.current+nUnits > m.limit {
		if !m.realloc(m.current + nUnits) {
			return nil
		}
	}

	node := (*memNode)(unsafe.Add(m.ptr, uintptr(m.current)*boundarySize))
	m.current += nUnits
	return node
}

// realloc doubles the mapped prefix of the arena (or grows to exactly
// cover required units, whichever is larger) via an in-place mremap.
func (m *mmapArena) realloc(requiredUnits uint32) bool {
	oldSize := int64(m.limit) * boundarySize
	newUnits := m.limit * 2
	if newUnits < requiredUnits {
		newUnits = requiredUnits
	}
	newSize := int64(newUnits) * boundarySize

	if newSize > allocatorMmapReserved {
		return false
	}

	if err := m.file.Truncate(newSize); err != nil {
		return false
	}

	// flags=0: the kernel must grow in place, since callers hold pointers
	// into earlier nodes that a moving remap would invalidate. An in-place
	// mremap only extends into unmapped addresses, so the slice of the
	// PROT_NONE reservation that the mapping grows into is released first.
	tail := unsafe.Add(m.ptr, oldSize)
	if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, uintptr(tail), uintptr(newSize-oldSize), 0); errno != 0 {
		return false
	}
	if _, _, errno := unix.Syscall6(unix.SYS_MREMAP, uintptr(m.ptr), uintptr(oldSize), uintptr(newSize), 0, 0, 0); errno != 0 {
		return false
	}

	m.limit = newUnits
	return true
}

func (m *mmapArena) close() {
	if m.ptr == nil {
		return
	}
	region := unsafe.Slice((*byte)(m.ptr), int64(m.limit)*boundarySize)
	_ = unix.Munmap(region)
	_ = m.file.Close()
	m.ptr = nil
}
