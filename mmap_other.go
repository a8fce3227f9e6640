// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package mempool

// mmapArena is the no-op stand-in used on platforms without the reserve-
// then-grow mmap support RunMmap relies on. Allocators on these platforms
// always grow from the Go heap.
type mmapArena struct{}

func (m *mmapArena) active() bool { return false }

func (m *mmapArena) start(uint32) bool { return false }

func (m *mmapArena) grow(uint32, uint32) *memNode { return nil }

func (m *mmapArena) close() {}
