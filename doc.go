// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package mempool implements a hierarchical arena allocator: a tree of
// bump-pointer pools sharing size-classed memory from a common Allocator,
// modeled after apr_pool_t-style pool systems.
//
// # Pools and Allocators
//
// An Allocator supplies boundary-aligned blocks (memNodes) to the pools
// that share it, bucketing freed blocks by size for reuse instead of
// returning them to the Go runtime. A Pool bump-allocates out of the
// blocks its Allocator hands it, and forms a tree: destroying or clearing
// a parent recursively destroys or clears its children, running every
// pool's registered cleanups along the way.
//
//	alloc := mempool.NewAllocator()
//	root := mempool.NewPoolWithAllocator(alloc, mempool.FlagNone)
//	defer root.Destroy()
//
//	child := root.MakeChild()
//	p := child.Palloc(128)
//
// # Size Classes
//
// Pool.Alloc requests of 256 bytes or more can be handed back early via
// Pool.Free, which parks them on a per-pool free list for reuse by a later
// Alloc of a compatible size; everything else rides the pool's bump
// pointer and is reclaimed in bulk on Clear/Destroy.
//
// # Scope Stack
//
// Push/Pop/Current track a "current pool" per goroutine, mirroring the
// pool system's thread-local active pool without relying on any runtime
// hook; see Stack for the bounded, explicit-handoff building block this
// is built on.
//
// # Buffer Tiers
//
// TieredBufferSet carves one Pool allocation into IoVec-ready slices, one
// per tier, for vectored I/O; the per-tier buffer types are plain
// fixed-size arrays. Both follow 12 size tiers in a power-of-4
// progression:
//
//	Tier      Size       Use Case
//	────      ────       ────────
//	Pico      32 B       Tiny metadata, flags
//	Nano      128 B      Small headers, control frames
//	Micro     512 B      Protocol frames, small messages
//	Small     2 KiB      Typical network packets
//	Medium    8 KiB      Stream buffers, large packets
//	Big       32 KiB     TLS records, stream chunks
//	Large     128 KiB    io_uring buffer rings
//	Great     512 KiB    Large transfers
//	Huge      2 MiB      Huge page aligned buffers
//	Vast      8 MiB      Large file chunks
//	Giant     32 MiB     Video frames, datasets
//	Titan     128 MiB    Maximum allocation tier
//
// # Ring Pool
//
// RingPool is a lock-free multi-producer multi-consumer pool based on the
// algorithm from "A Scalable, Portable, and Memory-Efficient Lock-Free
// FIFO Queue" (Ruslan Nikolaev, 2019); it backs the tiered buffer pools
// above and, in a separate non-generic form (nodeCache), Allocator's
// optional warm cache of pre-grown blocks.
//
// # Architecture Requirements
//
// This package requires a 64-bit CPU architecture (amd64, arm64, riscv64,
// loong64, ppc64, ppc64le, s390x, mips64, mips64le). 32-bit architectures
// are not supported due to 64-bit atomic operations in RingPool.
//
// # Dependencies
//
// mempool depends on:
//   - iox: Semantic error type ErrWouldBlock and the Backoff wait helper
//   - spin: Spinlock and spin-wait primitives for backpressure
//   - golang.org/x/sys/unix: anonymous mmap/mremap for the optional
//     mmap-backed allocator growth mode
package mempool
