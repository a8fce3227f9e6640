// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !mempooldebug

package mempool

// checkDoubleFree is a no-op in release builds; the sanity scan costs a
// full bucket walk and is only worth paying for under mempooldebug.
func checkDoubleFree(head *memNode) {}
