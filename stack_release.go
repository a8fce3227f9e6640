// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !mempooldebug

package mempool

func (s *Stack) push(f stackFrame) bool {
	if f.pool == nil || s.size >= stackDepth {
		return false
	}
	s.frames[s.size] = f
	s.size++
	return true
}

func (s *Stack) pop() {
	if s.size == 0 {
		return
	}
	s.size--
}
