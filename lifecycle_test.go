// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package mempool

import "testing"

func TestInitializeTerminateNesting(t *testing.T) {
	Initialize()
	Initialize()

	if globalPool == nil {
		t.Fatal("Initialize did not create the global pool")
	}
	p := globalPool

	Terminate()
	if globalPool != p {
		t.Error("inner Terminate tore down global state while still referenced")
	}

	Terminate()
	if globalPool != nil {
		t.Error("outer Terminate did not tear down global state")
	}
}

func TestCreateUnderGlobalRoot(t *testing.T) {
	Initialize()
	defer Terminate()

	child := Create(nil)
	defer Destroy(child)

	if child.parent != globalPool {
		t.Error("Create(nil) did not parent under the global root pool")
	}
}

func TestCreateUnderExplicitParent(t *testing.T) {
	Initialize()
	defer Terminate()

	parent := Create(nil)
	defer Destroy(parent)

	child := Create(parent)
	if child.parent != parent {
		t.Error("Create(parent) did not parent under the given pool")
	}
}
