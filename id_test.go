// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake_test

import (
	"testing"

	"code.hybscloud.com/handshake"
)

func TestIDMonotonic(t *testing.T) {
	reg := handshake.NewRegistry()
	t1 := reg.Attach("a")
	t2 := reg.Attach("b")
	e3 := handshake.NewExecutorID()

	if t1.ID() >= t2.ID() {
		t.Fatalf("ids not increasing: %d >= %d", t1.ID(), t2.ID())
	}
	if t2.ID() >= e3 {
		t.Fatalf("ids not increasing: %d >= %d", t2.ID(), e3)
	}
}

func TestIDNeverNoExecutor(t *testing.T) {
	reg := handshake.NewRegistry()
	th := reg.Attach("a")

	if th.ID() == handshake.NoExecutor {
		t.Fatal("thread id collides with NoExecutor")
	}
	if th.State().Handshakee() != th.ID() {
		t.Fatalf("handshakee got %d, want %d", th.State().Handshakee(), th.ID())
	}
}
