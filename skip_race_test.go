// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package handshake_test

import "testing"

// skipRace skips tests that hand operations across goroutines through
// the lfq MPSC intake. The race detector tracks per-variable
// happens-before and cannot see the intake's cross-variable memory
// ordering (store-release on slot, load-acquire on sequence), producing
// false positives.
func skipRace(tb testing.TB) {
	tb.Helper()
	tb.Skip("skip: MPSC intake uses cross-variable memory ordering")
}
