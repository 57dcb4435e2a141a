// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/kont"
)

// Step evaluates a thread program until the first effect suspension.
// Returns (result, nil) on completion, or (zero, suspension) if pending.
func Step[R any](program kont.Eff[R]) (R, *kont.Suspension[R]) {
	return kont.StepExpr(kont.Reify(program))
}

// Advance dispatches the suspended thread effect on t.
// DispatchThread is non-blocking: returns iox.ErrWouldBlock when the
// effect needs the thread parked, typically a pending suspension.
//
// On success (nil error), the suspension is consumed and the program
// advances to the next effect or completion.
// On iox.ErrWouldBlock, the suspension is unconsumed. The driver should
// let the thread park, e.g. with [Thread.SafeCheck], and retry.
func Advance[R any](t *Thread, susp *kont.Suspension[R]) (R, *kont.Suspension[R], error) {
	top, ok := susp.Op().(threadDispatcher)
	if !ok {
		panic("handshake: unhandled effect in Advance")
	}
	v, err := top.DispatchThread(t)
	if err != nil {
		var zero R
		return zero, susp, err
	}
	result, next := susp.Resume(v)
	return result, next, nil
}
