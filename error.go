// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/kont"
)

// threadErrorHandler handles thread effects and surfaces async exceptions.
// After each effect, a pending exception short-circuits the program.
// Value type: passed to evalFrames on the stack, avoiding heap allocation.
type threadErrorHandler[A any] struct {
	t *Thread
}

// Dispatch implements kont.Handler for thread effects with async
// exception delivery.
func (h threadErrorHandler[A]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	top, ok := op.(threadDispatcher)
	if !ok {
		panic("handshake: unhandled effect in threadErrorHandler")
	}
	v := dispatchWait(h.t, top)
	if err := h.t.TakePendingException(); err != nil {
		return kont.Left[error, A](err), false
	}
	return v, true
}

// ExecError runs a thread program on t like [Exec]. An async exception
// taken at any effect aborts the program: the result is Left(exception).
// Otherwise it is Right(result).
func ExecError[R any](t *Thread, program kont.Eff[R]) kont.Either[error, R] {
	wrapped := kont.Map[kont.Resumed, R, kont.Either[error, R]](program, func(r R) kont.Either[error, R] {
		return kont.Right[error, R](r)
	})
	h := threadErrorHandler[R]{t: t}
	return kont.Handle(wrapped, h)
}
