// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/kont"
)

// threadDispatcher is the structural interface for thread effects.
// DispatchThread is non-blocking: it returns iox.ErrWouldBlock when the
// effect can only complete by parking the thread.
type threadDispatcher interface {
	DispatchThread(t *Thread) (kont.Resumed, error)
}

// threadParker is implemented by effects that know how to complete by
// parking the thread once DispatchThread reported iox.ErrWouldBlock.
type threadParker interface {
	ParkThread(t *Thread) kont.Resumed
}

// threadHandler implements kont.Handler for thread effects.
// Value type: passed to evalFrames on the stack, avoiding heap allocation.
type threadHandler[R any] struct {
	t *Thread
}

// Dispatch implements kont.Handler via structural interface assertion.
func (h threadHandler[R]) Dispatch(op kont.Operation) (kont.Resumed, bool) {
	top, ok := op.(threadDispatcher)
	if !ok {
		panic("handshake: unhandled effect in threadHandler")
	}
	return dispatchWait(h.t, top), true
}

// dispatchWait completes the effect, parking the thread when the
// non-blocking dispatch reports iox.ErrWouldBlock. An effect that would
// block must implement threadParker.
func dispatchWait(t *Thread, top threadDispatcher) kont.Resumed {
	v, err := top.DispatchThread(t)
	if err == nil {
		return v
	}
	p, ok := top.(threadParker)
	if !ok {
		panic("handshake: effect would block and cannot park the thread")
	}
	return p.ParkThread(t)
}
