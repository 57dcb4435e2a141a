// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/iox"
	"code.hybscloud.com/kont"
)

// Poll is the safe-check effect operation.
// Perform(Poll{}) processes the thread's pending handshakes, suspension
// and async-exception delivery included. Resumes with whether the thread
// was suspended meanwhile.
type Poll struct {
	kont.Phantom[bool]
}

// DispatchThread handles Poll on the thread.
// Non-blocking: runs every eligible operation except suspension, and
// returns iox.ErrWouldBlock if a suspension is pending.
func (Poll) DispatchThread(t *Thread) (kont.Resumed, error) {
	t.hs.ProcessBySelf(false, true)
	if t.hs.hasSuspendOperation() {
		return nil, iox.ErrWouldBlock
	}
	return false, nil
}

// ParkThread completes Poll by running a full safe-check, which parks the
// thread while it is suspended.
func (Poll) ParkThread(t *Thread) kont.Resumed {
	return t.SafeCheck()
}

// Checkpoint is the effect operation for a restricted safe-check.
// Perform(Checkpoint{}) runs pending operations that neither suspend the
// thread nor deliver async exceptions, for code that cannot tolerate
// either. Never blocks.
type Checkpoint struct {
	kont.Phantom[struct{}]
}

// DispatchThread handles Checkpoint on the thread.
func (Checkpoint) DispatchThread(t *Thread) (kont.Resumed, error) {
	t.hs.ProcessBySelf(false, false)
	return struct{}{}, nil
}

// Block is the effect operation for running a blocking call parked.
// Perform(Block[T]{Fn: f}) runs f via [Thread.Blocking] and resumes with
// its result. Other executors may act for the thread while f runs.
type Block[T any] struct {
	kont.Phantom[T]
	Fn func() T
}

// DispatchThread handles Block on the thread.
func (b Block[T]) DispatchThread(t *Thread) (kont.Resumed, error) {
	var v T
	t.Blocking(func() { v = b.Fn() })
	return v, nil
}

// hasSuspendOperation reports whether a suspend-class operation is queued.
func (s *State) hasSuspendOperation() bool {
	if !s.HasOperation() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.queue.peek(isSuspend)
	return ok
}
