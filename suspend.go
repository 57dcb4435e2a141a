// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import "context"

// SuspendThread suspends target. A thread suspending itself parks right
// away and returns once resumed. Otherwise SuspendThread runs a synchronous
// handshake that marks target suspended and queues a self-suspension
// operation; target parks at its next safe-check that allows suspension.
//
// It reports false if target was already suspended. The caller must hold
// a [ListHandle] covering target.
func SuspendThread(ctx context.Context, target *Thread) (bool, error) {
	mustBeProtected(ctx, target)
	if ThreadFrom(ctx) == target {
		target.suspendSelf()
		return true, nil
	}
	var did bool
	op := New("SuspendThread", func(t *Thread) {
		did = t.hs.suspendWithHandshake()
	})
	if err := ExecuteOn(ctx, op, target); err != nil {
		return false, err
	}
	return did, nil
}

// ResumeThread wakes a suspended target. It reports false if target was not
// suspended. The caller must hold a [ListHandle] covering target.
func ResumeThread(ctx context.Context, target *Thread) bool {
	mustBeProtected(ctx, target)
	s := &target.hs
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.suspended {
		return false
	}
	s.suspended = false
	s.signalLocked()
	return true
}

// IsSuspended reports whether target is suspended or about to be.
func IsSuspended(target *Thread) bool {
	s := &target.hs
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// suspendSelf parks the calling thread in StatusSuspended until resumed,
// bypassing the queue.
func (t *Thread) suspendSelf() {
	t.Blocking(func() {
		s := &t.hs
		s.mu.Lock()
		defer s.mu.Unlock()
		s.suspended = true
		t.status.Store(uint32(StatusSuspended))
		for s.suspended {
			s.cond.Wait()
		}
		t.status.Store(uint32(StatusBlocked))
	})
}

// suspendWithHandshake runs as a handshake on the thread while it is
// parked or at a safe-check, with the lock held.
func (s *State) suspendWithHandshake() bool {
	if s.exited {
		return false
	}
	if s.asyncSuspendPending {
		if s.suspended {
			return false
		}
		// Resumed, but has not left the pending self-suspension yet:
		// keep it from leaving.
		s.suspended = true
		return true
	}
	s.suspended = true
	s.asyncSuspendPending = true
	s.enqueueLocked(newSelfSuspension())
	return true
}

// newSelfSuspension returns the operation through which a thread parks
// itself. While parked it releases the lock and the claim, so other
// executors can run synchronous operations on its behalf.
func newSelfSuspension() *Operation {
	return NewWithFlags("ThreadSelfSuspension", Async|Suspend, func(t *Thread) {
		s := &t.hs
		prev := t.Status()
		t.status.Store(uint32(StatusSuspended))
		s.setActive(NoExecutor)
		s.signalLocked()
		for s.suspended {
			s.cond.Wait()
		}
		s.setActive(t.id)
		t.status.Store(uint32(prev))
		s.asyncSuspendPending = false
	})
}
