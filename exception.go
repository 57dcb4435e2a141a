// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrUnsafeAccess is the asynchronous exception delivered by
// [DeliverUnsafeAccessError].
var ErrUnsafeAccess = errors.New("handshake: a fault occurred in an unsafe memory access")

// InstallAsyncException delivers err to target as an asynchronous
// exception. target takes it at a safe-check that checks for async
// exceptions while they are not blocked; see [Thread.TakePendingException].
// If an async-exception operation is already queued, InstallAsyncException
// does nothing: the check and the enqueue happen under target's lock, so
// concurrent installers queue at most one operation.
//
// It returns [ErrTargetExited] if target already exited.
func InstallAsyncException(ctx context.Context, target *Thread, err error) error {
	mustBeProtected(ctx, target)
	s := &target.hs
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		return ErrTargetExited
	}
	if _, ok := s.queue.peek(isAsyncException); ok {
		return nil
	}
	s.enqueueLocked(NewWithFlags("AsyncException", Async|AsyncException, func(t *Thread) {
		t.hs.installExceptionLocked(err)
	}))
	return nil
}

// DeliverUnsafeAccessError queues an [ErrUnsafeAccess] async exception
// for target.
func DeliverUnsafeAccessError(ctx context.Context, target *Thread) error {
	mustBeProtected(ctx, target)
	return ExecuteAsync(ctx, newUnsafeAccessError(), target)
}

func newUnsafeAccessError() *Operation {
	return NewWithFlags("UnsafeAccessError", Async|AsyncException, func(t *Thread) {
		t.hs.handleUnsafeAccessError()
	})
}

// installExceptionLocked makes err the thread's pending exception. An
// exception already pending is kept.
func (s *State) installExceptionLocked(err error) {
	if s.exception == nil {
		s.exception = err
	}
}

// handleUnsafeAccessError runs on the thread itself with the lock held.
func (s *State) handleUnsafeAccessError() {
	if s.suspended {
		// The suspender assumes the thread will not run its own code until
		// resumed, so the exception cannot be raised yet. Requeue it
		// behind the suspension and retry on the next pass.
		s.enqueueLocked(newUnsafeAccessError())
		s.log.Info("unsafe access processing deferred due to suspend", "thread", s.handshakee)
		return
	}
	// Building the exception may run arbitrary code; drop the lock so the
	// thread behaves as if outside a handshake, with further async
	// exceptions held back meanwhile.
	s.asyncExceptionsBlocked = true
	s.mu.Unlock()
	err := fmt.Errorf("thread %d: %w", s.handshakee, ErrUnsafeAccess)
	s.mu.Lock()
	s.setActive(s.handshakee)
	s.asyncExceptionsBlocked = false
	s.installExceptionLocked(err)
}

// BlockAsyncExceptions holds back delivery of async-exception operations
// until [State.UnblockAsyncExceptions]. Queued ones stay queued.
func (s *State) BlockAsyncExceptions() {
	s.mu.Lock()
	s.asyncExceptionsBlocked = true
	s.mu.Unlock()
}

// UnblockAsyncExceptions lifts [State.BlockAsyncExceptions].
func (s *State) UnblockAsyncExceptions() {
	s.mu.Lock()
	s.asyncExceptionsBlocked = false
	s.mu.Unlock()
}

// AsyncExceptionsBlocked reports whether async-exception delivery is held
// back.
func (s *State) AsyncExceptionsBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asyncExceptionsBlocked
}

// CleanAsyncExceptionOperation discards every queued async-exception
// operation without running it. Other operations are untouched. Safe to
// call when none is queued.
func (s *State) CleanAsyncExceptionOperation() {
	if !s.HasOperation() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		op, ok := s.queue.remove(func(op *Operation) bool {
			return op.IsAsyncException() && !slices.Contains(s.running, op)
		})
		if !ok {
			return
		}
		op.discard()
		s.signalLocked()
	}
}
