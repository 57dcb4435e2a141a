// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// State keeps track of handshake operations for one thread.
//
// Executors acting on behalf of the thread and the thread itself are
// serialized by the state's lock, so an operation is run either by the
// thread at a safe-check or by another executor while the thread is
// parked, never both. The same lock and condition guard suspend/resume:
// suspension and claiming must never race.
//
// A State is embedded in its [Thread] and lives exactly as long.
type State struct {
	// handshakee identifies the target of every queued operation.
	handshakee ID
	// thread is the enclosing Thread; same allocation, never outlives it.
	thread *Thread
	queue  filterQueue[*Operation]
	log    *slog.Logger

	mu   sync.Mutex
	cond sync.Cond
	// active is written under mu and read without it.
	active atomix.Uint64
	// epoch changes, under mu and with a broadcast, whenever a waiter
	// may be able to make progress.
	epoch atomix.Uint64

	// running holds operations whose action is in progress. More than
	// one when an executor runs while a suspended thread waits.
	running []*Operation

	exited                 bool
	suspended              bool
	asyncSuspendPending    bool
	asyncExceptionsBlocked bool
	exception              error
}

func (s *State) init(t *Thread, capacity int, log *slog.Logger) {
	s.handshakee = t.id
	s.thread = t
	s.log = log
	s.cond.L = &s.mu
	s.queue.init(capacity)
}

// Handshakee returns the ID of the thread this state coordinates for.
func (s *State) Handshakee() ID { return s.handshakee }

// ActiveExecutor returns the executor currently holding the claim, or
// [NoExecutor]. The value is advisory and may be stale by the time the
// caller looks at it.
func (s *State) ActiveExecutor() ID { return s.active.Load() }

func (s *State) setActive(id ID) { s.active.Store(id) }

// signalLocked wakes every waiter on the state's condition.
func (s *State) signalLocked() {
	s.epoch.Add(1)
	s.cond.Broadcast()
}

// safeLocked reports whether another executor may run operations on
// behalf of the thread.
func (s *State) safeLocked() bool {
	return s.thread.Status().safe()
}

// Claim tries to take the exclusive right to process this state's queue
// as executor. It never blocks: false means someone else is processing,
// and the caller should retreat and retry at its own pace.
//
// A successful Claim must be followed by [State.Release].
func (s *State) Claim(executor ID) bool {
	if !s.mu.TryLock() {
		return false
	}
	s.setActive(executor)
	return true
}

// Release gives up a claim obtained by [State.Claim].
func (s *State) Release() {
	s.setActive(NoExecutor)
	s.signalLocked()
	s.mu.Unlock()
}

// unclaim releases the lock without waking waiters. Used when the claim
// changed nothing a waiter could observe.
func (s *State) unclaim() {
	s.setActive(NoExecutor)
	s.mu.Unlock()
}

// HasOperation reports whether any operation is queued. Lock-free.
func (s *State) HasOperation() bool {
	return !s.queue.isEmpty()
}

// HasOperationFor reports whether self-processing with the given filter
// would find an operation to run.
func (s *State) HasOperationFor(allowSuspend, checkAsyncException bool) bool {
	if !s.HasOperation() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.GetOpForSelf(allowSuspend, checkAsyncException) != nil
}

// HasAsyncExceptionOperation reports whether an async-exception operation
// is queued.
func (s *State) HasAsyncExceptionOperation() bool {
	if !s.HasOperation() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.queue.peek(isAsyncException)
	return ok
}

// OperationPending reports whether op is still queued on this state.
func (s *State) OperationPending(op *Operation) bool {
	if !s.HasOperation() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.contains(op)
}

// Len returns the number of queued operations.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

func isAsyncException(op *Operation) bool { return op.IsAsyncException() }

func isSuspend(op *Operation) bool { return op.IsSuspend() }

func nonSelfExecutable(op *Operation) bool { return !op.IsAsync() }

// GetOpForSelf returns the first queued operation the thread may run on
// itself. Suspend-class operations need allowSuspend; async-exception
// operations need checkAsyncException and an unblocked gate, and are held
// back while a suspension is pending unless allowSuspend. Ineligible
// operations are skipped and stay queued.
//
// The caller must hold the claim.
func (s *State) GetOpForSelf(allowSuspend, checkAsyncException bool) *Operation {
	// An async exception cannot be raised while a suspension is pending.
	// Without the suspension in reach it would only be requeued.
	if s.asyncExceptionsBlocked || (s.suspended && !allowSuspend) {
		checkAsyncException = false
	}
	op, _ := s.queue.peek(func(op *Operation) bool {
		if op.IsSuspend() && !allowSuspend {
			return false
		}
		if op.IsAsyncException() && !checkAsyncException {
			return false
		}
		return true
	})
	return op
}

// GetOp returns the first queued operation an executor other than the
// thread may run. Async operations, which include suspend and
// async-exception ones, are bound to the thread and never returned.
//
// The caller must hold the claim.
func (s *State) GetOp() *Operation {
	op, _ := s.queue.peek(nonSelfExecutable)
	return op
}

// RemoveOp removes op from the queue by identity. It reports false if op
// was not queued, meaning it already ran, is running, or was discarded.
//
// The caller must hold the claim.
func (s *State) RemoveOp(op *Operation) bool {
	_, ok := s.queue.remove(func(e *Operation) bool { return e == op })
	return ok
}

// RunClaimed runs a queued op as the claim holder, then removes and
// retires it. It reports false if op was not queued.
func (s *State) RunClaimed(op *Operation) bool {
	if !s.queue.contains(op) {
		return false
	}
	s.execute(op, s.ActiveExecutor())
	return true
}

// execute runs op for the thread. The operation is removed only after it
// ran, so the queue stays non-empty while an executor works on the
// thread's behalf.
func (s *State) execute(op *Operation, executor ID) {
	s.setActive(executor)
	s.running = append(s.running, op)
	defer func() {
		s.running = slices.DeleteFunc(s.running, func(e *Operation) bool { return e == op })
		s.RemoveOp(op)
		op.retire(executor)
		s.signalLocked()
	}()
	op.fn(s.thread)
}

// ProcessBySelf is the thread's safe-check entry point. It runs every
// eligible queued operation on the calling goroutine, which must be the
// thread's own.
//
// It returns true if a suspend-class operation ran. The thread was then
// parked for a while, and the caller must re-check for any runtime-wide
// pause that started meanwhile.
func (s *State) ProcessBySelf(allowSuspend, checkAsyncException bool) bool {
	suspended := false
	for s.HasOperation() {
		op := s.processOneBySelf(allowSuspend, checkAsyncException)
		if op == nil {
			break
		}
		if op.IsSuspend() {
			suspended = true
		}
	}
	return suspended
}

func (s *State) processOneBySelf(allowSuspend, checkAsyncException bool) *Operation {
	s.mu.Lock()
	defer s.unclaim()
	op := s.GetOpForSelf(allowSuspend, checkAsyncException)
	if op == nil {
		return nil
	}
	s.execute(op, s.handshakee)
	s.log.Debug("handshake processed",
		"op", op.Name(), "target", s.handshakee, "executor", "self")
	return op
}

// TryProcess attempts to run one operation on behalf of the thread as
// executor. The thread must be parked. The result is [Succeeded] only
// when the operation run was match.
func (s *State) TryProcess(executor ID, match *Operation) ProcessResult {
	if !s.HasOperation() {
		return NoOperation
	}
	if !s.thread.Status().safe() {
		return NotSafe
	}
	if !s.mu.TryLock() {
		return ClaimFailed
	}
	defer s.unclaim()
	if !s.safeLocked() {
		return NotSafe
	}
	op := s.GetOp()
	if op == nil {
		return NoOperation
	}
	s.execute(op, executor)
	r := Processed
	if op == match {
		r = Succeeded
	}
	s.log.Debug("handshake processed",
		"op", op.Name(), "target", s.handshakee, "executor", executor, "result", r)
	return r
}

// processSelfMatch runs op, queued on the calling thread's own state,
// right away.
func (s *State) processSelfMatch(op *Operation) {
	s.mu.Lock()
	defer s.unclaim()
	if !s.queue.contains(op) {
		return
	}
	s.execute(op, s.handshakee)
	s.log.Debug("handshake processed",
		"op", op.Name(), "target", s.handshakee, "executor", "self")
}

// add queues op. It reports false, after discarding op, if the thread
// already exited.
func (s *State) add(op *Operation) bool {
	if s.thread.Status() == StatusExited {
		op.discard()
		return false
	}
	s.queue.push(op)
	s.thread.notify()
	if s.thread.Status() == StatusExited {
		s.reapExited()
	}
	return true
}

// enqueueLocked submits and queues a fresh async op while the lock is
// held, as nested handshakes do.
func (s *State) enqueueLocked(op *Operation) {
	op.submit(1)
	s.queue.push(op)
	s.thread.notify()
}

// reapExited discards operations that raced with the thread's exit.
func (s *State) reapExited() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exited {
		s.discardAllLocked()
	}
}

// discardAllLocked retires every queued operation without running it.
func (s *State) discardAllLocked() {
	ops := s.queue.removeAll()
	for _, op := range ops {
		op.discard()
	}
	if len(ops) > 0 {
		s.log.Debug("handshake discarded", "target", s.handshakee, "ops", len(ops))
	}
	s.asyncSuspendPending = false
	s.signalLocked()
}

// exit marks the thread exited and drains its queue. Blocked requesters
// wake up and observe their operations discarded.
func (s *State) exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exited = true
	s.suspended = false
	s.thread.status.Store(uint32(StatusExited))
	s.discardAllLocked()
	s.exception = nil
}

// transition changes the thread's status under the lock. It waits for any
// executor working on the thread's behalf to finish.
func (s *State) transition(to Status) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.thread.Status()
	s.thread.status.Store(uint32(to))
	if to.safe() && !from.safe() {
		s.signalLocked()
	}
	return from
}

// waitFor blocks until op, queued on this state, has been retired, helping
// to run operations whenever the thread is parked. If ctx is done first,
// op is withdrawn; when it is already gone, the wait continues until it
// retires.
func (s *State) waitFor(ctx context.Context, executor ID, op *Operation) error {
	stop := context.AfterFunc(ctx, s.wakeAll)
	defer stop()
	withdrawable := true
	var bo iox.Backoff
	for !op.Completed() {
		seen := s.epoch.Load()
		r := s.TryProcess(executor, op)
		if r == Succeeded {
			break
		}
		if r == ClaimFailed {
			// The lock holder may release without signaling.
			bo.Wait()
		}
		s.mu.Lock()
		if s.exited {
			s.discardAllLocked()
		}
		for r != ClaimFailed && !op.Completed() && s.epoch.Load() == seen && !(withdrawable && ctx.Err() != nil) {
			s.cond.Wait()
		}
		if !op.Completed() && withdrawable && ctx.Err() != nil {
			if s.withdrawLocked(op) {
				s.mu.Unlock()
				return ctx.Err()
			}
			withdrawable = false
		}
		s.mu.Unlock()
	}
	return op.outcome()
}

// withdrawLocked removes op if it is queued and not running, retiring it
// as canceled.
func (s *State) withdrawLocked(op *Operation) bool {
	if slices.Contains(s.running, op) || !s.RemoveOp(op) {
		return false
	}
	op.cancel()
	s.signalLocked()
	return true
}

func (s *State) wakeAll() {
	s.mu.Lock()
	s.signalLocked()
	s.mu.Unlock()
}
