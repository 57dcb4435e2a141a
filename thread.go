// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"context"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
)

// Status is a thread's execution status as seen by handshake executors.
type Status uint32

const (
	// StatusRunning: the thread runs its own code. Only the thread
	// itself may process its queue.
	StatusRunning Status = iota
	// StatusBlocked: the thread is parked and touches no shared runtime
	// state. Other executors may run operations on its behalf.
	StatusBlocked
	// StatusSuspended: the thread is parked by a suspend operation.
	StatusSuspended
	// StatusExited: the thread has detached.
	StatusExited
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusBlocked:
		return "blocked"
	case StatusSuspended:
		return "suspended"
	case StatusExited:
		return "exited"
	}
	return "unknown"
}

// safe reports whether executors other than the thread may act for it.
func (s Status) safe() bool {
	return s == StatusBlocked || s == StatusSuspended
}

// Thread is a runtime-visible thread of execution: one goroutine that
// attached itself to a [Registry]. The Thread owns its handshake [State].
//
// Methods that change the thread's own status (SafeCheck, Blocking, Idle,
// Detach) must be called from the thread's goroutine.
type Thread struct {
	id      ID
	name    string
	reg     *Registry
	status  atomix.Uint32
	hazards atomix.Int64
	wake    chan struct{}
	hs      State
}

// ID returns the thread's identity.
func (t *Thread) ID() ID { return t.id }

// Name returns the name given at attach time.
func (t *Thread) Name() string { return t.name }

// Status returns the current status. Lock-free; advisory.
func (t *Thread) Status() Status { return Status(t.status.Load()) }

// State returns the thread's handshake state.
func (t *Thread) State() *State { return &t.hs }

// notify wakes the thread if it is idling for handshake work.
func (t *Thread) notify() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// SafeCheck processes every pending operation the thread may run on
// itself, including suspension and async-exception delivery. It reports
// whether the thread was suspended meanwhile.
func (t *Thread) SafeCheck() bool {
	return t.hs.ProcessBySelf(true, true)
}

// Blocking runs fn with the thread parked. While fn runs, other executors
// may run synchronous operations on the thread's behalf, so fn must not
// touch state those operations inspect. On return the thread resumes and
// processes pending operations, which may suspend it.
func (t *Thread) Blocking(fn func()) {
	prev := t.hs.transition(StatusBlocked)
	defer func() {
		t.hs.transition(prev)
		if prev == StatusRunning {
			t.hs.ProcessBySelf(true, false)
		}
	}()
	fn()
}

// Idle parks the thread until handshake work arrives or ctx is done, then
// processes that work.
func (t *Thread) Idle(ctx context.Context) error {
	var err error
	t.Blocking(func() {
		select {
		case <-t.wake:
		case <-ctx.Done():
			err = ctx.Err()
		}
	})
	t.SafeCheck()
	return err
}

// PendingException returns the asynchronous exception delivered to the
// thread and not yet taken, or nil.
func (t *Thread) PendingException() error {
	t.hs.mu.Lock()
	defer t.hs.mu.Unlock()
	return t.hs.exception
}

// TakePendingException returns and clears the pending asynchronous
// exception.
func (t *Thread) TakePendingException() error {
	t.hs.mu.Lock()
	defer t.hs.mu.Unlock()
	err := t.hs.exception
	t.hs.exception = nil
	return err
}

// Detach removes the thread from its registry. Pending operations are
// discarded without running, and blocked requesters are released. Detach
// then waits until no [ListHandle] covers the thread.
func (t *Thread) Detach() {
	t.reg.remove(t)
	t.hs.exit()
	var bo iox.Backoff
	for t.hazards.Load() != 0 {
		bo.Wait()
	}
	t.reg.log.Debug("thread detached", "thread", t.id, "name", t.name)
}
