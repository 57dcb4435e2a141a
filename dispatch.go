// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"context"
	"errors"

	"code.hybscloud.com/iox"
)

var (
	// ErrTargetExited reports that an operation was discarded unrun
	// because its target thread exited.
	ErrTargetExited = errors.New("handshake: target thread exited")
	// ErrCanceled reports that an operation was withdrawn by [Cancel]
	// before it ran.
	ErrCanceled = errors.New("handshake: operation canceled")
)

// executorFor returns the executor identity of the caller.
func executorFor(requester *Thread) ID {
	if requester != nil {
		return requester.id
	}
	return nextID()
}

// waitParked runs wait with the requester parked, if it is a registry
// thread, so that threads handshaking each other cannot deadlock.
func waitParked(requester *Thread, wait func()) {
	if requester == nil {
		wait()
		return
	}
	requester.Blocking(wait)
}

// Execute runs the synchronous op on every thread attached to reg except
// the caller, and blocks until each of them ran it or exited. It returns
// how many threads ran op.
//
// The same op is queued on every target; each target claims and runs it
// independently. The caller helps run operations on behalf of parked
// targets, pacing its retries with iox.Backoff. If ctx is done, op is
// withdrawn from targets that have not run it yet.
func Execute(ctx context.Context, reg *Registry, op *Operation) int {
	if op.IsAsync() {
		panic("handshake: async operation passed to Execute")
	}
	h := reg.Protect()
	defer h.Release()
	requester := ThreadFrom(ctx)
	targets := make([]*Thread, 0, h.Len())
	for _, t := range h.threads {
		if t != requester {
			targets = append(targets, t)
		}
	}
	op.submit(len(targets))
	for _, t := range targets {
		t.hs.add(op)
	}
	executor := executorFor(requester)
	waitParked(requester, func() {
		var bo iox.Backoff
		for !op.Completed() {
			progress := false
			for _, t := range targets {
				switch t.hs.TryProcess(executor, op) {
				case Succeeded, Processed:
					progress = true
				case NoOperation:
					if t.Status() == StatusExited {
						t.hs.reapExited()
					}
				}
			}
			if op.Completed() {
				break
			}
			if ctx.Err() != nil {
				withdraw(op, targets)
			}
			if progress {
				bo.Reset()
			} else {
				bo.Wait()
			}
		}
	})
	return op.Executed()
}

// withdraw removes op from every target that has not run it yet.
func withdraw(op *Operation, targets []*Thread) {
	for _, t := range targets {
		s := &t.hs
		s.mu.Lock()
		s.withdrawLocked(op)
		s.mu.Unlock()
	}
}

// ExecuteOn runs the synchronous op on target and blocks until it retired.
//
// The caller must hold, somewhere in ctx, a [ListHandle] covering target
// (see [WithHandle]); otherwise ExecuteOn panics. A caller identified by
// [WithThread] as target itself runs op right away.
//
// It returns nil once op ran, [ErrTargetExited] if target exited first,
// [ErrCanceled] if op was withdrawn by [Cancel], or ctx.Err() if ctx was
// done before op started. Once op started, ExecuteOn waits for it
// regardless of ctx.
func ExecuteOn(ctx context.Context, op *Operation, target *Thread) error {
	mustBeProtected(ctx, target)
	return execute(ctx, op, target)
}

// ExecuteWith is [ExecuteOn] with the liveness guarantee supplied
// explicitly. A nil h falls back to the handles recorded in ctx.
func ExecuteWith(ctx context.Context, op *Operation, h *ListHandle, target *Thread) error {
	if h == nil {
		return ExecuteOn(ctx, op, target)
	}
	if !h.Includes(target) {
		panic("handshake: target not included in the thread-list handle")
	}
	return execute(ctx, op, target)
}

func execute(ctx context.Context, op *Operation, target *Thread) error {
	if op.IsAsync() {
		panic("handshake: async operation passed to synchronous execute")
	}
	op.submit(1)
	s := &target.hs
	if !s.add(op) {
		return ErrTargetExited
	}
	requester := ThreadFrom(ctx)
	if requester == target {
		s.processSelfMatch(op)
		return op.outcome()
	}
	var err error
	waitParked(requester, func() {
		err = s.waitFor(ctx, executorFor(requester), op)
	})
	return err
}

// ExecuteAsync queues the async op on target and returns immediately.
// The target runs op at one of its safe-checks, or discards it if it exits
// first. The caller must hold a [ListHandle] covering target.
//
// It returns [ErrTargetExited] if target already exited.
func ExecuteAsync(ctx context.Context, op *Operation, target *Thread) error {
	if !op.IsAsync() {
		panic("handshake: synchronous operation passed to ExecuteAsync")
	}
	mustBeProtected(ctx, target)
	op.submit(1)
	if !target.hs.add(op) {
		return ErrTargetExited
	}
	return nil
}

// Cancel withdraws op from target's queue. It reports false if op was not
// queued there, meaning it ran, is running, or was already retired.
func Cancel(op *Operation, target *Thread) bool {
	s := &target.hs
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.withdrawLocked(op)
}
