// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"strings"

	"code.hybscloud.com/atomix"
)

// Flags classify an [Operation]. Each bit is independent.
type Flags uint8

const (
	// Async marks an operation nobody waits for. Async operations are
	// owned by the queue and only ever run by the target itself.
	Async Flags = 1 << iota
	// Suspend marks an operation that parks the target until resumed.
	// Self-processing runs it only when suspension is allowed.
	Suspend
	// AsyncException marks an operation delivering an asynchronous
	// exception. It is gated by [State.BlockAsyncExceptions].
	AsyncException
)

// String returns a "|"-separated list of set flags, or "sync".
func (f Flags) String() string {
	if f == 0 {
		return "sync"
	}
	var parts []string
	if f&Async != 0 {
		parts = append(parts, "async")
	}
	if f&Suspend != 0 {
		parts = append(parts, "suspend")
	}
	if f&AsyncException != 0 {
		parts = append(parts, "async-exception")
	}
	return strings.Join(parts, "|")
}

// Operation is a handshake request: an action to run on behalf of a target
// thread while that thread is at a handshake-safe point.
//
// An Operation is submitted at most once. A broadcast submits the same
// Operation to several targets; each target retires it exactly once, by
// running it or by discarding it.
type Operation struct {
	name  string
	flags Flags
	fn    func(*Thread)

	submitted  atomix.Uint32
	pending    atomix.Int64
	executed   atomix.Int64
	discarded  atomix.Int64
	canceled   atomix.Int64
	executedBy atomix.Uint64
}

// New returns a synchronous operation.
func New(name string, fn func(*Thread)) *Operation {
	return NewWithFlags(name, 0, fn)
}

// NewAsync returns an asynchronous operation.
func NewAsync(name string, fn func(*Thread)) *Operation {
	return NewWithFlags(name, Async, fn)
}

// NewWithFlags returns an operation with an explicit classification.
func NewWithFlags(name string, flags Flags, fn func(*Thread)) *Operation {
	if fn == nil {
		panic("handshake: nil operation action")
	}
	return &Operation{name: name, flags: flags, fn: fn}
}

// Name returns the diagnostic name.
func (op *Operation) Name() string { return op.name }

// Flags returns the classification flags.
func (op *Operation) Flags() Flags { return op.flags }

// IsAsync reports whether no requester waits for op.
func (op *Operation) IsAsync() bool { return op.flags&Async != 0 }

// IsSuspend reports whether op is suspend-class.
func (op *Operation) IsSuspend() bool { return op.flags&Suspend != 0 }

// IsAsyncException reports whether op delivers an asynchronous exception.
func (op *Operation) IsAsyncException() bool { return op.flags&AsyncException != 0 }

// Completed reports whether every target op was submitted to has retired it.
func (op *Operation) Completed() bool {
	return op.submitted.Load() != 0 && op.pending.Load() == 0
}

// Executed returns how many targets ran op.
func (op *Operation) Executed() int { return int(op.executed.Load()) }

// Discarded returns how many targets dropped op unrun because they exited
// or the operation became moot.
func (op *Operation) Discarded() int { return int(op.discarded.Load()) }

// Canceled returns how many targets had op withdrawn before it ran.
func (op *Operation) Canceled() int { return int(op.canceled.Load()) }

// ExecutedBy returns the executor that last ran op, or [NoExecutor].
func (op *Operation) ExecutedBy() ID { return op.executedBy.Load() }

// String implements fmt.Stringer.
func (op *Operation) String() string {
	return op.name + "(" + op.flags.String() + ")"
}

// submit claims op for n targets. Submitting twice is a programming error.
func (op *Operation) submit(n int) {
	if !op.submitted.CompareAndSwap(0, 1) {
		panic("handshake: operation already submitted")
	}
	op.pending.Store(int64(n))
}

// retire records that executor ran op for one target.
func (op *Operation) retire(executor ID) {
	op.executedBy.Store(executor)
	op.executed.Add(1)
	op.pending.Add(-1)
}

// discard retires op for one target without running it.
func (op *Operation) discard() {
	op.discarded.Add(1)
	op.pending.Add(-1)
}

// cancel retires op for one target after its requester withdrew it.
func (op *Operation) cancel() {
	op.canceled.Add(1)
	op.pending.Add(-1)
}

// outcome reports how a single-target op retired.
func (op *Operation) outcome() error {
	switch {
	case op.executed.Load() > 0:
		return nil
	case op.canceled.Load() > 0:
		return ErrCanceled
	default:
		return ErrTargetExited
	}
}
