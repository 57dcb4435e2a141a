// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/handshake"
)

func noop(*handshake.Thread) {}

// worker is a thread running on its own goroutine until stopped.
type worker struct {
	th     *handshake.Thread
	spins  atomix.Int64
	cancel context.CancelFunc
	done   chan struct{}
}

// startIdle attaches a thread that parks in Idle between handshakes.
func startIdle(tb testing.TB, reg *handshake.Registry, name string) *worker {
	return start(tb, reg, name, func(ctx context.Context, w *worker) {
		for w.th.Idle(ctx) == nil {
		}
	})
}

// startSpinner attaches a thread that keeps running and reaches a
// safe-check on every iteration.
func startSpinner(tb testing.TB, reg *handshake.Registry, name string) *worker {
	return start(tb, reg, name, func(ctx context.Context, w *worker) {
		for ctx.Err() == nil {
			w.th.SafeCheck()
			w.spins.Add(1)
			runtime.Gosched()
		}
	})
}

func start(tb testing.TB, reg *handshake.Registry, name string, body func(context.Context, *worker)) *worker {
	tb.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	ready := make(chan struct{})
	go func() {
		defer close(w.done)
		w.th = reg.Attach(name)
		close(ready)
		body(ctx, w)
		w.th.Detach()
	}()
	<-ready
	tb.Cleanup(w.stop)
	return w
}

// stop ends the worker and waits until its thread detached.
func (w *worker) stop() {
	w.cancel()
	<-w.done
}

// eventually polls cond until it holds or a generous deadline passes.
func eventually(tb testing.TB, what string, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			tb.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

// protect returns a context carrying a fresh handle over reg's threads.
func protect(tb testing.TB, reg *handshake.Registry) context.Context {
	tb.Helper()
	h := reg.Protect()
	tb.Cleanup(h.Release)
	return handshake.WithHandle(context.Background(), h)
}

func mustPanic(tb testing.TB, fn func()) {
	tb.Helper()
	defer func() {
		if recover() == nil {
			tb.Fatal("expected panic")
		}
	}()
	fn()
}
