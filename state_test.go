// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake_test

import (
	"context"
	"sync"
	"testing"
	"testing/quick"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/handshake"
)

func TestClaimExclusive(t *testing.T) {
	reg := handshake.NewRegistry()
	th := reg.Attach("t")
	s := th.State()
	e1, e2 := handshake.NewExecutorID(), handshake.NewExecutorID()

	if s.ActiveExecutor() != handshake.NoExecutor {
		t.Fatalf("active executor got %d, want none", s.ActiveExecutor())
	}
	if !s.Claim(e1) {
		t.Fatal("first claim failed")
	}
	if s.Claim(e2) {
		t.Fatal("second claim succeeded while held")
	}
	if s.ActiveExecutor() != e1 {
		t.Fatalf("active executor got %d, want %d", s.ActiveExecutor(), e1)
	}
	s.Release()
	if s.ActiveExecutor() != handshake.NoExecutor {
		t.Fatalf("active executor after release got %d", s.ActiveExecutor())
	}
	if !s.Claim(e2) {
		t.Fatal("claim after release failed")
	}
	s.Release()
}

// TestPropertyClaimMutualExclusion proves that for any number of
// contending executors, at most one holds the claim at a time.
func TestPropertyClaimMutualExclusion(t *testing.T) {
	reg := handshake.NewRegistry()
	s := reg.Attach("t").State()

	property := func(n uint8) bool {
		executors := int(n%16) + 1
		var holders, overlaps atomix.Int64
		var wg sync.WaitGroup
		for range executors {
			wg.Add(1)
			go func() {
				defer wg.Done()
				id := handshake.NewExecutorID()
				for range 64 {
					if !s.Claim(id) {
						continue
					}
					if holders.Add(1) != 1 {
						overlaps.Add(1)
					}
					if s.ActiveExecutor() != id {
						overlaps.Add(1)
					}
					holders.Add(-1)
					s.Release()
				}
			}()
		}
		wg.Wait()
		return overlaps.Load() == 0
	}
	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

func TestTryProcessResults(t *testing.T) {
	skipRace(t)
	reg := handshake.NewRegistry()
	th := reg.Attach("t")
	s := th.State()
	executor := handshake.NewExecutorID()

	if r := s.TryProcess(executor, nil); r != handshake.NoOperation {
		t.Fatalf("empty queue got %v, want %v", r, handshake.NoOperation)
	}

	ctx := protect(t, reg)
	op := handshake.New("sync", noop)
	errc := make(chan error, 1)
	go func() { errc <- handshake.ExecuteOn(ctx, op, th) }()
	eventually(t, "operation queued", s.HasOperation)

	if r := s.TryProcess(executor, op); r != handshake.NotSafe {
		t.Fatalf("running target got %v, want %v", r, handshake.NotSafe)
	}

	th.Blocking(func() {
		if err := <-errc; err != nil {
			t.Errorf("ExecuteOn: %v", err)
		}
	})
	if op.Executed() != 1 {
		t.Fatalf("executed got %d, want 1", op.Executed())
	}
	if op.ExecutedBy() == th.ID() {
		t.Fatal("operation ran by the parked target itself")
	}
}

func TestTryProcessClaimFailed(t *testing.T) {
	reg := handshake.NewRegistry()
	th := reg.Attach("t")
	s := th.State()
	ctx := handshake.WithThread(context.Background(), th)
	e1, e2 := handshake.NewExecutorID(), handshake.NewExecutorID()

	op := handshake.NewAsync("async", noop)
	th.Blocking(func() {
		if err := handshake.ExecuteAsync(ctx, op, th); err != nil {
			t.Errorf("ExecuteAsync: %v", err)
			return
		}
		if !s.Claim(e1) {
			t.Error("claim on parked thread failed")
			return
		}
		if r := s.TryProcess(e2, nil); r != handshake.ClaimFailed {
			t.Errorf("contended claim got %v, want %v", r, handshake.ClaimFailed)
		}
		s.Release()
		// Async operations are bound to the thread.
		if r := s.TryProcess(e2, nil); r != handshake.NoOperation {
			t.Errorf("async-only queue got %v, want %v", r, handshake.NoOperation)
		}
	})
	if op.ExecutedBy() != th.ID() {
		t.Fatalf("async operation ran by %d, want %d", op.ExecutedBy(), th.ID())
	}
}

func TestTryProcessSucceeded(t *testing.T) {
	reg := handshake.NewRegistry()
	th := reg.Attach("t")
	ctx := protect(t, reg)

	var ran *handshake.Thread
	op := handshake.New("sync", func(t *handshake.Thread) { ran = t })
	th.Blocking(func() {
		// Same goroutine, but not identified as th: an outside requester.
		if err := handshake.ExecuteOn(ctx, op, th); err != nil {
			t.Errorf("ExecuteOn: %v", err)
		}
	})
	if ran != th {
		t.Fatalf("action got thread %v, want %v", ran, th)
	}
	if th.State().HasOperation() {
		t.Fatal("operation still queued after it retired")
	}
}

func TestGetOpFilters(t *testing.T) {
	reg := handshake.NewRegistry()
	th := reg.Attach("t")
	s := th.State()
	ctx := handshake.WithThread(context.Background(), th)

	susp := handshake.NewWithFlags("susp", handshake.Async|handshake.Suspend, noop)
	exc := handshake.NewWithFlags("exc", handshake.Async|handshake.AsyncException, noop)
	plain := handshake.NewAsync("plain", noop)
	for _, op := range []*handshake.Operation{susp, exc, plain} {
		if err := handshake.ExecuteAsync(ctx, op, th); err != nil {
			t.Fatalf("ExecuteAsync(%v): %v", op, err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("queue length got %d, want 3", s.Len())
	}

	cases := []struct {
		allowSuspend, checkAsync bool
		want                     *handshake.Operation
	}{
		{true, true, susp},
		{false, true, exc},
		{false, false, plain},
		{true, false, susp},
	}
	if !s.Claim(th.ID()) {
		t.Fatal("claim failed")
	}
	for _, c := range cases {
		if got := s.GetOpForSelf(c.allowSuspend, c.checkAsync); got != c.want {
			t.Errorf("GetOpForSelf(%v, %v) got %v, want %v", c.allowSuspend, c.checkAsync, got, c.want)
		}
	}
	if got := s.GetOp(); got != nil {
		t.Errorf("GetOp returned thread-bound %v", got)
	}
	s.Release()

	s.BlockAsyncExceptions()
	if !s.Claim(th.ID()) {
		t.Fatal("claim failed")
	}
	if got := s.GetOpForSelf(false, true); got != plain {
		t.Errorf("gated GetOpForSelf got %v, want %v", got, plain)
	}
	s.Release()
	s.UnblockAsyncExceptions()

	if !s.HasOperationFor(false, false) {
		t.Fatal("HasOperationFor(false, false) got false")
	}

	if s.ProcessBySelf(false, false) {
		t.Fatal("restricted pass reported a suspension")
	}
	if plain.Executed() != 1 || exc.Executed() != 0 || susp.Executed() != 0 {
		t.Fatalf("restricted pass ran plain=%d exc=%d susp=%d", plain.Executed(), exc.Executed(), susp.Executed())
	}
	s.ProcessBySelf(false, true)
	if exc.Executed() != 1 || susp.Executed() != 0 {
		t.Fatalf("async-exception pass ran exc=%d susp=%d", exc.Executed(), susp.Executed())
	}
	if !th.SafeCheck() {
		t.Fatal("full safe-check did not report the suspend operation")
	}
	if susp.ExecutedBy() != th.ID() {
		t.Fatalf("suspend operation ran by %d, want %d", susp.ExecutedBy(), th.ID())
	}
	if s.HasOperation() {
		t.Fatal("queue not empty after full safe-check")
	}
}

func TestRunClaimed(t *testing.T) {
	reg := handshake.NewRegistry()
	th := reg.Attach("t")
	s := th.State()
	ctx := handshake.WithThread(context.Background(), th)

	op := handshake.NewAsync("async", noop)
	if err := handshake.ExecuteAsync(ctx, op, th); err != nil {
		t.Fatal(err)
	}
	if !s.OperationPending(op) {
		t.Fatal("operation not pending")
	}
	if !s.Claim(th.ID()) {
		t.Fatal("claim failed")
	}
	if !s.RunClaimed(op) {
		t.Fatal("RunClaimed reported not queued")
	}
	if s.RunClaimed(op) {
		t.Fatal("RunClaimed ran a retired operation")
	}
	s.Release()
	if s.OperationPending(op) || !op.Completed() {
		t.Fatalf("operation pending=%v completed=%v", s.OperationPending(op), op.Completed())
	}
}

func TestProcessResultString(t *testing.T) {
	want := map[handshake.ProcessResult]string{
		handshake.NoOperation:       "no operation",
		handshake.NotSafe:           "not safe",
		handshake.ClaimFailed:       "claim failed",
		handshake.Processed:         "processed",
		handshake.Succeeded:         "succeeded",
		handshake.ProcessResult(42): "unknown",
	}
	for r, s := range want {
		if r.String() != s {
			t.Errorf("%d.String() got %q, want %q", r, r.String(), s)
		}
	}
}
