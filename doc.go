// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package handshake runs operations on behalf of other threads at
// handshake-safe points, without stopping the world.
//
// A thread is a goroutine attached to a [Registry]. A requester queues an
// [Operation] on a target thread; the operation runs either on the target
// itself, at its next safe-check, or on another executor while the target
// is parked. Never both, and never twice.
//
// # Architecture
//
//   - Queue: Each thread owns a lock-free bounded MPSC intake via [code.hybscloud.com/lfq], with filtered inspection on the consumer side.
//   - Claim: A per-thread lock serializes executors. External executors never block on it; [State.TryProcess] reports [ClaimFailed] instead.
//   - Safety: External executors act only while the thread is [StatusBlocked] or [StatusSuspended]. Status changes happen under the claim.
//   - Liveness: Cross-thread dispatch requires a [ListHandle] from [Registry.Protect], recorded in the context with [WithHandle]. [Thread.Detach] waits for every handle covering the thread.
//   - Waiting: Requesters help run operations while they wait, pacing retries with [code.hybscloud.com/iox.Backoff].
//
// # API Topologies
//
//   - Dispatch: [ExecuteOn], [ExecuteWith], [ExecuteAsync], [Execute] (all threads but the caller), [Cancel].
//   - Thread side: [Thread.SafeCheck], [Thread.Blocking], [Thread.Idle], [State.ProcessBySelf].
//   - Suspension: [SuspendThread], [ResumeThread], [IsSuspended].
//   - Async exceptions: [InstallAsyncException], [DeliverUnsafeAccessError], [Thread.TakePendingException], [State.BlockAsyncExceptions].
//   - Coordination: [Coordinator] runs pending operations for parked threads.
//
// # Thread Programs
//
// Thread code can be written as [code.hybscloud.com/kont] programs whose
// safe points are effects: [Poll], [Checkpoint] and [Block]. [Exec] runs a
// program to completion; [ExecError] aborts it on an async exception;
// [Step] and [Advance] evaluate it one effect at a time. [Loop] polls at
// every back-edge.
//
// # Example
//
//	reg := handshake.NewRegistry()
//	th := reg.Attach("worker")
//	defer th.Detach()
//	h := reg.Protect()
//	defer h.Release()
//	ctx := handshake.WithHandle(context.Background(), h)
//	err := handshake.ExecuteOn(ctx, handshake.New("flush", func(t *handshake.Thread) {
//		// runs on behalf of t
//	}), target)
package handshake
