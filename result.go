// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

// ProcessResult is the outcome of [State.TryProcess].
type ProcessResult uint8

const (
	// NoOperation: nothing an external executor may run is queued.
	NoOperation ProcessResult = iota
	// NotSafe: the thread is running and must process its own queue.
	NotSafe
	// ClaimFailed: another executor holds the claim. Retry later.
	ClaimFailed
	// Processed: an operation other than the awaited one was run.
	Processed
	// Succeeded: the awaited operation was run.
	Succeeded
)

var processResultNames = [...]string{
	NoOperation: "no operation",
	NotSafe:     "not safe",
	ClaimFailed: "claim failed",
	Processed:   "processed",
	Succeeded:   "succeeded",
}

func (r ProcessResult) String() string {
	if int(r) < len(processResultNames) {
		return processResultNames[r]
	}
	return "unknown"
}
