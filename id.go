// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import "code.hybscloud.com/atomix"

// ID identifies a thread or an executor acting on behalf of one.
// IDs are monotonically increasing and never reused. The zero ID means
// "no executor".
type ID = uint64

// NoExecutor is the value of [State.ActiveExecutor] while unclaimed.
const NoExecutor ID = 0

// counter is the global monotonic counter for thread and executor IDs.
var counter atomix.Uint64

// nextID returns the next monotonically increasing ID.
func nextID() ID {
	return counter.Add(1)
}

// NewExecutorID allocates an executor identity for an actor that is not a
// registry thread, such as a coordinator goroutine.
func NewExecutorID() ID {
	return nextID()
}
