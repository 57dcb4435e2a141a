// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/kont"
)

// Exec runs a thread program on t, the calling goroutine's thread.
// Safe-check effects process t's handshakes inline; a pending suspension
// parks the goroutine until resumed. Async exceptions delivered meanwhile
// stay pending on t; use [ExecError] to have them abort the program.
func Exec[R any](t *Thread, program kont.Eff[R]) R {
	h := threadHandler[R]{t: t}
	return kont.Handle(program, h)
}
