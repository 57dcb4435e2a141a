// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/kont"
)

// Loop runs a recursive thread program.
// step returns Left(nextState) to continue or Right(result) to finish.
// Every back-edge performs a Poll before the next step runs, so a
// long-running loop stays responsive to handshakes.
func Loop[S, A any](initial S, step func(S) kont.Eff[kont.Either[S, A]]) kont.Eff[A] {
	return kont.Bind(step(initial), func(e kont.Either[S, A]) kont.Eff[A] {
		if left, ok := e.GetLeft(); ok {
			return PollBind(func(bool) kont.Eff[A] {
				return Loop(left, step)
			})
		}
		right, _ := e.GetRight()
		return kont.Pure(right)
	})
}
