// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"code.hybscloud.com/kont"
)

// PollThen runs a safe-check and then continues with next.
// Fuses Perform(Poll{}) + Then.
func PollThen[B any](next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Poll{}), next)
}

// PollBind runs a safe-check and passes whether the thread was suspended
// to f. Fuses Perform(Poll{}) + Bind.
func PollBind[B any](f func(bool) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Poll{}), f)
}

// CheckpointThen runs a restricted safe-check and then continues with next.
// Fuses Perform(Checkpoint{}) + Then.
func CheckpointThen[B any](next kont.Eff[B]) kont.Eff[B] {
	return kont.Then(kont.Perform(Checkpoint{}), next)
}

// BlockBind runs fn parked and passes its result to f.
// Fuses Perform(Block[T]{Fn: fn}) + Bind.
func BlockBind[T, B any](fn func() T, f func(T) kont.Eff[B]) kont.Eff[B] {
	return kont.Bind(kont.Perform(Block[T]{Fn: fn}), f)
}

// PollDone runs a safe-check and returns a.
// Fuses Perform(Poll{}) + Then + Pure.
func PollDone[A any](a A) kont.Eff[A] {
	return kont.Then(kont.Perform(Poll{}), kont.Pure(a))
}
