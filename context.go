// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import "context"

type handleKey struct{}

type threadKey struct{}

// handleChain links the handles held along a calling context, innermost
// first.
type handleChain struct {
	h      *ListHandle
	parent *handleChain
}

// WithHandle returns a context recording that the caller holds h.
// Handles nest: outer handles stay visible.
func WithHandle(ctx context.Context, h *ListHandle) context.Context {
	parent, _ := ctx.Value(handleKey{}).(*handleChain)
	return context.WithValue(ctx, handleKey{}, &handleChain{h: h, parent: parent})
}

// HandleFrom returns the innermost handle recorded in ctx, or nil.
func HandleFrom(ctx context.Context) *ListHandle {
	if c, ok := ctx.Value(handleKey{}).(*handleChain); ok {
		return c.h
	}
	return nil
}

// WithThread returns a context identifying the calling goroutine as t.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// ThreadFrom returns the calling thread recorded in ctx, or nil when the
// caller is not a registry thread.
func ThreadFrom(ctx context.Context) *Thread {
	t, _ := ctx.Value(threadKey{}).(*Thread)
	return t
}

// protected reports whether target is covered by a handle in ctx. A
// thread always protects itself.
func protected(ctx context.Context, target *Thread) bool {
	if target == nil {
		return false
	}
	if ThreadFrom(ctx) == target {
		return true
	}
	c, _ := ctx.Value(handleKey{}).(*handleChain)
	for ; c != nil; c = c.parent {
		if c.h.Includes(target) {
			return true
		}
	}
	return false
}

// mustBeProtected panics unless target is covered by a handle in ctx.
func mustBeProtected(ctx context.Context, target *Thread) {
	if !protected(ctx, target) {
		panic("handshake: target not protected by a thread-list handle")
	}
}
