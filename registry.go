// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"log/slog"
	"slices"
	"sync"

	"code.hybscloud.com/atomix"
)

// Registry is the set of attached threads. It hands out [ListHandle]s,
// the liveness guarantee every cross-thread dispatch requires.
type Registry struct {
	mu       sync.Mutex
	threads  []*Thread
	log      *slog.Logger
	capacity int
}

// Option configures a [Registry].
type Option func(*Registry)

// WithLogger sets the logger used for debug-level handshake traces.
// The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithQueueCapacity sets the lock-free intake capacity of each thread's
// operation queue. Rounded up to a power of two by lfq.
func WithQueueCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		log:      slog.New(slog.DiscardHandler),
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach registers a new thread. The calling goroutine becomes that
// thread: it must call [Thread.SafeCheck] at its safe points and
// [Thread.Detach] when done.
func (r *Registry) Attach(name string) *Thread {
	t := &Thread{
		id:   nextID(),
		name: name,
		reg:  r,
		wake: make(chan struct{}, 1),
	}
	t.hs.init(t, r.capacity, r.log)
	r.mu.Lock()
	r.threads = append(r.threads, t)
	r.mu.Unlock()
	r.log.Debug("thread attached", "thread", t.id, "name", name)
	return t
}

func (r *Registry) remove(t *Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := slices.Index(r.threads, t); i >= 0 {
		r.threads = slices.Delete(r.threads, i, i+1)
	}
}

// Threads returns a snapshot of the attached threads. The snapshot
// carries no liveness guarantee; use [Registry.Protect] for that.
func (r *Registry) Threads() []*Thread {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.threads)
}

// Len returns the number of attached threads.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.threads)
}

// Protect returns a handle over the currently attached threads. Until
// the handle is released, none of them completes [Thread.Detach].
func (r *Registry) Protect() *ListHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &ListHandle{threads: slices.Clone(r.threads)}
	for _, t := range h.threads {
		t.hazards.Add(1)
	}
	return h
}

// ListHandle is a scoped liveness guarantee over a snapshot of threads.
// A thread included in the handle may exit, but its [State] stays valid
// and Detach does not return before the handle is released.
type ListHandle struct {
	threads  []*Thread
	released atomix.Uint32
}

// Includes reports whether the handle protects t.
func (h *ListHandle) Includes(t *Thread) bool {
	if h == nil || t == nil || h.released.Load() != 0 {
		return false
	}
	return slices.Contains(h.threads, t)
}

// Threads returns the protected threads.
func (h *ListHandle) Threads() []*Thread {
	return slices.Clone(h.threads)
}

// Len returns the number of protected threads.
func (h *ListHandle) Len() int { return len(h.threads) }

// Release drops the guarantee. Calling Release more than once is a no-op.
func (h *ListHandle) Release() {
	if !h.released.CompareAndSwap(0, 1) {
		return
	}
	for _, t := range h.threads {
		t.hazards.Add(-1)
	}
}
