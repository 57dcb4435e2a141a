// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"slices"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
)

// defaultQueueCapacity is the bounded capacity of a thread's lock-free
// intake. Pushes beyond it spill into the overflow list.
const defaultQueueCapacity = 64

// filterQueue is a multi-producer queue whose consumer side supports
// non-destructive filtered inspection and removal by predicate.
//
// Producers append lock-free into a bounded MPSC intake from lfq. The
// consumer side (peek, contains, remove, removeAll, len) must be
// serialized by the owner's lock: it first collects the intake into
// items, so exactly one goroutine at a time acts as the MPSC consumer.
//
// push never takes the owner's lock. A producer may therefore push while
// holding it, which nested handshakes rely on.
type filterQueue[E comparable] struct {
	intake lfq.Queue[E]
	items  []E
	count  atomix.Int64

	spillMu  sync.Mutex
	spill    []E
	spilling atomix.Uint32
}

func (q *filterQueue[E]) init(capacity int) {
	if capacity < 2 {
		capacity = 2
	}
	q.intake = lfq.BuildMPSC[E](lfq.New(capacity).SingleConsumer().Compact())
}

// push appends e. Never blocks on the owner's lock.
func (q *filterQueue[E]) push(e E) {
	q.count.Add(1)
	if q.spilling.Load() == 0 {
		err := q.intake.Enqueue(&e)
		if err == nil {
			return
		}
		if !lfq.IsWouldBlock(err) {
			panic("handshake: queue intake: " + err.Error())
		}
	}
	// Once spilled, later pushes follow into the spill list until the
	// consumer collects it, so the intake cannot overtake spilled entries.
	q.spillMu.Lock()
	q.spill = append(q.spill, e)
	q.spilling.Store(1)
	q.spillMu.Unlock()
}

// isEmpty reports whether no element is queued. Lock-free; advisory.
func (q *filterQueue[E]) isEmpty() bool {
	return q.count.Load() == 0
}

// collect moves the intake, then the spill list, into items.
func (q *filterQueue[E]) collect() {
	for {
		e, err := q.intake.Dequeue()
		if err != nil {
			break
		}
		q.items = append(q.items, e)
	}
	if q.spilling.Load() == 0 {
		return
	}
	q.spillMu.Lock()
	q.items = append(q.items, q.spill...)
	clear(q.spill)
	q.spill = q.spill[:0]
	q.spilling.Store(0)
	q.spillMu.Unlock()
}

// peek returns the first element satisfying match, leaving it queued.
func (q *filterQueue[E]) peek(match func(E) bool) (E, bool) {
	q.collect()
	for _, e := range q.items {
		if match(e) {
			return e, true
		}
	}
	var zero E
	return zero, false
}

// contains reports whether e is queued.
func (q *filterQueue[E]) contains(e E) bool {
	q.collect()
	return slices.Contains(q.items, e)
}

// remove deletes the first element satisfying match.
func (q *filterQueue[E]) remove(match func(E) bool) (E, bool) {
	q.collect()
	i := slices.IndexFunc(q.items, match)
	if i < 0 {
		var zero E
		return zero, false
	}
	e := q.items[i]
	q.items = slices.Delete(q.items, i, i+1)
	q.count.Add(-1)
	return e, true
}

// removeAll deletes and returns every queued element in order.
func (q *filterQueue[E]) removeAll() []E {
	q.collect()
	all := q.items
	q.items = nil
	q.count.Add(-int64(len(all)))
	return all
}

// len returns the number of queued elements.
func (q *filterQueue[E]) len() int {
	q.collect()
	return len(q.items)
}
