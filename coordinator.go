// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package handshake

import (
	"context"

	"code.hybscloud.com/iox"
)

// Coordinator is a privileged executor that runs pending synchronous
// operations on behalf of parked threads, so that requesters which cannot
// help themselves still see their operations retire.
//
// A Coordinator never runs async operations: those are bound to their
// target and run at its safe-checks.
type Coordinator struct {
	reg *Registry
	id  ID
}

// NewCoordinator returns a coordinator serving the threads of reg.
func NewCoordinator(reg *Registry) *Coordinator {
	return &Coordinator{reg: reg, id: nextID()}
}

// ID returns the coordinator's executor identity.
func (c *Coordinator) ID() ID { return c.id }

// Poll makes one pass over the attached threads and runs every operation
// it can on behalf of the parked ones. Claim contention is not retried
// within a pass. It returns the number of operations run.
func (c *Coordinator) Poll() int {
	h := c.reg.Protect()
	defer h.Release()
	n := 0
	for _, t := range h.threads {
		for t.hs.TryProcess(c.id, nil) == Processed {
			n++
		}
	}
	return n
}

// Run polls until ctx is done. Idle passes back off with iox.Backoff;
// any progress resets the backoff.
func (c *Coordinator) Run(ctx context.Context) error {
	var bo iox.Backoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.Poll() > 0 {
			bo.Reset()
		} else {
			bo.Wait()
		}
	}
}
