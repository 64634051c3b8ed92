// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package capture

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// unixPriorityBooster raises the calling OS thread to SCHED_RR. The
// caller must have locked the calling goroutine to its OS thread with
// runtime.LockOSThread before calling Raise, since Linux scheduling
// policy is a per-thread, not per-goroutine, attribute.
type unixPriorityBooster struct {
	priority int
}

// NewPriorityBooster returns a PriorityBooster that requests SCHED_RR at
// the given priority (typically a small positive number; the exact
// ceiling depends on the process's RLIMIT_RTPRIO).
func NewPriorityBooster(priority int) PriorityBooster {
	return &unixPriorityBooster{priority: priority}
}

func (p *unixPriorityBooster) Raise() error {
	param := &unix.SchedParam{Priority: int32(p.priority)}
	if err := unix.SchedSetscheduler(0, unix.SCHED_RR, param); err != nil {
		return fmt.Errorf("priority: SchedSetscheduler SCHED_RR: %w", err)
	}
	return nil
}
