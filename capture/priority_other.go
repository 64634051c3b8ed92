// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package capture

// noopPriorityBooster does nothing; real-time priority boosting is only
// implemented for Linux.
type noopPriorityBooster struct{}

// NewPriorityBooster returns a PriorityBooster that always reports
// success without changing scheduling policy.
func NewPriorityBooster(priority int) PriorityBooster {
	return &noopPriorityBooster{}
}

func (p *noopPriorityBooster) Raise() error {
	return nil
}
