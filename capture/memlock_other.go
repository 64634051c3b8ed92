// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package capture

import "fmt"

// unsupportedMemoryLocker reports every lock attempt as an error, since
// no pinning syscall is wired up for this platform and failure to pin
// is fatal per the capture contract; a capture must not silently run
// unpinned.
type unsupportedMemoryLocker struct {
	baseMemoryLocker
}

// NewMemoryLocker returns a MemoryLocker that fails every call. Memory
// pinning is only implemented for Linux.
func NewMemoryLocker() MemoryLocker {
	return &unsupportedMemoryLocker{}
}

func (l *unsupportedMemoryLocker) Lock(data []byte) error {
	return fmt.Errorf("memlock: memory pinning is not supported on this platform")
}

func (l *unsupportedMemoryLocker) Unlock() error {
	return nil
}
