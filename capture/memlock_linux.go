// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// unixMemoryLocker pins memory with mlock(2) and tracks every region it
// has locked so Unlock can release them all.
type unixMemoryLocker struct {
	baseMemoryLocker
	mu      sync.Mutex
	regions [][]byte
}

// NewMemoryLocker returns a MemoryLocker backed by mlock(2).
func NewMemoryLocker() MemoryLocker {
	return &unixMemoryLocker{}
}

func (l *unixMemoryLocker) Lock(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := unix.Mlock(data); err != nil {
		return fmt.Errorf("memlock: mlock %d bytes: %w", len(data), err)
	}
	l.mu.Lock()
	l.regions = append(l.regions, data)
	l.mu.Unlock()
	l.addLocked(len(data))
	return nil
}

func (l *unixMemoryLocker) Unlock() error {
	l.mu.Lock()
	regions := l.regions
	l.regions = nil
	l.mu.Unlock()

	var firstErr error
	for _, r := range regions {
		if err := unix.Munlock(r); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("memlock: munlock %d bytes: %w", len(r), err)
			}
			continue
		}
		atomic.AddUint64(&l.lockedBytes, ^uint64(len(r)-1))
	}
	return firstErr
}
