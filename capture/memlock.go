// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "sync/atomic"

// MemoryLocker pins process memory so the disk buffer ring cannot be
// paged out under memory pressure, which would stall the transfer
// worker long enough to overrun the USB device's onboard FIFO. Failure
// to pin memory is fatal to a capture, since a single page-out can lose
// data with no way to detect or recover it.
type MemoryLocker interface {
	// Lock pins the memory backing data. It must be safe to call
	// multiple times with different regions.
	Lock(data []byte) error
	// Unlock releases every region previously pinned by Lock.
	Unlock() error
	// LockedBytes returns the cumulative number of bytes currently
	// pinned.
	LockedBytes() uint64
}

// baseMemoryLocker provides the region bookkeeping shared by every
// platform's MemoryLocker; platform files supply the actual pin/unpin
// syscalls.
type baseMemoryLocker struct {
	lockedBytes uint64
}

func (b *baseMemoryLocker) LockedBytes() uint64 {
	return atomic.LoadUint64(&b.lockedBytes)
}

func (b *baseMemoryLocker) addLocked(n int) {
	atomic.AddUint64(&b.lockedBytes, uint64(n))
}

// LockAllRingBuffers pins every slot of ring using locker, unlocking
// everything already locked and returning the first error if any slot
// fails.
func LockAllRingBuffers(locker MemoryLocker, ring *DiskBufferRing) error {
	for i := 0; i < ring.Count(); i++ {
		if err := locker.Lock(ring.Entry(i).Data); err != nil {
			_ = locker.Unlock()
			return err
		}
	}
	return nil
}
