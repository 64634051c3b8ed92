// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "sync"

// DiskBufferEntry is one slot of the disk-buffer ring. It holds one raw
// USB payload, a full flag protected by a cond variable for wait/notify
// semantics, and a dumping flag that tells the processing worker to
// discard the slot's contents rather than process them.
//
// A full entry is owned by the processing worker until it clears Full.
// The transfer worker must not write into an entry while Full is set.
// Entries advance strictly in FIFO order on both sides; see
// DiskBufferRing.
type DiskBufferEntry struct {
	mu   sync.Mutex
	cond *sync.Cond

	// Data is the raw USB payload for this slot. Fixed size for the
	// life of the ring.
	Data []byte

	full    bool
	dumping bool

	// WriteInProgress marks a slot whose transcoded contents have an
	// asynchronous write outstanding. The processing worker does not set
	// it: AsyncDiskWriter tracks its one outstanding write itself.
	WriteInProgress bool
	writeDone       chan error
}

func newDiskBufferEntry(size int) *DiskBufferEntry {
	e := &DiskBufferEntry{
		Data: make([]byte, size),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// MarkFull sets the full flag and wakes any waiter. dumping, if true,
// tells the processing worker to discard this slot's contents instead
// of processing them.
func (e *DiskBufferEntry) MarkFull(dumping bool) {
	e.mu.Lock()
	e.dumping = e.dumping || dumping
	e.full = true
	e.cond.Broadcast()
	e.mu.Unlock()
}

// SetDumping sets the dumping flag without affecting the full flag.
func (e *DiskBufferEntry) SetDumping() {
	e.mu.Lock()
	e.dumping = true
	e.mu.Unlock()
}

// WaitFull blocks until the slot is marked full, then returns whether
// the slot is flagged for dumping.
func (e *DiskBufferEntry) WaitFull() (dumping bool) {
	e.mu.Lock()
	for !e.full {
		e.cond.Wait()
	}
	dumping = e.dumping
	e.mu.Unlock()
	return dumping
}

// IsFull reports the current value of the full flag without blocking.
func (e *DiskBufferEntry) IsFull() bool {
	e.mu.Lock()
	v := e.full
	e.mu.Unlock()
	return v
}

// IsDumping reports the current value of the dumping flag without
// blocking.
func (e *DiskBufferEntry) IsDumping() bool {
	e.mu.Lock()
	v := e.dumping
	e.mu.Unlock()
	return v
}

// Clear clears the full and dumping flags, returning ownership of the
// slot to the transfer worker, and wakes any waiter blocked on the slot
// becoming empty (there is none in the current protocol, but future
// producer-side waits are supported by this symmetry).
func (e *DiskBufferEntry) Clear() {
	e.mu.Lock()
	e.full = false
	e.dumping = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

// DiskBufferRing is an ordered, fixed-size sequence of DiskBufferEntry.
// Slots are consumed strictly in index order by both the transfer
// worker (producer) and the processing worker (consumer).
type DiskBufferRing struct {
	entries        []*DiskBufferEntry
	singleSizeInBytes int
}

// NewDiskBufferRing allocates a ring of count slots, each sized to
// entrySize bytes.
func NewDiskBufferRing(count, entrySize int) *DiskBufferRing {
	r := &DiskBufferRing{
		entries:           make([]*DiskBufferEntry, count),
		singleSizeInBytes: entrySize,
	}
	for i := range r.entries {
		r.entries[i] = newDiskBufferEntry(entrySize)
	}
	return r
}

// Count returns the number of slots in the ring.
func (r *DiskBufferRing) Count() int {
	return len(r.entries)
}

// EntrySize returns the size in bytes of a single slot's Data buffer.
func (r *DiskBufferRing) EntrySize() int {
	return r.singleSizeInBytes
}

// Entry returns the slot at the given index. The caller is responsible
// for respecting FIFO ordering; Entry performs no bounds-related
// synchronization of its own beyond what DiskBufferEntry provides.
func (r *DiskBufferRing) Entry(i int) *DiskBufferEntry {
	return r.entries[i%len(r.entries)]
}

// ForceDumpEmptySlots walks every slot that is not yet full, flags it
// for dumping, and marks it full. This unblocks a processing worker
// waiting on an as-yet-unfilled slot without it processing junk data,
// per the forced-drain termination protocol.
func (r *DiskBufferRing) ForceDumpEmptySlots() {
	for _, e := range r.entries {
		if !e.IsFull() {
			e.MarkFull(true)
		}
	}
}

// CycleAllFull clears then re-marks-full (with dumping set) every slot
// in the ring, regardless of current state, so that both a producer and
// a consumer blocked on any slot observe the change. Used when a
// capture-wide data dump has been requested after a worker failure.
func (r *DiskBufferRing) CycleAllFull() {
	for _, e := range r.entries {
		e.Clear()
	}
	for _, e := range r.entries {
		e.MarkFull(true)
	}
}

// CalculateBufferCountAndSize computes the number of ring slots and the
// size in bytes of each slot from the USB transfer queue budget, the
// disk buffer queue budget, and the small-transfer flag, following the
// same sizing rule as the device firmware's host application: small USB
// transfers use a 16 KiB transfer unit, otherwise a 64 KiB transfer
// unit; each slot holds as many whole transfer units as fit in the USB
// transfer queue budget (at least one), and the number of slots is the
// disk buffer queue budget divided by that slot size, with a minimum of
// two slots.
func CalculateBufferCountAndSize(useSmallUsbTransfers bool, usbTransferQueueBytes, diskBufferQueueBytes uint64) (count, entrySize int) {
	const smallTransferUnit = 16 * 1024
	const normalTransferUnit = 64 * 1024

	transferUnit := uint64(normalTransferUnit)
	if useSmallUsbTransfers {
		transferUnit = smallTransferUnit
	}

	// Each disk buffer aggregates however many transfer units fit in the
	// USB transfer queue budget, with a floor of one transfer unit.
	unitsPerBuffer := usbTransferQueueBytes / transferUnit
	if unitsPerBuffer == 0 {
		unitsPerBuffer = 1
	}
	singleEntrySize := unitsPerBuffer * transferUnit

	numEntries := diskBufferQueueBytes / singleEntrySize
	if numEntries < 2 {
		numEntries = 2
	}

	return int(numEntries), int(singleEntrySize)
}
