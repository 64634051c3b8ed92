// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "sync/atomic"

// Telemetry holds the running counters a supervisor exposes to callers
// while a capture is in progress. All fields are updated by exactly one
// writer (the processing worker, or the transfer worker for
// TransfersCompleted) and may be read concurrently by any number of
// readers; readers may observe a slightly stale snapshot, which is
// acceptable for progress reporting.
type Telemetry struct {
	transfersCompleted uint64
	buffersProcessed   uint64
	buffersDumped      uint64
	bytesWritten       uint64
	samplesProcessed   uint64
	framesDecoded      uint64

	rfMin uint32 // stored as uint32 to keep atomic ops uniform; real range is uint16
	rfMax uint32

	clipMinCount uint64
	clipMaxCount uint64

	lastTransferResult uint32 // atomic-stored TransferResult
}

// NewTelemetry returns a zeroed Telemetry with lastTransferResult set to
// Running and the RF minimum set just above the uint16 range, so the
// first observeRF call always replaces it.
func NewTelemetry() *Telemetry {
	t := &Telemetry{}
	atomic.StoreUint32(&t.lastTransferResult, uint32(Running))
	atomic.StoreUint32(&t.rfMin, 1<<16)
	return t
}

func (t *Telemetry) addTransfersCompleted(n uint64) { atomic.AddUint64(&t.transfersCompleted, n) }
func (t *Telemetry) addBuffersProcessed(n uint64)   { atomic.AddUint64(&t.buffersProcessed, n) }

// RecordTransferCompleted notes that one USB bulk transfer finished
// filling a buffer slot. It is exported so a capture.TransferWorker
// implementation living in another package (such as a USB driver) can
// report its own progress.
func (t *Telemetry) RecordTransferCompleted() {
	t.addTransfersCompleted(1)
}
func (t *Telemetry) addBuffersDumped(n uint64)      { atomic.AddUint64(&t.buffersDumped, n) }
func (t *Telemetry) addBytesWritten(n uint64)       { atomic.AddUint64(&t.bytesWritten, n) }
func (t *Telemetry) addSamplesProcessed(n uint64)   { atomic.AddUint64(&t.samplesProcessed, n) }
func (t *Telemetry) addFramesDecoded(n uint64)      { atomic.AddUint64(&t.framesDecoded, n) }
func (t *Telemetry) addClipMin(n uint64)            { atomic.AddUint64(&t.clipMinCount, n) }
func (t *Telemetry) addClipMax(n uint64)            { atomic.AddUint64(&t.clipMaxCount, n) }

// observeRF folds a buffer's RF min/max into the running extremes seen
// across the whole capture.
func (t *Telemetry) observeRF(min, max uint16) {
	for {
		cur := atomic.LoadUint32(&t.rfMin)
		if cur <= uint32(min) {
			break
		}
		if atomic.CompareAndSwapUint32(&t.rfMin, cur, uint32(min)) {
			break
		}
	}
	for {
		cur := atomic.LoadUint32(&t.rfMax)
		if uint16(cur) >= max {
			break
		}
		if atomic.CompareAndSwapUint32(&t.rfMax, cur, uint32(max)) {
			break
		}
	}
}

// TransfersCompleted returns the number of USB transfers the device
// driver has handed back to the supervisor.
func (t *Telemetry) TransfersCompleted() uint64 { return atomic.LoadUint64(&t.transfersCompleted) }

// BuffersProcessed returns the number of disk buffer slots the
// processing worker has consumed and transcoded.
func (t *Telemetry) BuffersProcessed() uint64 { return atomic.LoadUint64(&t.buffersProcessed) }

// BuffersDumped returns the number of disk buffer slots discarded
// rather than processed, due to either a forced drain at shutdown or a
// failure-triggered full-ring dump.
func (t *Telemetry) BuffersDumped() uint64 { return atomic.LoadUint64(&t.buffersDumped) }

// BytesWritten returns the cumulative bytes written to the RF output
// file.
func (t *Telemetry) BytesWritten() uint64 { return atomic.LoadUint64(&t.bytesWritten) }

// SamplesProcessed returns the cumulative count of raw wire samples the
// processing worker has examined.
func (t *Telemetry) SamplesProcessed() uint64 { return atomic.LoadUint64(&t.samplesProcessed) }

// FramesDecoded returns the cumulative count of 512-sample audio frames
// successfully decoded.
func (t *Telemetry) FramesDecoded() uint64 { return atomic.LoadUint64(&t.framesDecoded) }

// ClipCounts returns the cumulative count of RF samples observed at the
// bottom and top of the 10-bit range, respectively.
func (t *Telemetry) ClipCounts() (min, max uint64) {
	return atomic.LoadUint64(&t.clipMinCount), atomic.LoadUint64(&t.clipMaxCount)
}

// RFRange returns the smallest and largest scrubbed RF sample values
// observed across the capture so far.
func (t *Telemetry) RFRange() (min, max uint16) {
	return uint16(atomic.LoadUint32(&t.rfMin)), uint16(atomic.LoadUint32(&t.rfMax))
}

// setLastResult stores result if and only if the currently stored value
// is Running, implementing the first-terminal-result-wins latch.
// It returns true if this call was the one that set the latch.
func (t *Telemetry) setLastResult(result TransferResult) bool {
	return atomic.CompareAndSwapUint32(&t.lastTransferResult, uint32(Running), uint32(result))
}

// LastResult returns the latched terminal result, or Running if the
// capture is still in progress.
func (t *Telemetry) LastResult() TransferResult {
	return TransferResult(atomic.LoadUint32(&t.lastTransferResult))
}

// DropDetect tracks a monotonically increasing hardware sequence counter
// that wraps at a fixed modulus, reporting the number of missed steps
// since the last observation. It is resilient to a single wraparound
// between calls but not to more than one.
type DropDetect struct {
	modulus  uint32
	lastSeen uint32
	started  bool
}

// NewDropDetect creates a detector for a counter that wraps at modulus.
func NewDropDetect(modulus uint32) *DropDetect {
	return &DropDetect{modulus: modulus}
}

// Observe records the next counter value and returns how many steps, if
// any, were skipped since the previous call.
func (d *DropDetect) Observe(value uint32) (dropped uint32) {
	if !d.started {
		d.lastSeen = value
		d.started = true
		return 0
	}
	expected := (d.lastSeen + 1) % d.modulus
	if value == expected {
		d.lastSeen = value
		return 0
	}
	if value > expected {
		dropped = value - expected
	} else {
		dropped = d.modulus - expected + value
	}
	d.lastSeen = value
	return dropped
}
