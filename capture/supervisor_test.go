// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeTransferWorker hands out pre-built raw buffers to the session in
// order, one per ring slot, standing in for a real USB device.
type fakeTransferWorker struct {
	raw []byte
}

func (w *fakeTransferWorker) Run(session *Session) {
	defer session.SetUsbTransferFinished()
	entrySize := session.ring.EntrySize()
	for offset := 0; offset+entrySize <= len(w.raw); offset += entrySize {
		if session.UsbTransferStopRequested() {
			return
		}
		entry := session.NextEmptyBuffer()
		copy(entry.Data, w.raw[offset:offset+entrySize])
		entry.MarkFull(false)
	}
}

// blockingTransferWorker never produces a buffer; it only watches for a
// stop request, standing in for a device that must be interrupted by a
// forced shutdown.
type blockingTransferWorker struct{}

func (blockingTransferWorker) Run(session *Session) {
	defer session.SetUsbTransferFinished()
	for !session.UsbTransferStopRequested() {
		time.Sleep(time.Millisecond)
	}
}

// buildFrameStream concatenates n sync-locked frames with sequential
// sequence numbers into one raw byte stream.
func buildFrameStream(n int, startSeq uint16) []byte {
	var raw []byte
	for i := 0; i < n; i++ {
		samples := buildSyncFrame(2048, 2048, 0x800000, 0x800000, startSeq+uint16(i))
		raw = append(raw, wordsToBytes(samples)...)
	}
	return raw
}

// testSessionConfig returns a Config sized so CalculateBufferCountAndSize
// yields one ring slot per 16 frames (16 KiB), small enough to exercise
// several buffers in a test without real hardware.
func testSessionConfig() Config {
	cfg := DefaultConfig()
	cfg.UseSmallUsbTransfers = true
	cfg.UsbTransferQueueBytes = 16 * 1024
	cfg.DiskBufferQueueBytes = 32 * 1024
	cfg.CaptureAudio = false
	cfg.LockMemory = false
	cfg.BoostPriority = false
	return cfg
}

func TestSessionRunHappyPathAcrossMultipleBuffers(t *testing.T) {
	dir := t.TempDir()
	cfg := testSessionConfig()
	cfg.Format = Signed16Bit

	const framesPerBuffer = 16
	raw := buildFrameStream(framesPerBuffer*2, 0)

	sess := NewSession(
		WithConfig(cfg),
		WithTransferWorker(&fakeTransferWorker{raw: raw}),
		WithOutputPaths(filepath.Join(dir, "out.lds"), "", ""),
	)

	if err := sess.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	tl := sess.Telemetry()
	if tl.FramesDecoded() != framesPerBuffer*2 {
		t.Fatalf("FramesDecoded = %d, want %d", tl.FramesDecoded(), framesPerBuffer*2)
	}
	if tl.BuffersProcessed() != 2 {
		t.Fatalf("BuffersProcessed = %d, want 2", tl.BuffersProcessed())
	}
	if tl.LastResult() != Success {
		t.Fatalf("LastResult = %v, want Success", tl.LastResult())
	}

	wantSize, err := TranscodedSize(len(raw), cfg.Format)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "out.lds"))
	if err != nil {
		t.Fatalf("unexpected error stating output: %v", err)
	}
	if info.Size() != int64(wantSize) {
		t.Fatalf("output size = %d, want %d", info.Size(), wantSize)
	}
}

func TestSessionRunForcedDrainOnContextCancel(t *testing.T) {
	dir := t.TempDir()
	cfg := testSessionConfig()

	sess := NewSession(
		WithConfig(cfg),
		WithTransferWorker(blockingTransferWorker{}),
		WithOutputPaths(filepath.Join(dir, "out.lds"), "", ""),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after context cancellation; forced drain did not unblock the processing loop")
	}

	if sess.Telemetry().BuffersDumped() == 0 {
		t.Fatal("BuffersDumped = 0, want at least one forced-drain dump")
	}
}

func TestSessionRunSyncAsyncWriterParity(t *testing.T) {
	raw := buildFrameStream(16, 0)

	run := func(async bool) []byte {
		dir := t.TempDir()
		cfg := testSessionConfig()
		cfg.UseAsyncDiskWriter = async

		sess := NewSession(
			WithConfig(cfg),
			WithTransferWorker(&fakeTransferWorker{raw: append([]byte(nil), raw...)}),
			WithOutputPaths(filepath.Join(dir, "out.lds"), "", ""),
		)
		if err := sess.Run(context.Background()); err != nil {
			t.Fatalf("Run(async=%v) returned error: %v", async, err)
		}
		data, err := os.ReadFile(filepath.Join(dir, "out.lds"))
		if err != nil {
			t.Fatalf("unexpected error reading output: %v", err)
		}
		return data
	}

	syncOut := run(false)
	asyncOut := run(true)

	if len(syncOut) != len(asyncOut) {
		t.Fatalf("output length mismatch: sync=%d async=%d", len(syncOut), len(asyncOut))
	}
	for i := range syncOut {
		if syncOut[i] != asyncOut[i] {
			t.Fatalf("output mismatch at byte %d: sync=%02x async=%02x", i, syncOut[i], asyncOut[i])
		}
	}
}
