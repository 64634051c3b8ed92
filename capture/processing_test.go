// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"context"
	"path/filepath"
	"testing"
)

// setRFRamp overwrites the low 10 bits of every sample with a ramp
// starting at start and wrapping at testSequenceWrap, leaving each
// sample's top 6 multiplexed bits untouched.
func setRFRamp(samples []uint16, start int) {
	for i := range samples {
		rf := uint16((start + i) % testSequenceWrap)
		samples[i] = (samples[i] &^ 0x03FF) | rf
	}
}

func TestSessionRunVerificationErrorAborts(t *testing.T) {
	dir := t.TempDir()
	cfg := testSessionConfig()
	cfg.TestMode = true

	// A full ring slot is 16 frames (16 KiB at this small-transfer config).
	// Every frame carries the globally continuous ramp except frame 5,
	// whose ramp is reset to 0 instead of continuing from 512: a break
	// far short of the tolerated early wrap near 1021, so it must be
	// reported as a genuine mismatch rather than silently accepted.
	const framesPerBuffer = 16
	const brokenFrame = 5

	var raw []byte
	for i := 0; i < framesPerBuffer; i++ {
		frame := buildSyncFrame(2048, 2048, 0x800000, 0x800000, uint16(i))
		start := (i * frameSampleCount) % testSequenceWrap
		if i == brokenFrame {
			start = 0
		}
		setRFRamp(frame, start)
		raw = append(raw, wordsToBytes(frame)...)
	}

	sess := NewSession(
		WithConfig(cfg),
		WithTransferWorker(&fakeTransferWorker{raw: raw}),
		WithOutputPaths(filepath.Join(dir, "out.lds"), "", ""),
	)

	err := sess.Run(context.Background())
	if err == nil {
		t.Fatal("Run returned nil error, want test-mode verification failure")
	}
	if sess.Telemetry().LastResult() != VerificationError {
		t.Fatalf("LastResult = %v, want VerificationError", sess.Telemetry().LastResult())
	}
}
