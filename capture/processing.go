// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"context"
	"fmt"
	"sync/atomic"
)

// runProcessingLoop is the processing worker's hot loop: acquire the
// next full disk buffer slot in FIFO order, demux it for audio and RF
// metrics, optionally verify the test-mode ramp pattern, transcode the
// scrubbed RF payload, write it to disk, and advance. It returns once
// the transfer worker has finished and every slot it produced has been
// drained, or once a failure forces an early exit.
func (s *Session) runProcessingLoop(ctx context.Context) error {
	sync := NewSyncDetector(s.cfg.RecheckEachFrame)
	verifier := NewSequenceVerifier()

	rfWriter := s.newDiskWriter()
	defer rfWriter.Flush()

	var audioBuf16, audioBuf24 []byte

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		entry := s.nextFullBuffer()
		if entry == nil {
			return nil
		}

		dumping := entry.WaitFull()
		if dumping {
			entry.Clear()
			s.telemetry.addBuffersDumped(1)
			s.consumerIndex++
			if s.isFinishedAndDrained() {
				return nil
			}
			continue
		}

		frames, metrics := sync.Process(entry.Data)
		if sync.State() == SequenceFailed {
			err := fmt.Errorf("processing: audio frame sequence lost after lock")
			entry.Clear()
			s.fail(SequenceMismatch, err)
			return err
		}
		s.telemetry.addSamplesProcessed(uint64(len(entry.Data) / 2))
		s.telemetry.addFramesDecoded(metrics.FramesDecoded)
		s.telemetry.observeRF(metrics.RFMin, metrics.RFMax)
		s.telemetry.addClipMin(uint64(metrics.ClipMin))
		s.telemetry.addClipMax(uint64(metrics.ClipMax))

		if s.cfg.TestMode {
			for _, f := range frames {
				if err := verifier.CheckAll(f.RFWords); err != nil {
					entry.Clear()
					s.fail(VerificationError, err)
					return err
				}
			}
		}

		if s.cfg.CaptureAudio {
			audioBuf16 = audioBuf16[:0]
			audioBuf24 = audioBuf24[:0]
			for _, f := range frames {
				audioBuf16 = append16BitStereo(audioBuf16, f.ADC128Left, f.ADC128Right)
				audioBuf24 = append24BitStereo(audioBuf24, f.PCM1802Left, f.PCM1802Right)
			}
			if len(audioBuf16) > 0 {
				if _, err := s.audio16.Write(audioBuf16); err != nil {
					s.fail(FileWriteError, err)
					return err
				}
				if _, err := s.audio24.Write(audioBuf24); err != nil {
					s.fail(FileWriteError, err)
					return err
				}
			}
		}

		out := s.conv.Buffer(int(s.consumerIndex))
		outSize, err := TranscodedSize(len(entry.Data), s.cfg.Format)
		if err != nil {
			entry.Clear()
			s.fail(ProgramError, err)
			return err
		}
		if len(out) != outSize {
			entry.Clear()
			s.fail(ProgramError, fmt.Errorf("processing: conversion buffer size mismatch"))
			return err
		}
		if err := TranscodeRawSampleData(entry.Data, s.cfg.Format, out); err != nil {
			entry.Clear()
			s.fail(ProgramError, err)
			return err
		}

		if err := rfWriter.Write(out); err != nil {
			entry.Clear()
			s.fail(FileWriteError, err)
			return err
		}
		s.telemetry.addBytesWritten(uint64(len(out)))
		s.telemetry.addBuffersProcessed(1)

		entry.Clear()
		s.consumerIndex++

		if s.isFinishedAndDrained() {
			return nil
		}
	}
}

// nextFullBuffer returns the disk buffer slot the processing worker
// should consume next, in strict FIFO order matching the transfer
// worker's production order.
func (s *Session) nextFullBuffer() *DiskBufferEntry {
	if s.ring == nil {
		return nil
	}
	return s.ring.Entry(int(s.consumerIndex))
}

// isFinishedAndDrained reports whether the transfer worker has finished
// and every slot up to the producer's last index has been consumed.
func (s *Session) isFinishedAndDrained() bool {
	return s.UsbTransferFinished() && s.consumerIndex >= s.producerIndexSnapshot()
}

// UsbTransferFinished reports whether the transfer worker has called
// SetUsbTransferFinished.
func (s *Session) UsbTransferFinished() bool {
	return atomic.LoadInt32(&s.finished) != 0
}

func (s *Session) producerIndexSnapshot() uint64 {
	return s.producerIndex
}

// newDiskWriter builds the disk writer for the RF output file according
// to the configured synchronous/asynchronous policy.
func (s *Session) newDiskWriter() DiskWriter {
	if s.cfg.UseAsyncDiskWriter {
		return NewAsyncDiskWriter(s.rfFile)
	}
	return NewSyncDiskWriter(s.rfFile)
}
