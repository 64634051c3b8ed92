// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Session owns one capture run end to end: the disk buffer ring, the
// conversion buffers, the output files, and the two worker goroutines
// (transfer and processing). A Session is built with NewSession and a
// set of ConfigFn options, then driven with Run.
type Session struct {
	cfg    Config
	log    Logger
	device Device
	worker TransferWorker

	ring       *DiskBufferRing
	conv       *ConversionBufferRing
	telemetry  *Telemetry
	locker     MemoryLocker
	booster    PriorityBooster

	rfFile    *os.File
	audio16   *os.File
	audio24   *os.File
	audio16Hdr *WavHeader
	audio24Hdr *WavHeader

	rfPath    string
	audio16Path string
	audio24Path string

	stopRequested int32 // atomic bool
	finished      int32 // atomic bool

	producerIndex uint64
	consumerIndex uint64
}

// ConfigFn mutates a Session during construction. Options are applied in
// the order given to NewSession.
type ConfigFn func(*Session)

// WithConfig sets the full Config, overriding any earlier WithConfig
// call.
func WithConfig(cfg Config) ConfigFn {
	return func(s *Session) { s.cfg = cfg }
}

// WithLogger sets the Logger the session reports through. Defaults to
// NoopLogger.
func WithLogger(log Logger) ConfigFn {
	return func(s *Session) { s.log = log }
}

// WithDevice sets the USB device collaborator.
func WithDevice(d Device) ConfigFn {
	return func(s *Session) { s.device = d }
}

// WithTransferWorker sets the USB transfer loop collaborator.
func WithTransferWorker(w TransferWorker) ConfigFn {
	return func(s *Session) { s.worker = w }
}

// WithOutputPaths sets the RF capture file path and, if captureAudio is
// enabled, the two audio WAV file paths.
func WithOutputPaths(rfPath, audio16Path, audio24Path string) ConfigFn {
	return func(s *Session) {
		s.rfPath = rfPath
		s.audio16Path = audio16Path
		s.audio24Path = audio24Path
	}
}

// NewSession builds a Session from the given options. It does not open
// any files, lock memory, or start any goroutines; call Run for that.
func NewSession(fns ...ConfigFn) *Session {
	s := &Session{
		cfg:       DefaultConfig(),
		log:       NoopLogger{},
		telemetry: NewTelemetry(),
	}
	for _, fn := range fns {
		fn(s)
	}
	return s
}

// Telemetry returns the session's running counters. Safe to call
// concurrently with Run.
func (s *Session) Telemetry() *Telemetry {
	return s.telemetry
}

// UsbTransferStopRequested reports whether the transfer worker has been
// asked to stop. The transfer worker must poll this and return from Run
// once it observes true.
func (s *Session) UsbTransferStopRequested() bool {
	return atomic.LoadInt32(&s.stopRequested) != 0
}

// SetUsbTransferFinished must be called exactly once by the transfer
// worker immediately before it returns from Run.
func (s *Session) SetUsbTransferFinished() {
	atomic.StoreInt32(&s.finished, 1)
	s.ring.ForceDumpEmptySlots()
}

// NextEmptyBuffer returns the next disk buffer slot the transfer worker
// should fill, in strict FIFO order.
func (s *Session) NextEmptyBuffer() *DiskBufferEntry {
	idx := atomic.AddUint64(&s.producerIndex, 1) - 1
	return s.ring.Entry(int(idx))
}

// Run opens output files, locks memory, connects the device, and runs
// the transfer and processing workers to completion. If priority
// boosting is configured, it is applied to the processing worker's own
// OS thread once that goroutine starts, since that is the goroutine
// that must resist scheduling jitter. Run returns the terminal result of
// the capture.
func (s *Session) Run(ctx context.Context) error {
	count, entrySize := CalculateBufferCountAndSize(s.cfg.UseSmallUsbTransfers, s.cfg.UsbTransferQueueBytes, s.cfg.DiskBufferQueueBytes)
	s.ring = NewDiskBufferRing(count, entrySize)

	convCount := 1
	if s.cfg.UseAsyncDiskWriter {
		convCount = 2
	}
	conv, err := NewConversionBufferRing(convCount, entrySize, s.cfg.Format, s.cfg.UseAsyncDiskWriter)
	if err != nil {
		return newCaptureError(ProgramError, err)
	}
	s.conv = conv

	if s.cfg.LockMemory {
		s.locker = NewMemoryLocker()
		if err := LockAllRingBuffers(s.locker, s.ring); err != nil {
			return newCaptureError(ProgramError, fmt.Errorf("memory pinning failed, aborting: %w", err))
		}
		defer s.locker.Unlock()
	}

	if s.cfg.BoostPriority {
		s.booster = NewPriorityBooster(s.cfg.RealtimePriority)
	}

	if err := s.openOutputFiles(); err != nil {
		return newCaptureError(FileCreationError, err)
	}
	defer s.closeOutputFiles()

	if s.device != nil {
		if err := s.device.ConnectToDevice(s.cfg.DevicePath); err != nil {
			return newCaptureError(ConnectionFailure, err)
		}
		defer s.device.DisconnectFromDevice()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if s.worker != nil {
			s.worker.Run(s)
		}
		return nil
	})

	var procErr error
	procDone := make(chan struct{})
	g.Go(func() error {
		defer close(procDone)
		if s.booster != nil {
			// SCHED_RR is a per-thread attribute: lock this goroutine to
			// its OS thread before raising it, and never unlock, since the
			// thread must keep the elevated priority for the rest of the
			// processing loop's life. This is the thread that needs to
			// resist OS scheduling jitter, not Run's own goroutine.
			runtime.LockOSThread()
			if err := s.booster.Raise(); err != nil {
				s.log.Warning("could not raise scheduling priority: {0}", err)
			}
		}
		procErr = s.runProcessingLoop(gctx)
		return procErr
	})

	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-procDone:
		}
		s.StopCapture()
		return nil
	})

	_ = g.Wait()

	result := s.telemetry.LastResult()
	if result == Running {
		s.telemetry.setLastResult(Success)
		result = Success
	}
	return newCaptureError(result, procErr)
}

// StopCapture requests a graceful shutdown: the transfer worker is told
// to stop, and any disk buffer slots it never fills are forced to drain
// so the processing worker does not block forever.
func (s *Session) StopCapture() {
	atomic.StoreInt32(&s.stopRequested, 1)
	if s.ring != nil {
		s.ring.ForceDumpEmptySlots()
	}
}

// fail latches result as the session's terminal outcome if no terminal
// result has been latched yet, and requests shutdown.
func (s *Session) fail(result TransferResult, cause error) {
	if s.telemetry.setLastResult(result) {
		s.log.Error("capture failed: {0}", newCaptureError(result, cause))
	}
	s.StopCapture()
	if s.ring != nil {
		s.ring.CycleAllFull()
	}
}

func (s *Session) openOutputFiles() error {
	var err error
	s.rfFile, err = os.Create(s.rfPath)
	if err != nil {
		return fmt.Errorf("create rf output %s: %w", s.rfPath, err)
	}

	if !s.cfg.CaptureAudio {
		return nil
	}

	s.audio16Hdr, err = NewAudioWavHeader(2)
	if err != nil {
		return err
	}
	s.audio16, err = os.Create(s.audio16Path)
	if err != nil {
		return fmt.Errorf("create 16-bit audio output %s: %w", s.audio16Path, err)
	}
	if err := writeWavHeaderPlaceholder(s.audio16, s.audio16Hdr); err != nil {
		return err
	}

	s.audio24Hdr, err = NewAudioWavHeader(3)
	if err != nil {
		return err
	}
	s.audio24, err = os.Create(s.audio24Path)
	if err != nil {
		return fmt.Errorf("create 24-bit audio output %s: %w", s.audio24Path, err)
	}
	return writeWavHeaderPlaceholder(s.audio24, s.audio24Hdr)
}

func (s *Session) closeOutputFiles() {
	var once sync.Once
	finalize := func(f *os.File, hdr *WavHeader) {
		if f == nil {
			return
		}
		info, err := f.Stat()
		if err == nil && hdr != nil {
			hdr.Update(uint32(info.Size()))
			_ = rewriteWavHeader(f, hdr)
		}
		f.Close()
	}
	once.Do(func() {
		finalize(s.audio16, s.audio16Hdr)
		finalize(s.audio24, s.audio24Hdr)
		if s.rfFile != nil {
			s.rfFile.Close()
		}
	})
}
