// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"fmt"
	"io"
)

// DiskWriter is the disk I/O capability the processing worker writes
// transcoded RF buffers through. SyncDiskWriter and AsyncDiskWriter are
// the two implementations the supervisor chooses between; there is no
// true OS overlapped I/O behind AsyncDiskWriter, since Go's io.Writer
// model has no portable equivalent. Instead it overlaps the next
// buffer's transcode with the previous buffer's write by handing the
// write off to a dedicated goroutine and harvesting the result one
// iteration later, which is the same overlap the original overlapped
// I/O achieved in practice.
type DiskWriter interface {
	// Write submits buf for writing. For the synchronous writer this
	// blocks until the data is on its way to the OS; for the
	// asynchronous writer it may return before the previous submission
	// has completed, surfacing that completion on the next call.
	Write(buf []byte) error
	// Flush blocks until every submitted write has completed and
	// returns the first error encountered, if any.
	Flush() error
}

// SyncDiskWriter writes every buffer to w before returning, so the
// processing worker cannot begin preparing the next buffer until the
// current write finishes.
type SyncDiskWriter struct {
	w io.Writer
}

// NewSyncDiskWriter wraps w as a synchronous DiskWriter.
func NewSyncDiskWriter(w io.Writer) *SyncDiskWriter {
	return &SyncDiskWriter{w: w}
}

func (s *SyncDiskWriter) Write(buf []byte) error {
	if _, err := s.w.Write(buf); err != nil {
		return fmt.Errorf("diskio: sync write: %w", err)
	}
	return nil
}

func (s *SyncDiskWriter) Flush() error {
	return nil
}

// AsyncDiskWriter submits each buffer to a single background writer
// goroutine and only blocks on the previous submission's completion
// before accepting the next one, overlapping one write with one
// transcode at a time. It requires at least two conversion buffers
// upstream so the buffer underneath an in-flight write is never reused
// before the write completes.
type AsyncDiskWriter struct {
	w        io.Writer
	pending  chan []byte
	done     chan error
	errc     chan error
	awaiting bool
	firstErr error
}

// NewAsyncDiskWriter starts a background writer goroutine over w. Flush
// must be called once no more writes will be submitted.
func NewAsyncDiskWriter(w io.Writer) *AsyncDiskWriter {
	a := &AsyncDiskWriter{
		w:       w,
		pending: make(chan []byte, 1),
		done:    make(chan error, 1),
		errc:    make(chan error, 1),
	}
	go a.run()
	return a
}

func (a *AsyncDiskWriter) run() {
	var firstErr error
	for buf := range a.pending {
		if firstErr == nil {
			if _, err := a.w.Write(buf); err != nil {
				firstErr = fmt.Errorf("diskio: async write: %w", err)
			}
		}
		a.done <- firstErr
	}
	a.errc <- firstErr
}

// Write harvests the result of the previous submission before accepting
// buf, so a write failure is detected and returned on the very next
// call rather than deferred until Flush. It submits buf and returns
// immediately, overlapping buf's write with the caller's next transcode;
// once a failure has been latched, it stops submitting further buffers
// and returns that failure on every subsequent call.
func (a *AsyncDiskWriter) Write(buf []byte) error {
	if a.awaiting {
		if err := <-a.done; err != nil {
			a.firstErr = err
		}
		a.awaiting = false
	}
	if a.firstErr != nil {
		return a.firstErr
	}
	a.pending <- buf
	a.awaiting = true
	return nil
}

// Flush blocks until every submitted write has completed and returns the
// first error encountered, if any.
func (a *AsyncDiskWriter) Flush() error {
	close(a.pending)
	if a.awaiting {
		if err := <-a.done; err != nil && a.firstErr == nil {
			a.firstErr = err
		}
		a.awaiting = false
	}
	if err := <-a.errc; err != nil && a.firstErr == nil {
		a.firstErr = err
	}
	return a.firstErr
}
