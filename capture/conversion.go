// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "fmt"

// ConversionBufferRing is a small fixed-count ring of transcode output
// buffers. The synchronous disk I/O path uses exactly one buffer,
// because the write blocks before the next buffer is prepared. The
// asynchronous path requires at least two, so that a write still in
// flight for the previous slot does not alias the buffer being filled
// for the current slot.
type ConversionBufferRing struct {
	buffers [][]byte
}

// NewConversionBufferRing allocates count buffers, each sized to hold
// one disk buffer's worth of data after transcoding to format. It
// returns an error if count does not satisfy the per-path minimum
// spec.md Design Note #3 requires: exactly 1 for async==false, at least
// 2 for async==true.
func NewConversionBufferRing(count int, diskBufferSize int, format CaptureFormat, async bool) (*ConversionBufferRing, error) {
	switch {
	case !async && count != 1:
		return nil, fmt.Errorf("conversion buffer count must be exactly 1 for synchronous disk I/O, got %d", count)
	case async && count < 2:
		return nil, fmt.Errorf("conversion buffer count must be at least 2 for asynchronous disk I/O, got %d", count)
	}

	outSize, err := TranscodedSize(diskBufferSize, format)
	if err != nil {
		return nil, err
	}

	r := &ConversionBufferRing{
		buffers: make([][]byte, count),
	}
	for i := range r.buffers {
		r.buffers[i] = make([]byte, outSize)
	}
	return r, nil
}

// Count returns the number of buffers in the ring.
func (r *ConversionBufferRing) Count() int {
	return len(r.buffers)
}

// Buffer returns the buffer at index i, modulo the ring size.
func (r *ConversionBufferRing) Buffer(i int) []byte {
	return r.buffers[i%len(r.buffers)]
}
