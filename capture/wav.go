// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// WavRiffChunk is the RIFF chunk of a canonical PCM WAV header.
type WavRiffChunk struct {
	ChunkID   [4]byte
	ChunkSize uint32
	Format    [4]byte
}

// WavFmtChunk is the fmt chunk of a canonical PCM WAV header.
type WavFmtChunk struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// WavDataChunk is the data chunk header of a canonical PCM WAV file;
// the sample payload follows immediately after it on disk.
type WavDataChunk struct {
	ChunkID   [4]byte
	ChunkSize uint32
}

// WavHeader is the full 44-byte canonical PCM WAV header written at the
// start of both audio output files.
type WavHeader struct {
	Riff WavRiffChunk
	Fmt  WavFmtChunk
	Data WavDataChunk
}

// audioSampleRateHz is the fixed sample rate of both audio streams
// multiplexed into the RF stream: one frame (512 wire samples) per ADC
// sample period, stereo pair per frame.
const audioSampleRateHz = 78125

// NewAudioWavHeader builds a stereo PCM WAV header for bytesPerSample
// (2 for the 16-bit stream, 3 for the 24-bit stream), with zero frames;
// Update patches in the real size once the file is finalized.
func NewAudioWavHeader(bytesPerSample uint16) (*WavHeader, error) {
	switch bytesPerSample {
	case 2, 3:
		// ok
	default:
		return nil, fmt.Errorf("wav: unsupported bytes per sample %d, want 2 or 3", bytesPerSample)
	}

	const numChannels = 2
	h := &WavHeader{}
	h.Riff.ChunkID = [4]byte{'R', 'I', 'F', 'F'}
	h.Riff.Format = [4]byte{'W', 'A', 'V', 'E'}
	h.Riff.ChunkSize = 36 // patched by Update

	h.Fmt.ChunkID = [4]byte{'f', 'm', 't', ' '}
	h.Fmt.ChunkSize = 16
	h.Fmt.AudioFormat = 1 // PCM
	h.Fmt.NumChannels = numChannels
	h.Fmt.SampleRate = audioSampleRateHz
	h.Fmt.BlockAlign = numChannels * bytesPerSample
	h.Fmt.ByteRate = audioSampleRateHz * uint32(h.Fmt.BlockAlign)
	h.Fmt.BitsPerSample = bytesPerSample * 8

	h.Data.ChunkID = [4]byte{'d', 'a', 't', 'a'}
	h.Data.ChunkSize = 0

	return h, nil
}

// Update recomputes the RIFF and data chunk sizes from the actual file
// size in bytes (including the 44-byte header itself).
func (h *WavHeader) Update(totalFileSizeInBytes uint32) {
	h.Riff.ChunkSize = totalFileSizeInBytes - 8
	h.Data.ChunkSize = totalFileSizeInBytes - 44
}

// BlockAlign returns the configured block alignment in bytes (4 for the
// 16-bit stream, 6 for the 24-bit stream).
func (h *WavHeader) BlockAlign() uint16 {
	return h.Fmt.BlockAlign
}

// marshal encodes the 44-byte header in its on-disk little-endian form.
func (h *WavHeader) marshal() ([]byte, error) {
	buf := &bytes.Buffer{}
	for _, v := range []interface{}{h.Riff, h.Fmt, h.Data} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, fmt.Errorf("wav: encode header: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// writeWavHeaderPlaceholder writes hdr to the start of f, used right
// after file creation before any sample data is known.
func writeWavHeaderPlaceholder(f *os.File, hdr *WavHeader) error {
	return rewriteWavHeader(f, hdr)
}

// rewriteWavHeader seeks to the start of f and rewrites the header,
// used both at creation time and again at finalization once the real
// file size is known.
func rewriteWavHeader(f *os.File, hdr *WavHeader) error {
	data, err := hdr.marshal()
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(data, 0); err != nil {
		return fmt.Errorf("wav: write header to %s: %w", f.Name(), err)
	}
	return nil
}
