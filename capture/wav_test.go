// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "testing"

func TestNewAudioWavHeader(t *testing.T) {
	h, err := NewAudioWavHeader(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.BlockAlign() != 4 {
		t.Fatalf("16-bit block align = %d, want 4", h.BlockAlign())
	}
	if h.Fmt.SampleRate != audioSampleRateHz {
		t.Fatalf("sample rate = %d, want %d", h.Fmt.SampleRate, audioSampleRateHz)
	}

	h24, err := NewAudioWavHeader(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h24.BlockAlign() != 6 {
		t.Fatalf("24-bit block align = %d, want 6", h24.BlockAlign())
	}

	if _, err := NewAudioWavHeader(4); err == nil {
		t.Fatal("unexpected success with unsupported bytes per sample")
	}
}

func TestWavHeaderUpdate(t *testing.T) {
	h, err := NewAudioWavHeader(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.Update(144)
	if h.Riff.ChunkSize != 136 {
		t.Fatalf("riff chunk size = %d, want 136", h.Riff.ChunkSize)
	}
	if h.Data.ChunkSize != 100 {
		t.Fatalf("data chunk size = %d, want 100", h.Data.ChunkSize)
	}
}

func TestWavHeaderMarshalLength(t *testing.T) {
	h, err := NewAudioWavHeader(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := h.marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b) != 44 {
		t.Fatalf("marshaled header length = %d, want 44", len(b))
	}
	if string(b[:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("unexpected header magic: %q", b[:12])
	}
}
