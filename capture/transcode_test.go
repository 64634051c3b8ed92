// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"testing"

	"pgregory.net/rapid"
)

func TestTranscodedSize(t *testing.T) {
	cases := []struct {
		raw    int
		format CaptureFormat
		want   int
	}{
		{16, Signed16Bit, 16},
		{8, Unsigned10Bit, 5},
		{32, Unsigned10Bit4to1Decimation, 5},
	}
	for _, c := range cases {
		got, err := TranscodedSize(c.raw, c.format)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != c.want {
			t.Fatalf("TranscodedSize(%d, %v) = %d, want %d", c.raw, c.format, got, c.want)
		}
	}

	if _, err := TranscodedSize(16, CaptureFormat(99)); err == nil {
		t.Fatal("unexpected success on unknown format")
	}
}

func TestTranscodeSigned16BitZeroLowBits(t *testing.T) {
	raw := make([]byte, 16)
	for i := 0; i < 8; i++ {
		raw[2*i] = byte(i * 37)
		raw[2*i+1] = byte(i)
	}
	out := make([]byte, len(raw))
	if err := TranscodeRawSampleData(raw, Signed16Bit, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i+1 < len(out); i += 2 {
		v := uint16(out[i]) | uint16(out[i+1])<<8
		if v&0x3F != 0 {
			t.Fatalf("sample %d: low 6 bits not zero: got 0x%04x", i/2, v)
		}
	}
}

func TestPackUnpackUnsigned10x4RoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		w0 := uint16(rapid.IntRange(0, 1023).Draw(rt, "w0"))
		w1 := uint16(rapid.IntRange(0, 1023).Draw(rt, "w1"))
		w2 := uint16(rapid.IntRange(0, 1023).Draw(rt, "w2"))
		w3 := uint16(rapid.IntRange(0, 1023).Draw(rt, "w3"))

		dst := make([]byte, 5)
		packUnsigned10x4(dst, w0, w1, w2, w3)
		gw0, gw1, gw2, gw3 := UnpackUnsigned10x4(dst)

		if gw0 != w0 || gw1 != w1 || gw2 != w2 || gw3 != w3 {
			rt.Fatalf("round trip mismatch: got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
				gw0, gw1, gw2, gw3, w0, w1, w2, w3)
		}
	})
}

func TestTranscodeUnsigned10Bit4to1SamplesSelected(t *testing.T) {
	raw := make([]byte, 32)
	for i := 0; i < 16; i++ {
		var v uint16
		if i%2 == 0 {
			v = uint16(i * 60 % 1024)
		} else {
			v = 0x3FF // should be skipped by decimation
		}
		raw[2*i] = byte(v)
		raw[2*i+1] = byte(v >> 8)
	}

	out := make([]byte, 5)
	if err := TranscodeRawSampleData(raw, Unsigned10Bit4to1Decimation, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w0, w1, w2, w3 := UnpackUnsigned10x4(out)
	wantW0 := uint16(0*60) % 1024
	wantW1 := uint16(2*60) % 1024
	wantW2 := uint16(4*60) % 1024
	wantW3 := uint16(6*60) % 1024
	if w0 != wantW0 || w1 != wantW1 || w2 != wantW2 || w3 != wantW3 {
		t.Fatalf("decimated samples mismatch: got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
			w0, w1, w2, w3, wantW0, wantW1, wantW2, wantW3)
	}
}
