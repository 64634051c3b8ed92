// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "testing"

// putTopSix writes the low 6 bits of v into the top 6 bits of samples[i],
// matching the wire encoding every multiplexed channel uses.
func putTopSix(samples []uint16, i int, v uint32) {
	samples[i] = uint16(v&0x3F) << 10
}

// buildSyncFrame returns frameSampleCount wire samples with a valid
// 96-bit sync marker in the first 16 samples and the given ADC128 and
// PCM1802 readings packed 6 bits per sample across their fixed offsets,
// matching how the board actually multiplexes them onto the top 6 bits
// of each wire word. adcLeft/adcRight are the intended 12-bit readings
// (0-4095); pcmLeft/pcmRight are the intended 24-bit readings. Every
// other sample's low 10 bits (the RF payload) is zero.
func buildSyncFrame(adcLeft, adcRight uint16, pcmLeft, pcmRight uint32, seq uint16) []uint16 {
	samples := make([]uint16, frameSampleCount)

	for i := 0; i < 8; i++ {
		chunk := uint16(syncPatternHalf>>(42-6*uint(i))) & 0x3F
		samples[i] = chunk << 10
	}
	for i := 8; i < 16; i++ {
		chunk := uint16(syncPatternHalf>>(42-6*uint(i-8))) & 0x3F
		samples[i] = chunk << 10
	}

	putTopSix(samples, offsetADC128Left, uint32(adcLeft)>>6)
	putTopSix(samples, offsetADC128Left+1, uint32(adcLeft))
	putTopSix(samples, offsetADC128Right, uint32(adcRight)>>6)
	putTopSix(samples, offsetADC128Right+1, uint32(adcRight))

	putTopSix(samples, offsetPCM1802Left, pcmLeft>>18)
	putTopSix(samples, offsetPCM1802Left+1, pcmLeft>>12)
	putTopSix(samples, offsetPCM1802Left+2, pcmLeft>>6)
	putTopSix(samples, offsetPCM1802Left+3, pcmLeft)

	putTopSix(samples, offsetPCM1802Right, pcmRight>>18)
	putTopSix(samples, offsetPCM1802Right+1, pcmRight>>12)
	putTopSix(samples, offsetPCM1802Right+2, pcmRight>>6)
	putTopSix(samples, offsetPCM1802Right+3, pcmRight)

	putTopSix(samples, offsetSequenceHigh, uint32(seq))

	return samples
}

func wordsToBytes(samples []uint16) []byte {
	out := make([]byte, len(samples)*2)
	for i, w := range samples {
		out[2*i] = byte(w)
		out[2*i+1] = byte(w >> 8)
	}
	return out
}

func TestSyncDetectorLocksAndDecodesOneFrame(t *testing.T) {
	samples := buildSyncFrame(2048, 2048, 0x800000, 0x800000, 7)
	raw := wordsToBytes(samples)

	d := NewSyncDetector(false)
	frames, metrics := d.Process(raw)

	if d.State() != SequenceRunning {
		t.Fatalf("state = %v, want SequenceRunning", d.State())
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if metrics.FramesDecoded != 1 {
		t.Fatalf("FramesDecoded = %d, want 1", metrics.FramesDecoded)
	}

	f := frames[0]
	if f.ADC128Left != 0 || f.ADC128Right != 0 {
		t.Fatalf("ADC128 centered reading should decode to 0: got (%d,%d)", f.ADC128Left, f.ADC128Right)
	}
	if f.PCM1802Left != 0 || f.PCM1802Right != 0 {
		t.Fatalf("PCM1802 centered reading should decode to 0: got (%d,%d)", f.PCM1802Left, f.PCM1802Right)
	}
	if f.SequenceNumber != 7 {
		t.Fatalf("SequenceNumber = %d, want 7", f.SequenceNumber)
	}
}

func TestSyncDetectorNoFalseLockOnRandomData(t *testing.T) {
	raw := make([]byte, frameSampleCount*2*2)
	for i := range raw {
		raw[i] = byte(i * 7)
	}
	d := NewSyncDetector(false)
	frames, _ := d.Process(raw)
	if len(frames) != 0 {
		t.Fatalf("got %d frames from non-sync data, want 0", len(frames))
	}
	if d.State() != SequenceDisabled {
		t.Fatalf("state = %v, want SequenceDisabled", d.State())
	}
}

func TestProcessScrubsRawBufferInPlace(t *testing.T) {
	samples := buildSyncFrame(2048, 2048, 0x800000, 0x800000, 7)
	raw := wordsToBytes(samples)

	d := NewSyncDetector(false)
	d.Process(raw)

	// Every sample in raw, including the ones that carried sync, audio,
	// and sequence bits before Process ran, must come out with its top 6
	// bits cleared: the caller transcodes this same buffer to disk next,
	// and the transcoded output must never carry multiplexed bits.
	words := wordsFromBytes(raw)
	for i, w := range words {
		if w>>10 != 0 {
			t.Fatalf("sample %d = 0x%04x, top 6 bits not scrubbed", i, w)
		}
	}
}

func TestSyncDetectorTracksAcrossBuffers(t *testing.T) {
	frame1 := buildSyncFrame(2048, 2048, 0x800000, 0x800000, 1)
	frame2 := buildSyncFrame(2048, 2048, 0x800000, 0x800000, 2)

	raw := append(wordsToBytes(frame1), wordsToBytes(frame2)...)

	d := NewSyncDetector(false)
	// Split the stream mid-frame so frame 2 straddles the two buffers.
	split := (frameSampleCount + 188) * 2
	frames, _ := d.Process(raw[:split])
	more, _ := d.Process(raw[split:])
	frames = append(frames, more...)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].SequenceNumber != 1 || frames[1].SequenceNumber != 2 {
		t.Fatalf("unexpected sequence numbers: %d, %d", frames[0].SequenceNumber, frames[1].SequenceNumber)
	}
}
