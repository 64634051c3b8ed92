// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

// syncPatternHalf is one 48-bit half of the 96-bit frame sync marker,
// carried 6 bits per wire sample across the first 16 samples of a frame.
const syncPatternHalf uint64 = 0xDEADBEEFCAFE

// syncSearchTailSamples bounds the sync search so it never reads past
// the end of a buffer while looking for a full frame.
const syncSearchTailSamples = frameSampleCount

// DemuxMetrics accumulates the per-buffer statistics a caller needs to
// update telemetry: RF sample min/max, clipped sample counts, and
// counts of audio frames decoded.
type DemuxMetrics struct {
	RFMin, RFMax     uint16
	ClipMin, ClipMax uint32
	FramesDecoded    uint64
	SamplesScrubbed  uint64
}

// SyncDetector tracks frame synchronization state across successive
// buffers of wire samples. A single SyncDetector must not be shared
// between concurrent callers; the processing worker owns exactly one.
type SyncDetector struct {
	state            SequenceState
	carry            []uint16 // unprocessed samples left over from the previous buffer
	expectSeq        uint16
	recheckEachFrame bool
}

// NewSyncDetector creates a detector in the unsynchronized state.
// recheckEachFrame enables the optional, normally-disabled per-frame
// sequence recheck at sample 14, matching spec.md Design Note #1.
func NewSyncDetector(recheckEachFrame bool) *SyncDetector {
	return &SyncDetector{
		state:            SequenceDisabled,
		recheckEachFrame: recheckEachFrame,
	}
}

// State returns the detector's current synchronization state.
func (d *SyncDetector) State() SequenceState {
	return d.state
}

// topSixBits extracts the 6 sync bits carried by one wire sample: the
// upper 6 bits of the sample's high byte.
func topSixBits(word uint16) uint64 {
	return uint64((word >> 10) & 0x3F)
}

// matchSyncAt reports whether 16 consecutive samples starting at
// sampleIndex carry the 96-bit sync marker.
func matchSyncAt(samples []uint16, sampleIndex int) bool {
	if sampleIndex+16 > len(samples) {
		return false
	}
	var first, second uint64
	for i := 0; i < 8; i++ {
		first = first<<6 | topSixBits(samples[sampleIndex+i])
	}
	for i := 8; i < 16; i++ {
		second = second<<6 | topSixBits(samples[sampleIndex+i])
	}
	return first == syncPatternHalf && second == syncPatternHalf
}

// wordsFromBytes reinterprets a raw byte buffer as little-endian 16-bit
// wire samples.
func wordsFromBytes(raw []byte) []uint16 {
	n := len(raw) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return out
}

// FrameResult carries the decoded products of one 512-sample frame.
type FrameResult struct {
	RFWords        []uint16 // scrubbed 10-bit RF samples, 512 per frame
	ADC128Left     int16
	ADC128Right    int16
	PCM1802Left    int32
	PCM1802Right   int32
	SequenceNumber uint16
}

// Process scans raw, a buffer of wire samples, for frame boundaries,
// decoding every complete frame found. It returns the decoded frames in
// order, updated metrics, and carries any partial-frame remainder
// forward to be prepended to the next call's buffer.
//
// Once locked, Process does not re-run the full 96-bit sync search on
// every frame; it simply advances by one frame's worth of samples and
// decodes. If recheckEachFrame is set, it additionally verifies the
// sequence number at sample 14 of the new frame and moves to
// SequenceFailed on mismatch, after which no further frames are decoded
// (the RF scrub still runs on every buffer), per spec.md Design Note #1
// (disabled by default: the check is redundant with sample 30 and was
// found to intermittently false-positive on real hardware).
func (d *SyncDetector) Process(raw []byte) ([]FrameResult, DemuxMetrics) {
	incoming := wordsFromBytes(raw)
	samples := incoming
	if len(d.carry) > 0 {
		samples = append(append([]uint16(nil), d.carry...), incoming...)
		d.carry = nil
	}
	var results []FrameResult
	var metrics DemuxMetrics

	// RF scrub runs over every sample of the current buffer regardless of
	// frame lock state, and is written back into raw in place: raw is the
	// same backing buffer the caller transcodes to disk immediately after
	// Process returns, so by the time it does, raw no longer carries any
	// multiplexed sync/audio/sequence bits. samples (used below for frame
	// decode) is left untouched, since decode still needs those bits.
	scrubBufferAndUpdateMetrics(raw, incoming, &metrics)

	pos := 0

	for {
		if d.state == SequenceFailed {
			// Lock is never reacquired once lost.
			return results, metrics
		}
		if d.state == SequenceDisabled {
			locked := false
			limit := len(samples) - syncSearchTailSamples
			for s := pos; s <= limit; s++ {
				if matchSyncAt(samples, s) {
					pos = s
					d.state = SequenceSync
					locked = true
					break
				}
			}
			if !locked {
				return results, metrics
			}
		}

		if pos+frameSampleCount > len(samples) {
			// Carry the partial-frame remainder forward to be prepended
			// to the next buffer's samples.
			d.carry = append([]uint16(nil), samples[pos:]...)
			break
		}

		frame := samples[pos : pos+frameSampleCount]
		seq := uint16(topSixBits(frame[offsetSequenceHigh]))

		if d.recheckEachFrame && d.state == SequenceRunning {
			recheckSeq := uint16(topSixBits(frame[offsetSequenceLow]))
			if recheckSeq != d.expectSeq {
				d.state = SequenceFailed
				break
			}
		}

		result := d.decodeFrame(frame)
		result.SequenceNumber = seq
		results = append(results, result)

		metrics.FramesDecoded++

		d.expectSeq = seq + 1
		d.state = SequenceRunning
		pos += frameSampleCount
	}

	return results, metrics
}

// decodeFrame extracts the stereo audio pairs and RF payload from one
// complete 512-sample frame.
func (d *SyncDetector) decodeFrame(frame []uint16) FrameResult {
	l16, r16 := extractADC128StereoWords(frame)
	l24, r24 := extractPCM1802StereoWords(frame)

	rf := make([]uint16, len(frame))
	for i, w := range frame {
		rf[i] = scrubRFSample(w)
	}

	return FrameResult{
		RFWords:      rf,
		ADC128Left:   l16,
		ADC128Right:  r16,
		PCM1802Left:  l24,
		PCM1802Right: r24,
	}
}

// extractADC128StereoWords pulls one stereo sample pair from the 12-bit
// ADC128 channel pair at the fixed frame offset. Per wire format, a
// 12-bit reading is carried as the top 6 bits of two consecutive
// samples: left = top6(s16)<<6 | top6(s17), right = top6(s18)<<6 |
// top6(s19). The unsigned 0-4095 reading is centered at 2048, converted
// to signed, and scaled up by 16 to occupy the full 16-bit PCM range.
func extractADC128StereoWords(frame []uint16) (left, right int16) {
	const center = 2048
	l := int32(topSixBits(frame[offsetADC128Left])<<6|topSixBits(frame[offsetADC128Left+1])) - center
	r := int32(topSixBits(frame[offsetADC128Right])<<6|topSixBits(frame[offsetADC128Right+1])) - center
	return int16(l * 16), int16(r * 16)
}

// extractPCM1802StereoWords pulls one stereo sample pair from the 24-bit
// PCM1802 channel pair at the fixed frame offset. Each channel is carried
// as the top 6 bits of four consecutive samples, packed big-endian
// within the frame: top6(s0)<<18 | top6(s1)<<12 | top6(s2)<<6 |
// top6(s3). The result is converted from offset-binary to signed by
// subtracting the midpoint and clamped to the valid 24-bit signed range.
// The clamp is defensive: a 24-bit value minus the midpoint is always
// already within that range.
func extractPCM1802StereoWords(frame []uint16) (left, right int32) {
	const (
		midpoint = 0x800000
		minVal   = -0x800000
		maxVal   = 0x7FFFFF
	)
	lRaw := topSixBits(frame[offsetPCM1802Left])<<18 |
		topSixBits(frame[offsetPCM1802Left+1])<<12 |
		topSixBits(frame[offsetPCM1802Left+2])<<6 |
		topSixBits(frame[offsetPCM1802Left+3])
	rRaw := topSixBits(frame[offsetPCM1802Right])<<18 |
		topSixBits(frame[offsetPCM1802Right+1])<<12 |
		topSixBits(frame[offsetPCM1802Right+2])<<6 |
		topSixBits(frame[offsetPCM1802Right+3])
	l := int64(lRaw) - midpoint
	r := int64(rRaw) - midpoint
	return clamp24(l, minVal, maxVal), clamp24(r, minVal, maxVal)
}

// scrubBufferAndUpdateMetrics masks every sample of incoming down to its
// genuine 10-bit RF reading and writes the scrubbed value back into raw
// in place (raw is incoming's original little-endian byte backing), so
// the caller transcodes and writes to disk a buffer free of multiplexed
// sync/audio/sequence bits. It runs unconditionally, independent of
// frame lock state, matching the board's own always-on RF scrub.
func scrubBufferAndUpdateMetrics(raw []byte, incoming []uint16, m *DemuxMetrics) {
	if len(incoming) == 0 {
		return
	}
	for i, w := range incoming {
		v := scrubRFSample(w)
		raw[2*i] = byte(v)
		raw[2*i+1] = byte(v >> 8)

		if i == 0 {
			m.RFMin = v
			m.RFMax = v
		} else {
			if v < m.RFMin {
				m.RFMin = v
			}
			if v > m.RFMax {
				m.RFMax = v
			}
		}
		if v == 0 {
			m.ClipMin++
		}
		if v == 0x03FF {
			m.ClipMax++
		}
	}
	m.SamplesScrubbed = uint64(len(incoming))
}
