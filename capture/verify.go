// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "fmt"

// testSequenceWrap is the modulus of the ramp pattern written by the
// duplicator board's built-in test mode: the counter increments every
// RF sample and wraps from 1023 back to 0, except that real hardware has
// been observed to wrap early; Check accepts a return to 0 once the
// counter has reached 1020 or more (expected value at least
// testSequenceEarlyWrap) rather than reporting it as a failure, per
// spec.md Design Note #2.
const testSequenceWrap = 1024
const testSequenceEarlyWrap = 1021

// SequenceVerifier checks the synthetic ramp pattern produced by the
// duplicator's test mode against the expected monotonic counter,
// tolerating the early-wrap quirk in the real firmware.
type SequenceVerifier struct {
	expected uint16
	started  bool
}

// NewSequenceVerifier creates a verifier with no established expectation
// yet; the first call to Check seeds it from the observed value.
func NewSequenceVerifier() *SequenceVerifier {
	return &SequenceVerifier{}
}

// Check compares one scrubbed RF sample against the expected ramp value.
// It returns an error only on a genuine mismatch; an early wrap at 1021
// is accepted silently and advances the internal expectation to match.
func (v *SequenceVerifier) Check(sample uint16) error {
	if !v.started {
		v.expected = (sample + 1) % testSequenceWrap
		v.started = true
		return nil
	}

	if sample != v.expected {
		if v.expected >= testSequenceEarlyWrap && sample == 0 {
			v.expected = 1
			return nil
		}
		return fmt.Errorf("verify: test sequence mismatch: want %d, got %d", v.expected, sample)
	}

	v.expected++
	if v.expected >= testSequenceWrap {
		v.expected = 0
	}
	return nil
}

// CheckAll runs Check over every sample in order, stopping at and
// returning the first mismatch encountered.
func (v *SequenceVerifier) CheckAll(samples []uint16) error {
	for _, s := range samples {
		if err := v.Check(s); err != nil {
			return err
		}
	}
	return nil
}
