// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

// CaptureFormat selects the on-disk packing applied to the scrubbed RF
// sample stream.
type CaptureFormat int

const (
	// Signed16Bit stores each 10-bit RF sample as a shifted 16-bit signed
	// integer, preserving frequency content but not overall amplitude or
	// the low 6 bits of precision.
	Signed16Bit CaptureFormat = iota
	// Unsigned10Bit bit-packs four 10-bit samples into 5 bytes.
	Unsigned10Bit
	// Unsigned10Bit4to1Decimation applies the Unsigned10Bit packing to
	// samples 0, 2, 4 and 6 of each 16-sample group.
	Unsigned10Bit4to1Decimation
)

// SequenceState tracks the lifecycle of the embedded audio multiplex
// lock within a single capture session.
type SequenceState int

const (
	// SequenceDisabled means no audio multiplex is present in the
	// stream (legacy device firmware).
	SequenceDisabled SequenceState = iota
	// SequenceSync means the sync pattern has been found but the first
	// frame after it is not yet complete in the samples seen so far. The
	// search for the pattern itself runs while the state is still
	// SequenceDisabled.
	SequenceSync
	// SequenceRunning means the demultiplexer is locked onto the frame
	// boundary and is extracting audio.
	SequenceRunning
	// SequenceFailed means sync was lost after lock. This is terminal
	// for the capture session; no resync is attempted.
	SequenceFailed
)

// TransferResult classifies the outcome, or in-progress state, of a
// capture session. The first non-Running, non-Success result
// encountered during a session latches and is never overwritten.
type TransferResult int

const (
	// Running is the state of a capture session that has not yet
	// finished.
	Running TransferResult = iota
	// Success means every worker exited cleanly with no error latched.
	Success
	// ConnectionFailure means the device could not be opened at Start.
	ConnectionFailure
	// FileCreationError means one of the three output files could not
	// be created, or its header could not be written.
	FileCreationError
	// FileWriteError means a synchronous or asynchronous disk write
	// returned short or with an error.
	FileWriteError
	// SequenceMismatch means the audio sync pattern was lost after
	// initial lock.
	SequenceMismatch
	// VerificationError means test-mode ramp verification detected a
	// value other than the expected next ramp value or wrap point.
	VerificationError
	// ProgramError means an internal invariant was violated: an
	// unrecognized CaptureFormat, or a worker exiting without ever
	// reporting a result.
	ProgramError
)

// IsTerminal reports whether r represents a finished session, whether
// successful or not.
func (r TransferResult) IsTerminal() bool {
	return r != Running
}

// IsError reports whether r represents a finished session that did not
// succeed.
func (r TransferResult) IsError() bool {
	return r != Running && r != Success
}

func (f CaptureFormat) String() string {
	switch f {
	case Signed16Bit:
		return "Signed16Bit"
	case Unsigned10Bit:
		return "Unsigned10Bit"
	case Unsigned10Bit4to1Decimation:
		return "Unsigned10Bit4to1Decimation"
	default:
		return "Unknown"
	}
}

func (s SequenceState) String() string {
	switch s {
	case SequenceDisabled:
		return "Disabled"
	case SequenceSync:
		return "Sync"
	case SequenceRunning:
		return "Running"
	case SequenceFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (r TransferResult) String() string {
	switch r {
	case Running:
		return "Running"
	case Success:
		return "Success"
	case ConnectionFailure:
		return "ConnectionFailure"
	case FileCreationError:
		return "FileCreationError"
	case FileWriteError:
		return "FileWriteError"
	case SequenceMismatch:
		return "SequenceMismatch"
	case VerificationError:
		return "VerificationError"
	case ProgramError:
		return "ProgramError"
	default:
		return "Unknown"
	}
}
