// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import "fmt"

// CaptureError wraps a terminal TransferResult with the underlying cause,
// if any, that produced it. It is the only error type the supervisor
// surfaces for a failed capture; individual worker errors are classified
// into a TransferResult before being latched.
type CaptureError struct {
	Result TransferResult
	Cause  error
}

func (e *CaptureError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("capture: %s: %v", e.Result, e.Cause)
	}
	return fmt.Sprintf("capture: %s", e.Result)
}

func (e *CaptureError) Unwrap() error {
	return e.Cause
}

// newCaptureError builds a CaptureError, returning nil if result is
// Running or Success, since neither represents a failure.
func newCaptureError(result TransferResult, cause error) error {
	if !result.IsError() {
		return nil
	}
	return &CaptureError{Result: result, Cause: cause}
}
