// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

// Device is the USB endpoint driver collaborator. The core does not
// implement or redesign the driver; it only requires these operations.
// See package device for a concrete implementation over a real USB RF
// duplicator.
type Device interface {
	// ConnectToDevice opens the device at path, or the first matching
	// device if path is empty.
	ConnectToDevice(path string) error
	// DisconnectFromDevice closes the currently open device.
	DisconnectFromDevice() error
	// SendVendorSpecificCommand issues a vendor control transfer to the
	// device at path with the given bRequest and wValue.
	SendVendorSpecificCommand(path string, request uint8, value uint16) error
}

// TransferWorker is the USB transfer loop collaborator. It is told when
// to stop and when to dump, and it calls back into the Session to
// acquire the next empty disk buffer and mark it full.
//
// Run must return once Session.UsbTransferStopRequested reports true and
// the worker has drained any in-flight transfers. It must call
// Session.SetUsbTransferFinished exactly once before returning.
type TransferWorker interface {
	Run(session *Session)
}
