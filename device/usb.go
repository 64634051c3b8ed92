// Package device provides a concrete USB driver for the RF capture
// board, implementing the capture.Device and capture.TransferWorker
// collaborator interfaces over github.com/google/gousb.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/dturner-labs/rfcapture/capture"
)

const (
	vendorID  = gousb.ID(0x1D50)
	productID = gousb.ID(0x603B)

	bulkEndpointIn = 0x81

	// configCommandRequest is the vendor-specific bRequest used to send
	// configuration commands (test mode, capture format, small transfer
	// size) to the board before a capture begins.
	configCommandRequest = 0xB6

	readTimeout = 2 * time.Second
)

// USBDevice drives a real RF capture board over USB bulk transfers.
type USBDevice struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	cfg    *gousb.Config
	intf   *gousb.Interface
	epIn   *gousb.InEndpoint
	closed bool
}

// NewUSBDevice returns an unopened USBDevice. Call ConnectToDevice to
// open it.
func NewUSBDevice() *USBDevice {
	return &USBDevice{}
}

// ConnectToDevice opens the first device matching the board's known
// vendor/product ID. path is currently unused, since the board exposes
// no meaningful distinguishing path beyond its USB address, but is kept
// to satisfy capture.Device for future multi-device support.
func (d *USBDevice) ConnectToDevice(path string) error {
	d.ctx = gousb.NewContext()

	dev, err := d.ctx.OpenDeviceWithVIDPID(vendorID, productID)
	if err != nil {
		d.ctx.Close()
		return fmt.Errorf("device: open: %w", err)
	}
	if dev == nil {
		d.ctx.Close()
		return fmt.Errorf("device: no RF capture board found (VID:%s PID:%s)", vendorID, productID)
	}
	d.dev = dev

	cfg, err := d.dev.Config(1)
	if err != nil {
		d.dev.Close()
		d.ctx.Close()
		return fmt.Errorf("device: set config: %w", err)
	}
	d.cfg = cfg

	intf, err := d.cfg.Interface(0, 0)
	if err != nil {
		d.cfg.Close()
		d.dev.Close()
		d.ctx.Close()
		return fmt.Errorf("device: claim interface: %w", err)
	}
	d.intf = intf

	epIn, err := d.intf.InEndpoint(bulkEndpointIn)
	if err != nil {
		d.intf.Close()
		d.cfg.Close()
		d.dev.Close()
		d.ctx.Close()
		return fmt.Errorf("device: open bulk IN endpoint: %w", err)
	}
	d.epIn = epIn

	return nil
}

// DisconnectFromDevice releases every USB resource opened by
// ConnectToDevice.
func (d *USBDevice) DisconnectFromDevice() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.intf != nil {
		d.intf.Close()
	}
	if d.cfg != nil {
		d.cfg.Close()
	}
	if d.dev != nil {
		d.dev.Close()
	}
	if d.ctx != nil {
		d.ctx.Close()
	}
	return nil
}

// SendVendorSpecificCommand issues a vendor control transfer to the
// board. path is unused for the same reason noted on ConnectToDevice.
func (d *USBDevice) SendVendorSpecificCommand(path string, request uint8, value uint16) error {
	if d.dev == nil {
		return fmt.Errorf("device: not connected")
	}
	_, err := d.dev.Control(
		gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice,
		request,
		value,
		0,
		nil,
	)
	if err != nil {
		return fmt.Errorf("device: vendor command 0x%02x value 0x%04x: %w", request, value, err)
	}
	return nil
}

// TransferWorker reads bulk transfers from the board into the
// supervisor's disk buffer ring until told to stop.
type TransferWorker struct {
	dev           *USBDevice
	transferBytes int
}

// NewTransferWorker returns a TransferWorker that reads transferBytes at
// a time from dev.
func NewTransferWorker(dev *USBDevice, transferBytes int) *TransferWorker {
	return &TransferWorker{dev: dev, transferBytes: transferBytes}
}

// Run implements capture.TransferWorker.
func (w *TransferWorker) Run(session *capture.Session) {
	defer session.SetUsbTransferFinished()

	for !session.UsbTransferStopRequested() {
		entry := session.NextEmptyBuffer()
		if err := w.fillOne(entry.Data); err != nil {
			entry.MarkFull(true)
			return
		}
		session.Telemetry().RecordTransferCompleted()
		entry.MarkFull(false)
	}
}

func (w *TransferWorker) fillOne(buf []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()

	filled := 0
	for filled < len(buf) {
		end := len(buf)
		if w.transferBytes > 0 && filled+w.transferBytes < end {
			end = filled + w.transferBytes
		}
		n, err := w.dev.epIn.ReadContext(ctx, buf[filled:end])
		if err != nil {
			return fmt.Errorf("device: bulk read: %w", err)
		}
		filled += n
	}
	return nil
}
