// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command rfcapture connects to an RF capture board, streams its raw RF
// samples to disk, and optionally demultiplexes the two audio channels
// embedded in the stream to separate WAV files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	pflag "github.com/spf13/pflag"

	"github.com/dturner-labs/rfcapture/capture"
	"github.com/dturner-labs/rfcapture/device"
	"github.com/dturner-labs/rfcapture/rflog"
)

func rfcapture() error {
	flags := pflag.NewFlagSet("rfcapture", pflag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "Usage: rfcapture [FLAGS] <output-prefix>")
		flags.PrintDefaults()
	}

	profileOpt := flags.String("profile", "", "Load a YAML capture profile instead of using built-in defaults.")
	formatOpt := flags.String("format", "signed16", "RF sample format: signed16, unsigned10, unsigned10-decimated.")
	testModeOpt := flags.Bool("test", false, "Verify the board's synthetic ramp test pattern instead of real RF data.")
	noAudioOpt := flags.Bool("no-audio", false, "Disable audio channel demultiplexing.")
	syncOpt := flags.Bool("sync-io", false, "Use synchronous disk I/O instead of the overlapped writer.")
	smallUsbOpt := flags.Bool("small-transfers", false, "Use 16 KiB USB transfers instead of 64 KiB.")
	levelOpt := flags.String("log-level", "info", "Log level: debug, info, warn, error.")
	devicePathOpt := flags.String("device", "", "USB device path (empty selects the first board found).")

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if flags.NArg() != 1 {
		flags.Usage()
		return errors.New("missing output file prefix")
	}
	prefix := flags.Arg(0)

	var cfg capture.Config
	var err error
	if *profileOpt != "" {
		cfg, err = capture.LoadConfigFile(*profileOpt)
		if err != nil {
			return err
		}
	} else {
		cfg = capture.DefaultConfig()
	}

	format, err := parseFormat(*formatOpt)
	if err != nil {
		return err
	}
	cfg.Format = format
	cfg.TestMode = *testModeOpt
	cfg.CaptureAudio = !*noAudioOpt
	cfg.UseAsyncDiskWriter = !*syncOpt
	cfg.UseSmallUsbTransfers = *smallUsbOpt
	cfg.DevicePath = *devicePathOpt

	log := rflog.New(*levelOpt)

	dev := device.NewUSBDevice()
	transferBytes := 64 * 1024
	if cfg.UseSmallUsbTransfers {
		transferBytes = 16 * 1024
	}
	worker := device.NewTransferWorker(dev, transferBytes)

	sess := capture.NewSession(
		capture.WithConfig(cfg),
		capture.WithLogger(log),
		capture.WithDevice(dev),
		capture.WithTransferWorker(worker),
		capture.WithOutputPaths(prefix+".lds", prefix+"-audio16.wav", prefix+"-audio24.wav"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		if _, ok := <-sigc; ok {
			log.Info("interrupt received, stopping capture")
			cancel()
		}
	}()

	done := make(chan struct{})
	go reportTelemetry(ctx, log, sess.Telemetry(), done)

	runErr := sess.Run(ctx)
	close(done)

	return runErr
}

func reportTelemetry(ctx context.Context, log *rflog.Logger, t *capture.Telemetry, done chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			min, max := t.RFRange()
			log.Info(
				"buffers={0} bytes={1} rfRange=[{2},{3}]",
				t.BuffersProcessed(), t.BytesWritten(), min, max,
			)
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func parseFormat(s string) (capture.CaptureFormat, error) {
	switch s {
	case "signed16":
		return capture.Signed16Bit, nil
	case "unsigned10":
		return capture.Unsigned10Bit, nil
	case "unsigned10-decimated":
		return capture.Unsigned10Bit4to1Decimation, nil
	default:
		return 0, fmt.Errorf("rfcapture: unknown format %q", s)
	}
}

func main() {
	if err := rfcapture(); err != nil {
		fmt.Fprintln(os.Stderr, "rfcapture:", err)
		os.Exit(1)
	}
}
