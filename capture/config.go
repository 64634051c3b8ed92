// Copyright 2021 Mark Siner. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package capture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a capture session. The zero value is
// not valid; use DefaultConfig or LoadConfigFile and then apply
// ConfigFn overrides via NewSession.
type Config struct {
	Format                CaptureFormat `yaml:"format"`
	UseSmallUsbTransfers  bool          `yaml:"useSmallUsbTransfers"`
	UsbTransferQueueBytes uint64        `yaml:"usbTransferQueueBytes"`
	DiskBufferQueueBytes  uint64        `yaml:"diskBufferQueueBytes"`
	UseAsyncDiskWriter    bool          `yaml:"useAsyncDiskWriter"`
	TestMode              bool          `yaml:"testMode"`
	RecheckEachFrame      bool          `yaml:"recheckEachFrame"`
	CaptureAudio          bool          `yaml:"captureAudio"`
	LockMemory            bool          `yaml:"lockMemory"`
	BoostPriority         bool          `yaml:"boostPriority"`
	RealtimePriority      int           `yaml:"realtimePriority"`
	DevicePath            string        `yaml:"devicePath"`
}

// DefaultConfig returns a Config matching the duplicator host
// application's out-of-box settings.
func DefaultConfig() Config {
	return Config{
		Format:                Signed16Bit,
		UseSmallUsbTransfers:  false,
		UsbTransferQueueBytes: 4 * 1024 * 1024,
		DiskBufferQueueBytes:  256 * 1024 * 1024,
		UseAsyncDiskWriter:    true,
		TestMode:              false,
		RecheckEachFrame:      false,
		CaptureAudio:          true,
		LockMemory:            true,
		BoostPriority:         true,
		RealtimePriority:      1,
	}
}

// LoadConfigFile reads a YAML capture profile from path, starting from
// DefaultConfig so an abbreviated profile only needs to name the
// settings it overrides.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
