// internal/config/validate.go
package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	// ------------------------------------------------------------
	// SPI TABLE VALIDATION
	// ------------------------------------------------------------

	spi := cfg.MCAL.SPI

	switch spi.Transport {
	case "", "loopback", "spidev":
	default:
		return fmt.Errorf("spi: unknown transport %q", spi.Transport)
	}

	if len(spi.Channels) == 0 {
		return fmt.Errorf("spi: at least one channel required")
	}

	for i, ch := range spi.Channels {
		if int(ch.ID) != i {
			return fmt.Errorf(
				"spi: channel ids must be dense from 0, got %d at position %d",
				ch.ID, i,
			)
		}
		if ch.Mode < 0 || ch.Mode > 3 {
			return fmt.Errorf("spi: channel %d: mode %d out of range", ch.ID, ch.Mode)
		}
		if spi.Transport == "spidev" && ch.Device == "" {
			return fmt.Errorf("spi: channel %d: device required for spidev transport", ch.ID)
		}
	}

	for ji, j := range spi.Jobs {
		if int(j.Channel) >= len(spi.Channels) {
			return fmt.Errorf(
				"spi: job %d references unknown channel %d",
				ji, j.Channel,
			)
		}
		if len(j.Tx) == 0 {
			return fmt.Errorf("spi: job %d has no data", ji)
		}
	}

	for si, s := range spi.Sequences {
		if len(s.Jobs) == 0 {
			return fmt.Errorf("spi: sequence %d has no jobs", si)
		}
		if len(s.Jobs) > len(spi.Jobs) {
			return fmt.Errorf(
				"spi: sequence %d lists %d jobs, only %d configured",
				si, len(s.Jobs), len(spi.Jobs),
			)
		}
		for _, j := range s.Jobs {
			if int(j) >= len(spi.Jobs) {
				return fmt.Errorf(
					"spi: sequence %d references unknown job %d",
					si, j,
				)
			}
		}
	}

	for _, id := range cfg.MCAL.Run.Sequences {
		if int(id) >= len(spi.Sequences) {
			return fmt.Errorf("run: unknown sequence %d", id)
		}
	}

	// ------------------------------------------------------------
	// DIO BACKEND VALIDATION
	// ------------------------------------------------------------

	dio := cfg.MCAL.DIO

	switch dio.Backend {
	case "", "mem":
	case "modbus":
		if dio.Modbus.Endpoint == "" {
			return fmt.Errorf("dio: modbus backend requires an endpoint")
		}
	default:
		return fmt.Errorf("dio: unknown backend %q", dio.Backend)
	}

	// ------------------------------------------------------------
	// LIN CHANNEL VALIDATION
	// ------------------------------------------------------------

	for i, ch := range cfg.MCAL.LIN.Channels {
		if ch.Address == "" {
			return fmt.Errorf("lin: channel %d: address required", i)
		}
		if ch.BaudRate < 0 {
			return fmt.Errorf("lin: channel %d: negative baud rate", i)
		}
	}

	return nil
}
