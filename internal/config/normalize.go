// internal/config/normalize.go
package config

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	spi := &cfg.MCAL.SPI

	if spi.Transport == "" {
		spi.Transport = "loopback"
	}

	for i := range spi.Channels {
		ch := &spi.Channels[i]
		if ch.SpeedHz == 0 {
			ch.SpeedHz = 1_000_000
		}
		if ch.Bits == 0 {
			ch.Bits = 8
		}
	}

	if cfg.MCAL.DIO.Backend == "" {
		cfg.MCAL.DIO.Backend = "mem"
	}

	for i := range cfg.MCAL.LIN.Channels {
		ch := &cfg.MCAL.LIN.Channels[i]
		if ch.BaudRate == 0 {
			ch.BaudRate = 19200
		}
	}
}
