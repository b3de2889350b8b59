// cmd/mcald/main.go
package main

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/mcukit/stm32-mcal/internal/config"
	"github.com/mcukit/stm32-mcal/internal/dio"
	"github.com/mcukit/stm32-mcal/internal/dio/mem"
	diomodbus "github.com/mcukit/stm32-mcal/internal/dio/modbus"
	"github.com/mcukit/stm32-mcal/internal/lin"
	"github.com/mcukit/stm32-mcal/internal/lin/serialport"
	"github.com/mcukit/stm32-mcal/internal/spi"
	"github.com/mcukit/stm32-mcal/internal/spi/loopback"
	"github.com/mcukit/stm32-mcal/internal/spi/spidev"
)

// heartbeatChannel is PC13, the on-board LED of the usual bench board.
const heartbeatChannel = dio.ChannelID(2*16 + 13)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if len(os.Args) < 2 {
		log.Fatal("usage: mcald <config.yaml>")
	}
	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	// --------------------
	// SPI engine
	// --------------------

	transports := make(map[spi.ChannelID]spi.Transport, len(cfg.MCAL.SPI.Channels))
	for _, ch := range cfg.MCAL.SPI.Channels {
		switch cfg.MCAL.SPI.Transport {
		case "loopback":
			transports[spi.ChannelID(ch.ID)] = loopback.New()
		case "spidev":
			tr, err := spidev.New(spidev.Config{
				Device:  ch.Device,
				SpeedHz: ch.SpeedHz,
				Mode:    ch.Mode,
				Bits:    ch.Bits,
			})
			if err != nil {
				log.Fatalf("spi transport failed (channel=%d): %v", ch.ID, err)
			}
			transports[spi.ChannelID(ch.ID)] = tr
		}
	}

	engine, err := spi.New(buildEngineConfig(cfg), transports, spi.Options{
		StrictSequenceRange: cfg.MCAL.SPI.StrictSequenceRange,
	})
	if err != nil {
		log.Fatalf("spi engine build failed: %v", err)
	}
	engine.Init()
	defer func() {
		if err := engine.DeInit(); err != nil {
			log.Warnf("spi deinit: %v", err)
		}
	}()

	// --------------------
	// DIO driver (heartbeat output)
	// --------------------

	var bank dio.PortBank
	switch cfg.MCAL.DIO.Backend {
	case "modbus":
		mb, err := diomodbus.New(diomodbus.Config{
			Endpoint:    cfg.MCAL.DIO.Modbus.Endpoint,
			SlaveID:     cfg.MCAL.DIO.Modbus.SlaveID,
			Timeout:     time.Duration(cfg.MCAL.DIO.Modbus.TimeoutMs) * time.Millisecond,
			BaseAddress: cfg.MCAL.DIO.Modbus.BaseAddress,
		})
		if err != nil {
			log.Fatalf("dio backend failed: %v", err)
		}
		defer mb.Close()
		bank = mb
	default:
		bank = mem.New()
	}

	pins, err := dio.New(bank)
	if err != nil {
		log.Fatalf("dio build failed: %v", err)
	}

	// --------------------
	// LIN driver (optional)
	// --------------------

	if len(cfg.MCAL.LIN.Channels) > 0 {
		wires := make([]lin.Wire, 0, len(cfg.MCAL.LIN.Channels))
		for i, ch := range cfg.MCAL.LIN.Channels {
			w, err := serialport.New(serialport.Config{
				Address:  ch.Address,
				BaudRate: ch.BaudRate,
				Timeout:  time.Duration(ch.TimeoutMs) * time.Millisecond,
			})
			if err != nil {
				log.Fatalf("lin wire failed (channel=%d): %v", i, err)
			}
			defer w.Close()
			wires = append(wires, w)
		}

		bus, err := lin.New(wires)
		if err != nil {
			log.Fatalf("lin build failed: %v", err)
		}

		// Channels come up asleep. Wake the bus before the first cycle.
		for i := range wires {
			if err := bus.Wakeup(uint8(i)); err != nil {
				log.Warnf("lin wakeup (channel=%d): %v", i, err)
			}
		}
	}

	// --------------------
	// Transmit cycles
	// --------------------

	runCycle := func() {
		for _, id := range cfg.MCAL.Run.Sequences {
			seq := spi.SequenceID(id)
			if err := engine.SyncTransmit(seq); err != nil {
				log.Errorw("sequence failed",
					"sequence", id,
					"result", engine.GetSequenceResult(seq).String(),
					"error", err,
				)
				continue
			}
			log.Infow("sequence complete",
				"sequence", id,
				"result", engine.GetSequenceResult(seq).String(),
			)
		}

		if _, err := pins.FlipChannel(heartbeatChannel); err != nil {
			log.Warnf("heartbeat flip: %v", err)
		}
	}

	runCycle()
	if cfg.MCAL.Run.IntervalMs <= 0 {
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.MCAL.Run.IntervalMs) * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		runCycle()
	}
}

// buildEngineConfig converts the file config into engine tables. Each job
// gets a receive buffer sized to its transmit buffer.
func buildEngineConfig(cfg *config.Config) spi.Config {
	ec := spi.Config{}

	for _, ch := range cfg.MCAL.SPI.Channels {
		ec.Channels = append(ec.Channels, spi.ChannelConfig{ID: spi.ChannelID(ch.ID)})
	}
	for _, j := range cfg.MCAL.SPI.Jobs {
		ec.Jobs = append(ec.Jobs, spi.JobConfig{
			Channel: spi.ChannelID(j.Channel),
			Tx:      j.Tx,
			Rx:      make([]byte, len(j.Tx)),
		})
	}
	for _, s := range cfg.MCAL.SPI.Sequences {
		sc := spi.SequenceConfig{}
		for _, j := range s.Jobs {
			sc.Jobs = append(sc.Jobs, spi.JobID(j))
		}
		ec.Sequences = append(ec.Sequences, sc)
	}

	return ec
}
