// internal/config/config.go
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	MCAL MCALConfig `yaml:"mcal"`
}

type MCALConfig struct {
	SPI SPIConfig `yaml:"spi"`
	DIO DIOConfig `yaml:"dio"`
	LIN LINConfig `yaml:"lin"`
	Run RunConfig `yaml:"run"`
}

// ---- SPI ----

type SPIConfig struct {
	// Transport selects the bus implementation: "loopback" or "spidev".
	Transport string `yaml:"transport"`

	// StrictSequenceRange bounds transmit sequence ids by the sequence
	// count instead of the channel count.
	StrictSequenceRange bool `yaml:"strict_sequence_range"`

	Channels  []SPIChannelConfig  `yaml:"channels"`
	Jobs      []SPIJobConfig      `yaml:"jobs"`
	Sequences []SPISequenceConfig `yaml:"sequences"`
}

type SPIChannelConfig struct {
	ID uint8 `yaml:"id"`

	// spidev transport only.
	Device  string `yaml:"device"`
	SpeedHz int64  `yaml:"speed_hz"`
	Mode    int    `yaml:"mode"`
	Bits    int    `yaml:"bits"`
}

type SPIJobConfig struct {
	Channel uint8  `yaml:"channel"`
	Tx      []byte `yaml:"tx"`
}

type SPISequenceConfig struct {
	Jobs []uint16 `yaml:"jobs"`
}

// ---- DIO ----

type DIOConfig struct {
	// Backend selects the port bank: "mem" or "modbus". Empty means
	// "mem".
	Backend string `yaml:"backend"`

	Modbus DIOModbusConfig `yaml:"modbus"`
}

type DIOModbusConfig struct {
	Endpoint    string `yaml:"endpoint"`
	SlaveID     uint8  `yaml:"slave_id"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	BaseAddress uint16 `yaml:"base_address"`
}

// ---- LIN ----

type LINConfig struct {
	Channels []LINChannelConfig `yaml:"channels"`
}

type LINChannelConfig struct {
	Address   string `yaml:"address"`
	BaudRate  int    `yaml:"baud_rate"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// ---- RUN ----

type RunConfig struct {
	// Sequences lists the sequence ids the daemon transmits each cycle.
	Sequences []uint8 `yaml:"sequences"`

	// IntervalMs between cycles. 0 means run once and exit.
	IntervalMs int `yaml:"interval_ms"`
}

// Load reads and decodes a configuration file. It performs no validation.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}
