// Package env assembles a bridge from command line flags and environment.
package env

import (
	"errors"
	"flag"
	"os"
	"time"

	"github.com/robotalks/pingpong/pkg/bridge"
	"github.com/robotalks/pingpong/pkg/periph/uart"
)

// Config provides common options of the bridge tools.
type Config struct {
	// Device identifies this bridge in published envelopes.
	Device string
	// Serial is the serial device, e.g. /dev/ttyUSB0.
	Serial    string
	Baud      int
	HalfSize  int
	IdleChars int
	ChunkSize int
	// MQTTBrokerURL specifies the MQTT broker to use,
	// e.g. mqtt://host:port/topic-prefix/
	MQTTBrokerURL string
	// WSListen is the listen address of the websocket hub.
	WSListen      string
	StatsInterval time.Duration
	Frames        bool
}

// Environment variables overriding defaults.
const (
	EnvDevice  = "PINGPONG_DEVICE"
	EnvSerial  = "PINGPONG_SERIAL"
	EnvMQTTURL = "PINGPONG_MQTT_URL"
)

var (
	// ErrNoSerial indicates no serial device is configured.
	ErrNoSerial = errors.New("serial device must be specified")
	// ErrNoPublisher indicates neither MQTT nor websocket is configured.
	ErrNoPublisher = errors.New("at least one of MQTT broker and websocket listener is required")
)

var defaultConfig = Config{
	Baud:          uart.DefaultBaud,
	HalfSize:      uart.DefaultHalfSize,
	IdleChars:     uart.DefaultIdleChars,
	ChunkSize:     uart.DefaultChunkSize,
	MQTTBrokerURL: "mqtt://localhost:1883/pingpong/",
	StatsInterval: bridge.DefaultStatsInterval,
}

func init() {
	defaultConfig.Device = os.Getenv(EnvDevice)
	if val := os.Getenv(EnvSerial); val != "" {
		defaultConfig.Serial = val
	}
	if val := os.Getenv(EnvMQTTURL); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet binds conf to flags in fs.
func SetupFlagSet(fs *flag.FlagSet, conf *Config) {
	fs.StringVar(&conf.Device, "device", conf.Device, "Device ID, machine ID when empty")
	fs.StringVar(&conf.Serial, "serial", conf.Serial, "Serial device")
	fs.IntVar(&conf.Baud, "baud", conf.Baud, "Baud rate")
	fs.IntVar(&conf.HalfSize, "half-size", conf.HalfSize, "Size of one DMA half in bytes")
	fs.IntVar(&conf.IdleChars, "idle-chars", conf.IdleChars, "Receiver idle timeout in character times")
	fs.IntVar(&conf.ChunkSize, "chunk-size", conf.ChunkSize, "Transmit chunk size in bytes")
	fs.StringVar(&conf.MQTTBrokerURL, "mqtt", conf.MQTTBrokerURL, "MQTT broker URL, disabled when empty")
	fs.StringVar(&conf.WSListen, "ws", conf.WSListen, "Websocket listen address, disabled when empty")
	fs.DurationVar(&conf.StatsInterval, "stats-interval", conf.StatsInterval, "Stats publishing interval")
	fs.BoolVar(&conf.Frames, "frames", conf.Frames, "Parse and publish frames")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Validate checks the config and fills the device ID.
func (c *Config) Validate() error {
	if c.Serial == "" {
		return ErrNoSerial
	}
	if c.MQTTBrokerURL == "" && c.WSListen == "" {
		return ErrNoPublisher
	}
	if c.Device == "" {
		c.Device = MachineID()
	}
	return nil
}

// UART returns the serial port config.
func (c *Config) UART() uart.Config {
	return uart.Config{
		Device:    c.Serial,
		Baud:      c.Baud,
		HalfSize:  c.HalfSize,
		IdleChars: c.IdleChars,
		ChunkSize: c.ChunkSize,
	}
}

// Bridge returns the bridge config.
func (c *Config) Bridge() bridge.Config {
	return bridge.Config{
		Source:        c.Device,
		ChunkSize:     c.HalfSize,
		StatsInterval: c.StatsInterval,
		Frames:        c.Frames,
	}
}
