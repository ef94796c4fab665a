// Package config loads the frozen configuration struct consumed by
// internal/segment, internal/session and internal/sched (spec §6, §9
// "Global mutable state"). The core never parses a file itself —
// loading is an external collaborator's job — but this package gives
// the executable a complete, idiomatic way to do it, grounded on
// src/deviceid.go's use of gopkg.in/yaml.v3 to load tocalls.yaml.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hamstr-radio/hamstr-link/internal/ax25"
)

// Connection selects the TNC transport kind (spec §6 "Transport").
type Connection string

const (
	ConnectionTCP    Connection = "tcp"
	ConnectionSerial Connection = "serial"
	ConnectionVARA   Connection = "vara"
)

// Config is the complete enumerated option set from spec §6, loaded
// once at startup and never mutated again. Every timer is a
// time.Duration so downstream code never juggles units.
type Config struct {
	// Transport
	ConnectionType Connection `yaml:"connection_type"`
	TCPHost        string     `yaml:"tcp_host"`
	TCPPort        int        `yaml:"tcp_port"`
	SerialPort     string     `yaml:"serial_port"`
	SerialSpeed    int        `yaml:"serial_speed"`

	// Addressing
	LocalCallsign  string `yaml:"local_callsign"`
	RemoteCallsign string `yaml:"remote_callsign"`

	// Packet sizing
	MaxPacketSize int `yaml:"max_packet_size"`

	// Timers
	AckTimeout               time.Duration `yaml:"ack_timeout"`
	ConnectAckTimeout        time.Duration `yaml:"connect_ack_timeout"`
	NoAckTimeout              time.Duration `yaml:"no_ack_timeout"`
	NoPacketTimeout           time.Duration `yaml:"no_packet_timeout"`
	ReadyTimeout              time.Duration `yaml:"ready_timeout"`
	MissingPacketsTimeout     time.Duration `yaml:"missing_packets_timeout"`
	ConnectionAttemptTimeout  time.Duration `yaml:"connection_attempt_timeout"`
	ConnectionTimeout         time.Duration `yaml:"connection_timeout"`
	DisconnectTimeout         time.Duration `yaml:"disconnect_timeout"`
	ShutdownTimeout           time.Duration `yaml:"shutdown_timeout"`
	KeepAliveInterval         time.Duration `yaml:"keep_alive_interval"`
	KeepAliveRetryInterval    time.Duration `yaml:"keep_alive_retry_interval"`
	KeepAliveFinalInterval    time.Duration `yaml:"keep_alive_final_interval"`

	// Retries
	SendRetries      int `yaml:"send_retries"`
	DisconnectRetry  int `yaml:"disconnect_retry"`
	MissingCycles    int `yaml:"missing_cycles"`
	MissingReissues  int `yaml:"missing_reissues"`

	// PTT
	PTTTxDelay time.Duration `yaml:"ptt_tx_delay"`
	PTTRxDelay time.Duration `yaml:"ptt_rx_delay"`
	PTTTail    time.Duration `yaml:"ptt_tail"`
	AckSpacing time.Duration `yaml:"ack_spacing"`

	// Pacing
	PacketSendDelay             time.Duration `yaml:"packet_send_delay"`
	PacketResendDelay           time.Duration `yaml:"packet_resend_delay"`
	ConnectionStabilizationDelay time.Duration `yaml:"connection_stabilization_delay"`
	MissingPacketsThreshold     int           `yaml:"missing_packets_threshold"`

	// Baud (informational; the TNC owns the modem per spec §6)
	BaudRate int `yaml:"baud_rate"`
}

// Default returns the conservative defaults a fresh install should
// start from, tuned for a slow HF/VHF packet link rather than LAN
// testing. Callers overlay a YAML file on top via Load.
func Default() Config {
	return Config{
		ConnectionType: ConnectionTCP,
		TCPHost:        "127.0.0.1",
		TCPPort:        8001,
		SerialSpeed:    9600,

		MaxPacketSize: 200,

		AckTimeout:               10 * time.Second,
		ConnectAckTimeout:        15 * time.Second,
		NoAckTimeout:             30 * time.Second,
		NoPacketTimeout:          30 * time.Second,
		ReadyTimeout:             15 * time.Second,
		MissingPacketsTimeout:    15 * time.Second,
		ConnectionAttemptTimeout: 60 * time.Second,
		ConnectionTimeout:        120 * time.Second,
		DisconnectTimeout:        10 * time.Second,
		ShutdownTimeout:          5 * time.Second,
		KeepAliveInterval:        60 * time.Second,
		KeepAliveRetryInterval:   10 * time.Second,
		KeepAliveFinalInterval:   5 * time.Second,

		SendRetries:     3,
		DisconnectRetry: 3,
		MissingCycles:   5,
		MissingReissues: 5,

		PTTTxDelay: 200 * time.Millisecond,
		PTTRxDelay: 200 * time.Millisecond,
		PTTTail:    100 * time.Millisecond,
		AckSpacing: 50 * time.Millisecond,

		PacketSendDelay:              300 * time.Millisecond,
		PacketResendDelay:            500 * time.Millisecond,
		ConnectionStabilizationDelay: time.Second,
		MissingPacketsThreshold:      1,

		BaudRate: 1200,
	}
}

// Load reads a YAML document from r, overlaying it onto Default().
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile is the usual entry point: open path, Load, close.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Validate rejects an unusable configuration before it ever reaches
// the session/scheduler layers, per §5's "configuration is read-only
// after init" — validation happens exactly once, here.
func (c Config) Validate() error {
	switch c.ConnectionType {
	case ConnectionTCP:
		if c.TCPHost == "" || c.TCPPort == 0 {
			return fmt.Errorf("config: tcp connection requires tcp_host and tcp_port")
		}
	case ConnectionSerial:
		if c.SerialPort == "" {
			return fmt.Errorf("config: serial connection requires serial_port")
		}
	case ConnectionVARA:
		if c.TCPHost == "" || c.TCPPort == 0 {
			return fmt.Errorf("config: vara connection requires tcp_host and tcp_port (control channel)")
		}
	default:
		return fmt.Errorf("config: unknown connection_type %q", c.ConnectionType)
	}

	if _, err := ax25.ParseCallsign(c.LocalCallsign); err != nil {
		return fmt.Errorf("config: local_callsign: %w", err)
	}
	if _, err := ax25.ParseCallsign(c.RemoteCallsign); err != nil {
		return fmt.Errorf("config: remote_callsign: %w", err)
	}
	if c.MaxPacketSize <= 0 {
		return fmt.Errorf("config: max_packet_size must be positive")
	}
	return nil
}
