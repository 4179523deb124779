// Package config holds the server configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// Defaults.
const (
	DefaultPort           = 34613
	DefaultHost           = "127.0.0.1"
	LANHost               = "0.0.0.0"
	DefaultStatsInterval  = 10 * time.Second
	DefaultSendBuffer     = 64
	DefaultMaxMessageSize = 256 << 20 // a 4096x4096 RGBA atlas is 64 MiB
)

// Environment variables read by ApplyEnv.
const (
	EnvPort = "ASELINK_PORT"
	EnvHost = "ASELINK_HOST"
	EnvID   = "ASELINK_ID"
	EnvDB   = "ASELINK_DB"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config stores every server parameter, from flags, env or prompts.
type Config struct {
	Host           string        // bind address; empty means DefaultHost, or LANHost with LAN
	Port           int           // TCP port of the websocket endpoint
	LAN            bool          // accept editors from other machines
	Identifier     string        // stable session identifier; random when empty
	DBPath         string        // SQLite scene store; in-memory store when empty
	MetricsEnabled bool          // serve /metrics next to the websocket endpoint
	Debug          bool          // debug logging
	StatsInterval  time.Duration // traffic log period; 0 disables
	SendBuffer     int           // outgoing message queue capacity
	MaxMessageSize int64         // largest accepted inbound message, bytes
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Port:           DefaultPort,
		StatsInterval:  DefaultStatsInterval,
		SendBuffer:     DefaultSendBuffer,
		MaxMessageSize: DefaultMaxMessageSize,
	}
}

// BindHost resolves the address to listen on.
func (c Config) BindHost() string {
	switch {
	case c.Host != "":
		return c.Host
	case c.LAN:
		return LANHost
	default:
		return DefaultHost
	}
}

// Addr is the host:port to listen on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.BindHost(), strconv.Itoa(c.Port))
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	if c.Host != "" && net.ParseIP(c.Host) == nil && c.Host != "localhost" {
		return fmt.Errorf("%w: host %q is not an IP address", ErrInvalidConfig, c.Host)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("%w: send buffer must be positive, got %d", ErrInvalidConfig, c.SendBuffer)
	}
	if c.MaxMessageSize < 1 {
		return fmt.Errorf("%w: max message size must be positive, got %d", ErrInvalidConfig, c.MaxMessageSize)
	}
	if c.StatsInterval < 0 {
		return fmt.Errorf("%w: negative stats interval", ErrInvalidConfig)
	}
	if len(c.Identifier) > 0xFFFF {
		return fmt.Errorf("%w: identifier too long", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides fields from the environment. Unset variables leave the
// field alone.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, EnvPort, v, err)
		}
		c.Port = port
	}
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Host = v
	}
	if v, ok := lookup(EnvID); ok && v != "" {
		c.Identifier = v
	}
	if v, ok := lookup(EnvDB); ok && v != "" {
		c.DBPath = v
	}
	return nil
}
