package config

import (
	"errors"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if got := c.Addr(); got != "127.0.0.1:34613" {
		t.Errorf("Addr: got %q", got)
	}
}

func TestBindHost(t *testing.T) {
	testCases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"loopback by default", Config{}, DefaultHost},
		{"lan", Config{LAN: true}, LANHost},
		{"explicit host wins", Config{LAN: true, Host: "192.168.1.5"}, "192.168.1.5"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.BindHost(); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"negative port", func(c *Config) { c.Port = -1 }},
		{"bad host", func(c *Config) { c.Host = "not a host" }},
		{"zero send buffer", func(c *Config) { c.SendBuffer = 0 }},
		{"zero max message", func(c *Config) { c.MaxMessageSize = 0 }},
		{"negative interval", func(c *Config) { c.StatsInterval = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvPort: "4000",
		EnvHost: "0.0.0.0",
		EnvID:   "/art/project",
		EnvDB:   "/tmp/scene.db",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	c := Default()
	if err := c.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if c.Port != 4000 || c.Host != "0.0.0.0" || c.Identifier != "/art/project" || c.DBPath != "/tmp/scene.db" {
		t.Errorf("unexpected config %+v", c)
	}

	env[EnvPort] = "abc"
	if err := c.applyEnv(lookup); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestApplyEnvFromProcess(t *testing.T) {
	t.Setenv(EnvPort, "5555")
	c := Default()
	if err := c.ApplyEnv(); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if c.Port != 5555 {
		t.Errorf("Port: got %d", c.Port)
	}
}
