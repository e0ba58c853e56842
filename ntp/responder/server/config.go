/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// DefaultPort is a port server listens on unless told otherwise.
// It is not 123 so no elevated privileges are needed.
const DefaultPort = 9100

// Supported metric backends
const (
	MetricsJSON       = "json"
	MetricsPrometheus = "prometheus"
)

// Config is a server config structure
type Config struct {
	// IP or hostname to bind to. Empty means all addresses
	IP string `yaml:"ip"`
	// Port to bind to
	Port int `yaml:"port"`
	// Workers is the number of goroutines building and sending responses
	Workers int `yaml:"workers"`
	// QueueSize is the size of the queue between listener and workers. 0 means Workers
	QueueSize int `yaml:"queuesize"`
	// RefID is reported in every response. Empty keeps it zero
	RefID string `yaml:"refid"`
	// DSCP to mark responses with, 0-63
	DSCP int `yaml:"dscp"`
	// ExtraOffset is added to every timestamp we send out
	ExtraOffset time.Duration `yaml:"extraoffset"`
	// MonitoringPort is where stats are exported
	MonitoringPort int `yaml:"monitoringport"`
	// Metrics is the stats backend: json or prometheus
	Metrics string `yaml:"metrics"`
	// LogLevel can be debug, info, warning, error
	LogLevel string `yaml:"loglevel"`
	// CheckInterval is how often listener and workers are checked for liveness
	CheckInterval time.Duration `yaml:"checkinterval"`
}

// DefaultConfig returns config with all defaults set
func DefaultConfig() *Config {
	return &Config{
		Port:           DefaultPort,
		Workers:        runtime.NumCPU() * 10,
		MonitoringPort: 0,
		Metrics:        MetricsJSON,
		LogLevel:       "info",
		CheckInterval:  time.Minute,
	}
}

// ReadConfig reads config and unmarshals it from yaml on top of defaults
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Validate checks if config is valid
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("will not start without workers")
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue size must be non-negative, got %d", c.QueueSize)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		return fmt.Errorf("unsupported DSCP value %d", c.DSCP)
	}
	if len(c.RefID) > 4 {
		return fmt.Errorf("reference ID %q is longer than 4 characters", c.RefID)
	}
	if c.Metrics != MetricsJSON && c.Metrics != MetricsPrometheus {
		return fmt.Errorf("unsupported metrics backend %q", c.Metrics)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive")
	}
	return nil
}

// Addr returns host:port the server binds to
func (c *Config) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

func (c *Config) queueSize() int {
	if c.QueueSize == 0 {
		return c.Workers
	}
	return c.QueueSize
}
