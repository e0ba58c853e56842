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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.Equal(t, DefaultPort, c.Port)
	require.Equal(t, MetricsJSON, c.Metrics)
	require.Equal(t, time.Minute, c.CheckInterval)
	require.Positive(t, c.Workers)
	require.NoError(t, c.Validate())
	require.Equal(t, c.Workers, c.queueSize())
}

func TestConfigAddr(t *testing.T) {
	c := DefaultConfig()
	require.Equal(t, ":9100", c.Addr())

	c.IP = "::1"
	c.Port = 123
	require.Equal(t, "[::1]:123", c.Addr())
}

func TestConfigQueueSize(t *testing.T) {
	c := DefaultConfig()
	c.QueueSize = 42
	require.Equal(t, 42, c.queueSize())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "no workers", modify: func(c *Config) { c.Workers = 0 }},
		{name: "negative queue", modify: func(c *Config) { c.QueueSize = -1 }},
		{name: "port too big", modify: func(c *Config) { c.Port = 65536 }},
		{name: "negative port", modify: func(c *Config) { c.Port = -1 }},
		{name: "dscp too big", modify: func(c *Config) { c.DSCP = 64 }},
		{name: "long refid", modify: func(c *Config) { c.RefID = "CHANDLER" }},
		{name: "metrics", modify: func(c *Config) { c.Metrics = "graphite" }},
		{name: "check interval", modify: func(c *Config) { c.CheckInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.modify(c)
			require.Error(t, c.Validate())
		})
	}
}

func TestReadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sntpd.yaml")
	data := `ip: 127.0.0.1
port: 1123
workers: 3
refid: LOCL
dscp: 46
extraoffset: 2ms
metrics: prometheus
checkinterval: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := ReadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1", c.IP)
	require.Equal(t, 1123, c.Port)
	require.Equal(t, 3, c.Workers)
	require.Equal(t, "LOCL", c.RefID)
	require.Equal(t, 46, c.DSCP)
	require.Equal(t, 2*time.Millisecond, c.ExtraOffset)
	require.Equal(t, MetricsPrometheus, c.Metrics)
	require.Equal(t, 10*time.Second, c.CheckInterval)
	// untouched defaults
	require.Equal(t, "info", c.LogLevel)
	require.NoError(t, c.Validate())
}

func TestReadConfigUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sntpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stratum: 2\n"), 0o644))

	_, err := ReadConfig(path)
	require.Error(t, err)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
