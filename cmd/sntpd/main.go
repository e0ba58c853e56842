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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"

	syscall "golang.org/x/sys/unix"

	"github.com/facebookincubator/sntp/ntp/responder/checker"
	"github.com/facebookincubator/sntp/ntp/responder/server"
	"github.com/facebookincubator/sntp/ntp/responder/stats"
	log "github.com/sirupsen/logrus"
)

const pprofHTTP = "localhost:6060"

// exit codes
const (
	exitOK = iota
	exitFailure
	exitBind
)

func setLogLevel(level string) error {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return errors.New("unrecognized log level: " + level)
	}
	return nil
}

func newStats(c *server.Config) server.Stats {
	if c.Metrics == server.MetricsPrometheus {
		return stats.NewPrometheusStats()
	}
	return &stats.JSONStats{}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath string
		debugger   bool
	)
	c := server.DefaultConfig()
	flags := *c

	flag.StringVar(&configPath, "config", "", "Path to yaml config. Flags override values from it")
	flag.StringVar(&flags.LogLevel, "loglevel", c.LogLevel, "Set a log level. Can be: debug, info, warning, error")
	flag.StringVar(&flags.IP, "ip", c.IP, "IP to listen to. Default: all addresses")
	flag.IntVar(&flags.Port, "port", c.Port, "Port to run service on")
	flag.IntVar(&flags.Workers, "workers", c.Workers, "How many workers (routines) to run")
	flag.IntVar(&flags.QueueSize, "queue", c.QueueSize, "Size of the request queue. Default: number of workers")
	flag.StringVar(&flags.RefID, "refid", c.RefID, "Reference ID of the server, up to 4 characters")
	flag.IntVar(&flags.DSCP, "dscp", c.DSCP, "DSCP to mark responses with")
	flag.IntVar(&flags.MonitoringPort, "monitoringport", c.MonitoringPort, "Port to run monitoring server on. 0 disables it")
	flag.StringVar(&flags.Metrics, "metrics", c.Metrics, "Metrics format. Can be: json, prometheus")
	flag.DurationVar(&flags.ExtraOffset, "extraoffset", c.ExtraOffset, "Extra offset to return to clients")
	flag.DurationVar(&flags.CheckInterval, "checkinterval", c.CheckInterval, "How often to check workers are alive")
	flag.BoolVar(&debugger, "pprof", false, "Enable pprof")

	flag.Parse()

	if configPath != "" {
		var err error
		if c, err = server.ReadConfig(configPath); err != nil {
			log.Errorf("Failed to read config: %v", err)
			return exitFailure
		}
	}
	// only explicitly passed flags win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "loglevel":
			c.LogLevel = flags.LogLevel
		case "ip":
			c.IP = flags.IP
		case "port":
			c.Port = flags.Port
		case "workers":
			c.Workers = flags.Workers
		case "queue":
			c.QueueSize = flags.QueueSize
		case "refid":
			c.RefID = flags.RefID
		case "dscp":
			c.DSCP = flags.DSCP
		case "monitoringport":
			c.MonitoringPort = flags.MonitoringPort
		case "metrics":
			c.Metrics = flags.Metrics
		case "extraoffset":
			c.ExtraOffset = flags.ExtraOffset
		case "checkinterval":
			c.CheckInterval = flags.CheckInterval
		}
	})

	if err := setLogLevel(c.LogLevel); err != nil {
		log.Errorf("Config is invalid: %v", err)
		return exitFailure
	}
	if err := c.Validate(); err != nil {
		log.Errorf("Config is invalid: %v", err)
		return exitFailure
	}

	if debugger {
		log.Warningf("Staring profiler on %s", pprofHTTP)
		go func() {
			log.Println(http.ListenAndServe(pprofHTTP, nil))
		}()
	}

	// Monitoring
	st := newStats(c)
	if c.MonitoringPort != 0 {
		go st.Start(c.MonitoringPort)
	}

	s := server.New(c, st, checker.NewSimpleChecker(1, c.Workers))
	if err := s.Listen(); err != nil {
		log.Errorf("Failed to start server: %v", err)
		if errors.Is(err, server.ErrBind) {
			return exitBind
		}
		return exitFailure
	}

	// Handle interrupt for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	if err := s.Serve(ctx); err != nil {
		log.Errorf("Internal error shutdown: %v", err)
		return exitFailure
	}
	log.Warning("Graceful shutdown")
	return exitOK
}
