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

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/facebookincubator/sntp/ntp/client"
	ntp "github.com/facebookincubator/sntp/ntp/protocol"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootCmd is a main entry point. It's exported so sntp could be easily extended without touching core functionality.
var RootCmd = &cobra.Command{
	Use:   "sntp <server>",
	Short: "Query SNTP server once and print its timestamps",
	Args:  cobra.ExactArgs(1),
	Run:   runQuery,
}

var (
	verbose bool
	raw     bool
	port    int
	timeout time.Duration
)

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	RootCmd.Flags().BoolVarP(&raw, "raw", "r", false, "print raw request and response packets")
	RootCmd.Flags().IntVarP(&port, "port", "p", ntp.DefaultPort, "port of the server")
	RootCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "how long to wait for the response. 0 waits forever")
}

// ConfigureVerbosity configures log verbosity based on parsed flags. Needs to be called by any subcommand.
func ConfigureVerbosity() {
	log.SetLevel(log.InfoLevel)
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
}

func runQuery(_ *cobra.Command, args []string) {
	ConfigureVerbosity()

	cfg := &client.Config{
		Server:  args[0],
		Port:    port,
		Timeout: timeout,
	}
	c := client.New(cfg)
	defer c.Close()

	exchange, err := c.Query(context.Background())
	if err != nil {
		log.Errorf("Query to %s failed: %v", cfg.Addr(), err)
		c.Close()
		os.Exit(1)
	}
	if err := printExchange(os.Stdout, cfg.Addr(), exchange, raw); err != nil {
		log.Errorf("Failed to print response: %v", err)
		c.Close()
		os.Exit(1)
	}
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
