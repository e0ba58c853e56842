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
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/facebookincubator/sntp/ntp/client"
	ntp "github.com/facebookincubator/sntp/ntp/protocol"
)

// labels of 4-byte rows in raw packet dump
var rawRowLabels = []string{
	"HEADER",
	"ROOT DELAY",
	"ROOT DISPERSION",
	"REFERENCE IDENTIFIER",
	"REFERENCE TS - SECONDS",
	"REFERENCE TS - FRACTION",
	"ORIGINATE TS - SECONDS",
	"ORIGINATE TS - FRACTION",
	"RECEIVE TS - SECONDS",
	"RECEIVE TS - FRACTION",
	"TRANSMIT TS - SECONDS",
	"TRANSMIT TS - FRACTION",
}

// printRaw dumps packet as hex, 4 bytes per row
func printRaw(w io.Writer, p *ntp.Packet) error {
	b, err := p.Bytes()
	if err != nil {
		return err
	}
	for i := 0; i < len(b); i += 4 {
		fmt.Fprintf(w, "\t%x :%s\n", b[i:i+4], rawRowLabels[i/4])
	}
	fmt.Fprintln(w)
	return nil
}

// printTimestamps prints decoded response as a table
func printTimestamps(w io.Writer, response *ntp.Packet, decoded *client.Response) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Timestamp", "Wire", "Local time"})
	rows := []struct {
		name  string
		wire  ntp.Timestamp
		local ntp.WallClock
	}{
		{name: "Reference", wire: response.RefTime, local: decoded.Reference},
		{name: "Originate", wire: response.OrigTime, local: decoded.Originate},
		{name: "Receive", wire: response.RxTime, local: decoded.Receive},
		{name: "Transmit", wire: response.TxTime, local: decoded.Transmit},
	}
	for _, r := range rows {
		table.Append([]string{r.name, r.wire.String(), r.local.String()})
	}
	table.Render()
}

func printExchange(w io.Writer, addr string, e *client.Exchange, raw bool) error {
	fmt.Fprintf(w, "%s %s\n", color.BlueString("Server:"), addr)
	if raw {
		fmt.Fprintln(w, color.BlueString("Request packet:"))
		if err := printRaw(w, e.Request); err != nil {
			return fmt.Errorf("printing request: %w", err)
		}
		fmt.Fprintln(w, color.BlueString("Response packet:"))
		if err := printRaw(w, e.Response); err != nil {
			return fmt.Errorf("printing response: %w", err)
		}
	}
	fmt.Fprintf(w, "%s leap=%d version=%d mode=%d stratum=%d refid=%08x\n",
		color.BlueString("Header:"),
		e.Response.Leap(), e.Response.Version(), e.Response.Mode(), e.Response.Stratum, e.Response.ReferenceID,
	)
	printTimestamps(w, e.Response, e.Decoded)
	fmt.Fprintf(w, "%s %s\n", color.GreenString("Server time:"), e.Decoded.Transmit)
	return nil
}
