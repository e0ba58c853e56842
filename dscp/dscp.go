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

// Package dscp marks outgoing traffic of a UDP socket with a DSCP value.
package dscp

import (
	"fmt"
	"net"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// Enable sets DSCP on the connection. Address family is taken from the local address.
// Sockets bound to an IPv6 address get both traffic class and TOS set,
// so IPv4 replies from a dual-stack socket are marked too.
func Enable(conn *net.UDPConn, dscp int) error {
	if dscp < 0 || dscp > 63 {
		return fmt.Errorf("unsupported DSCP value %d", dscp)
	}
	// DSCP is the upper 6 bits of TOS / traffic class
	tos := dscp << 2
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("not a udp socket: %v", conn.LocalAddr())
	}
	if addr.IP.To4() != nil {
		if err := ipv4.NewConn(conn).SetTOS(tos); err != nil {
			return fmt.Errorf("setting IP_TOS: %w", err)
		}
		return nil
	}
	if err := ipv6.NewConn(conn).SetTrafficClass(tos); err != nil {
		return fmt.Errorf("setting IPV6_TCLASS: %w", err)
	}
	err := ipv4.NewConn(conn).SetTOS(tos)
	// wildcard sockets are dual-stack and must carry the mark for IPv4 peers
	if err != nil && addr.IP.IsUnspecified() {
		return fmt.Errorf("setting IP_TOS on dual-stack socket: %w", err)
	}
	return nil
}
