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

package dscp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

func TestEnableDSCP(t *testing.T) {
	conn4, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer conn4.Close()
	err = Enable(conn4, 42)
	require.NoError(t, err)

	tos, err := ipv4.NewConn(conn4).TOS()
	require.NoError(t, err)
	require.Equal(t, 42<<2, tos)
}

func TestEnableDSCPv6(t *testing.T) {
	conn6, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.ParseIP("::1"), Port: 0})
	if err != nil {
		t.Skipf("no IPv6 loopback: %v", err)
	}
	defer conn6.Close()
	err = Enable(conn6, 42)
	require.NoError(t, err)
}

func TestEnableDSCPDualStack(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer conn.Close()
	err = Enable(conn, 42)
	require.NoError(t, err)

	tos, err := ipv4.NewConn(conn).TOS()
	require.NoError(t, err)
	require.Equal(t, 42<<2, tos)
}

func TestEnableDSCPInvalid(t *testing.T) {
	conn4, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer conn4.Close()

	require.Error(t, Enable(conn4, 64))
	require.Error(t, Enable(conn4, -1))
}
