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

/*
Package client implements a simple SNTP client.
It performs exactly one request/response exchange with a server and
decodes the timestamps of the response. No clock adjustment is made.
*/
package client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	ntp "github.com/facebookincubator/sntp/ntp/protocol"
	log "github.com/sirupsen/logrus"
)

//go:generate mockgen -source=client.go -destination=conn_mock_test.go -package=client UDPConn

// UDPConn describes what functionality we expect from UDP connection
type UDPConn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// Config specifies Client run options
type Config struct {
	// Server is a hostname or IP of the server
	Server string
	// Port of the server
	Port int
	// Timeout for the response. 0 means wait forever
	Timeout time.Duration
}

// Addr returns host:port of the server
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// Response holds all timestamps of the server response
type Response struct {
	Reference ntp.WallClock
	Originate ntp.WallClock
	Receive   ntp.WallClock
	Transmit  ntp.WallClock
}

// Exchange is a result of a single query
type Exchange struct {
	Request  *ntp.Packet
	Response *ntp.Packet
	Decoded  *Response
}

// BuildRequest returns client request stamped with given transmit time
func BuildRequest(now ntp.WallClock) *ntp.Packet {
	p := &ntp.Packet{}
	p.SetLeap(ntp.LeapNoWarning)
	p.SetVersion(ntp.VersionLast)
	p.SetMode(ntp.ModeClient)
	p.TxTime = ntp.ToWire(now)
	return p
}

// DecodeResponse converts all response timestamps to wall clock
func DecodeResponse(p *ntp.Packet) *Response {
	return &Response{
		Reference: ntp.FromWire(p.RefTime),
		Originate: ntp.FromWire(p.OrigTime),
		Receive:   ntp.FromWire(p.RxTime),
		Transmit:  ntp.FromWire(p.TxTime),
	}
}

// Client talks to a single SNTP server
type Client struct {
	cfg  *Config
	conn UDPConn
	// clock source, overridden in tests
	now func() time.Time
}

// New creates Client. Connection is established on the first Query
func New(cfg *Config) *Client {
	return &Client{cfg: cfg, now: time.Now}
}

// NewWithConn creates Client working over existing connection
func NewWithConn(cfg *Config, conn UDPConn) *Client {
	return &Client{cfg: cfg, conn: conn, now: time.Now}
}

// Dial connects to the server
func (c *Client) Dial(ctx context.Context) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.cfg.Addr())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.cfg.Addr(), err)
	}
	log.Debugf("Connected to %v", conn.RemoteAddr())
	c.conn = conn.(*net.UDPConn)
	return nil
}

// Close closes the connection
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Query sends one request and waits for one response
func (c *Client) Query(ctx context.Context) (*Exchange, error) {
	if c.conn == nil {
		if err := c.Dial(ctx); err != nil {
			return nil, err
		}
	}

	if c.cfg.Timeout > 0 {
		if err := c.conn.SetReadDeadline(c.now().Add(c.cfg.Timeout)); err != nil {
			return nil, fmt.Errorf("setting read deadline: %w", err)
		}
	}
	// unblock the read if ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	request := BuildRequest(ntp.WallClockFromTime(c.now()))
	b, err := request.Bytes()
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(b); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	log.Debugf("Sent request %+v", request)

	buf := make([]byte, 1024)
	n, err := c.conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("reading response: %w", err)
	}
	response, err := ntp.BytesToPacket(buf[:n])
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	log.Debugf("Received response %+v", response)

	if response.OrigTime != request.TxTime {
		log.Warningf("Response originate timestamp %v does not match request transmit timestamp %v", response.OrigTime, request.TxTime)
	}

	return &Exchange{
		Request:  request,
		Response: response,
		Decoded:  DecodeResponse(response),
	}, nil
}
