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
Package server implements simple UDP server to work with SNTP packets.
One listener reads the socket and hands requests to a pool of workers,
each worker builds and sends responses on its own.
In addition, it runs checker and stats implementations
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/facebookincubator/sntp/dscp"
	ntp "github.com/facebookincubator/sntp/ntp/protocol"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrResolve is returned when listen address can't be resolved
	ErrResolve = errors.New("failed to resolve address")
	// ErrBind is returned when server can't bind to listen address
	ErrBind = errors.New("failed to bind socket")

	errNotListening = errors.New("server is not listening")
)

// task is a data structure with everything needed to work independently on NTP packet.
type task struct {
	addr     *net.UDPAddr
	received time.Time
	request  *ntp.Packet
}

// Server is a type for UDP server which handles connections.
type Server struct {
	Config  *Config
	Stats   Stats
	Checker Checker

	conn  *net.UDPConn
	tasks chan task
	// clock source, overridden in tests
	now func() time.Time
}

// New creates Server. Listen needs to be called before Serve
func New(c *Config, st Stats, ch Checker) *Server {
	return &Server{
		Config:  c,
		Stats:   st,
		Checker: ch,
		now:     time.Now,
	}
}

// Listen resolves configured address and binds to it.
// Errors wrap ErrResolve or ErrBind.
func (s *Server) Listen() error {
	addr, err := net.ResolveUDPAddr("udp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrResolve, s.Config.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("%w to %v: %v", ErrBind, addr, err)
	}
	if s.Config.DSCP != 0 {
		if err := dscp.Enable(conn, s.Config.DSCP); err != nil {
			conn.Close()
			return err
		}
	}
	s.conn = conn
	log.Infof("Listening on %v", conn.LocalAddr())
	return nil
}

// LocalAddr returns address server is bound to
func (s *Server) LocalAddr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Serve runs listener, workers and the supervisor.
// It returns when ctx is cancelled (nil) or when health check fails.
func (s *Server) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errNotListening
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.tasks = make(chan task, s.Config.queueSize())
	eg, ctx := errgroup.WithContext(ctx)

	log.Infof("Creating %d goroutine workers", s.Config.Workers)
	for i := 0; i < s.Config.Workers; i++ {
		eg.Go(func() error {
			s.startWorker(ctx)
			return nil
		})
	}

	eg.Go(func() error {
		return s.startListener(ctx)
	})

	eg.Go(func() error {
		return s.supervise(ctx)
	})

	eg.Go(func() error {
		<-ctx.Done()
		// unblocks the listener
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})

	return eg.Wait()
}

// ListenAndServe is a shortcut for Listen + Serve
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) startListener(ctx context.Context) error {
	s.Checker.IncListeners()
	defer s.Checker.DecListeners()
	s.Stats.IncListeners()
	defer s.Stats.DecListeners()

	buf := make([]byte, ntp.PacketSizeBytes)
	for {
		request, addr, err := ntp.ReadPacket(s.conn, buf)
		received := s.now()
		if err != nil {
			switch {
			case errors.Is(err, net.ErrClosed):
				log.Warning("listener connection closed, exiting listener")
				return nil
			case errors.Is(err, ntp.ErrPacketSize):
				log.Debugf("Dropping malformed request from %v: %v", addr, err)
				s.Stats.IncInvalidFormat()
			default:
				log.Errorf("Failed to read packet on %v: %v", s.conn.LocalAddr(), err)
				s.Stats.IncReadError()
			}
			continue
		}
		s.Stats.IncRequests()

		select {
		case s.tasks <- task{addr: addr, received: received, request: request}:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Server) startWorker(ctx context.Context) {
	s.Checker.IncWorkers()
	defer s.Checker.DecWorkers()
	s.Stats.IncWorkers()
	defer s.Stats.DecWorkers()

	// Pre-allocating response buffers
	r := newResponder(ntp.ReferenceID(s.Config.RefID))
	buf := make([]byte, ntp.PacketSizeBytes)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.tasks:
			s.serve(t, r, buf)
		}
	}
}

// serve builds the response and sends it back.
// Failure of a single request never affects the worker.
func (s *Server) serve(t task, r *responder, buf []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Errorf("Recovered while serving %v: %v", t.addr, rec)
			s.Stats.IncPanics()
			r.reset()
		}
	}()

	log.Debugf("Received request from %v: %+v", t.addr, t.request)
	if !t.request.ValidSettingsFormat() {
		// answered anyway, clients in the wild send all sorts of headers
		log.Debugf("Unusual settings %#02x in request from %v", t.request.Settings, t.addr)
	}
	if err := r.receive(t.request, ntp.WallClockFromTime(t.received.Add(s.Config.ExtraOffset))); err != nil {
		log.Errorf("Failed to start response: %v", err)
		r.reset()
		return
	}

	response, err := r.transmit(ntp.WallClockFromTime(s.now().Add(s.Config.ExtraOffset)))
	if err != nil {
		log.Errorf("Failed to finish response: %v", err)
		r.reset()
		return
	}
	n, err := response.MarshalBinaryTo(buf)
	if err != nil {
		log.Errorf("Failed to convert %+v to bytes: %v", response, err)
		return
	}

	log.Debugf("Writing response to %v: %+v", t.addr, response)
	if _, err := s.conn.WriteToUDP(buf[:n], t.addr); err != nil {
		log.Debugf("Failed to respond to the request: %v", err)
		s.Stats.IncSendError()
		return
	}
	s.Stats.IncResponses()
}

// supervise periodically checks that listener and all workers are alive
func (s *Server) supervise(ctx context.Context) error {
	ticker := time.NewTicker(s.Config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			log.Debug("[Checker] running internal health checks")
			if err := s.Checker.Check(); err != nil {
				return fmt.Errorf("[Checker] internal error: %w", err)
			}
		}
	}
}
