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
Package checker implements checking mechanism of server aliveness.
Server reports every listener and worker it starts or loses, checker
compares these numbers with what was asked for.
*/
package checker

import (
	"errors"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

var (
	// ErrListeners is returned when running listeners differ from expected
	ErrListeners = errors.New("wrong amount of listeners is up")
	// ErrWorkers is returned when running workers differ from expected
	ErrWorkers = errors.New("wrong amount of workers is up")
)

// SimpleChecker tracks the number of listeners and workers alive
type SimpleChecker struct {
	// ExpectedListeners is number of listeners we expect to run
	ExpectedListeners int64
	// ExpectedWorkers is number of workers we expect to run
	ExpectedWorkers int64

	listeners atomic.Int64
	workers   atomic.Int64
}

// NewSimpleChecker returns checker expecting given amount of listeners and workers
func NewSimpleChecker(listeners, workers int) *SimpleChecker {
	return &SimpleChecker{
		ExpectedListeners: int64(listeners),
		ExpectedWorkers:   int64(workers),
	}
}

// IncListeners thread-safely increases number of listeners to monitor
func (s *SimpleChecker) IncListeners() {
	s.listeners.Add(1)
}

// DecListeners thread-safely decreases number of listeners to monitor
func (s *SimpleChecker) DecListeners() {
	s.listeners.Add(-1)
}

// IncWorkers thread-safely increases number of workers to monitor
func (s *SimpleChecker) IncWorkers() {
	s.workers.Add(1)
}

// DecWorkers thread-safely decreases number of workers to monitor
func (s *SimpleChecker) DecWorkers() {
	s.workers.Add(-1)
}

// Check returns an error if any listener or worker is gone
func (s *SimpleChecker) Check() error {
	if err := s.checkListeners(); err != nil {
		return err
	}
	return s.checkWorkers()
}

func (s *SimpleChecker) checkListeners() error {
	log.Debug("[Checker] checking listeners")
	if got := s.listeners.Load(); got != s.ExpectedListeners {
		return fmt.Errorf("%w: %d of %d", ErrListeners, got, s.ExpectedListeners)
	}
	return nil
}

func (s *SimpleChecker) checkWorkers() error {
	log.Debug("[Checker] checking workers")
	if got := s.workers.Load(); got != s.ExpectedWorkers {
		return fmt.Errorf("%w: %d of %d", ErrWorkers, got, s.ExpectedWorkers)
	}
	return nil
}
