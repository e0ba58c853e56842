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
Package stats implements statistics collection and reporting.
It is used by server to report internal statistics, such as number of
requests and responses.
*/
package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// JSONStats implements Stats interface
// This implementation reports JSON metrics via http interface
// This is a passive implementation. Only "Start" needs to be called
type JSONStats struct {
	invalidFormat atomic.Int64
	requests      atomic.Int64
	responses     atomic.Int64
	listeners     atomic.Int64
	workers       atomic.Int64
	readError     atomic.Int64
	sendError     atomic.Int64
	panics        atomic.Int64
}

// toMap converts struct to a map
func (j *JSONStats) toMap() (export map[string]int64) {
	export = make(map[string]int64)

	export["invalidformat"] = j.invalidFormat.Load()
	export["requests"] = j.requests.Load()
	export["responses"] = j.responses.Load()
	export["listeners"] = j.listeners.Load()
	export["workers"] = j.workers.Load()
	export["readError"] = j.readError.Load()
	export["sendError"] = j.sendError.Load()
	export["panics"] = j.panics.Load()

	return export
}

// Snapshot returns current values of all counters
func (j *JSONStats) Snapshot() map[string]int64 {
	return j.toMap()
}

// handleRequest is a handler used for all http monitoring requests
func (j *JSONStats) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(j.toMap())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// Start serves counters as a JSON object on every path of the given port
func (j *JSONStats) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", j.handleRequest)
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("Starting http json server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("Failed to start listener: %v", err)
	}
}

// IncInvalidFormat atomically add 1 to the counter
func (j *JSONStats) IncInvalidFormat() {
	j.invalidFormat.Add(1)
}

// IncRequests atomically add 1 to the counter
func (j *JSONStats) IncRequests() {
	j.requests.Add(1)
}

// IncResponses atomically add 1 to the counter
func (j *JSONStats) IncResponses() {
	j.responses.Add(1)
}

// IncListeners atomically add 1 to the counter
func (j *JSONStats) IncListeners() {
	j.listeners.Add(1)
}

// IncWorkers atomically add 1 to the counter
func (j *JSONStats) IncWorkers() {
	j.workers.Add(1)
}

// IncReadError atomically add 1 to the counter
func (j *JSONStats) IncReadError() {
	j.readError.Add(1)
}

// IncSendError atomically add 1 to the counter
func (j *JSONStats) IncSendError() {
	j.sendError.Add(1)
}

// IncPanics atomically add 1 to the counter
func (j *JSONStats) IncPanics() {
	j.panics.Add(1)
}

// DecListeners atomically removes 1 from the counter
func (j *JSONStats) DecListeners() {
	j.listeners.Add(-1)
}

// DecWorkers atomically removes 1 from the counter
func (j *JSONStats) DecWorkers() {
	j.workers.Add(-1)
}
