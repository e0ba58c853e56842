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

package stats

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "sntpd"

// PrometheusStats implements Stats interface
// Counters live in a private registry exported on /metrics
type PrometheusStats struct {
	registry *prometheus.Registry

	invalidFormat prometheus.Counter
	requests      prometheus.Counter
	responses     prometheus.Counter
	readError     prometheus.Counter
	sendError     prometheus.Counter
	panics        prometheus.Counter
	listeners     prometheus.Gauge
	workers       prometheus.Gauge
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

func newGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	})
}

// NewPrometheusStats creates PrometheusStats with all collectors registered
func NewPrometheusStats() *PrometheusStats {
	p := &PrometheusStats{
		registry:      prometheus.NewRegistry(),
		invalidFormat: newCounter("invalid_format_total", "Datagrams dropped for not being a valid packet"),
		requests:      newCounter("requests_total", "Requests received"),
		responses:     newCounter("responses_total", "Responses sent"),
		readError:     newCounter("read_errors_total", "Socket read failures"),
		sendError:     newCounter("send_errors_total", "Socket write failures"),
		panics:        newCounter("panics_total", "Requests which crashed a worker"),
		listeners:     newGauge("listeners", "Listeners currently running"),
		workers:       newGauge("workers", "Workers currently running"),
	}
	p.registry.MustRegister(
		p.invalidFormat,
		p.requests,
		p.responses,
		p.readError,
		p.sendError,
		p.panics,
		p.listeners,
		p.workers,
	)
	return p
}

// Handler returns http handler exposing collected metrics
func (p *PrometheusStats) Handler() http.Handler {
	return promhttp.HandlerFor(
		p.registry,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars.
			EnableOpenMetrics: true,
		},
	)
}

// Start serves metrics on /metrics of the given port
func (p *PrometheusStats) Start(port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	addr := fmt.Sprintf(":%d", port)
	log.Debugf("Starting http prometheus server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("Failed to start listener: %v", err)
	}
}

// IncInvalidFormat adds 1 to the counter
func (p *PrometheusStats) IncInvalidFormat() { p.invalidFormat.Inc() }

// IncRequests adds 1 to the counter
func (p *PrometheusStats) IncRequests() { p.requests.Inc() }

// IncResponses adds 1 to the counter
func (p *PrometheusStats) IncResponses() { p.responses.Inc() }

// IncListeners adds 1 to the gauge
func (p *PrometheusStats) IncListeners() { p.listeners.Inc() }

// IncWorkers adds 1 to the gauge
func (p *PrometheusStats) IncWorkers() { p.workers.Inc() }

// IncReadError adds 1 to the counter
func (p *PrometheusStats) IncReadError() { p.readError.Inc() }

// IncSendError adds 1 to the counter
func (p *PrometheusStats) IncSendError() { p.sendError.Inc() }

// IncPanics adds 1 to the counter
func (p *PrometheusStats) IncPanics() { p.panics.Inc() }

// DecListeners removes 1 from the gauge
func (p *PrometheusStats) DecListeners() { p.listeners.Dec() }

// DecWorkers removes 1 from the gauge
func (p *PrometheusStats) DecWorkers() { p.workers.Dec() }
