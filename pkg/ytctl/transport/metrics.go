// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics instruments outgoing requests.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewMetrics creates the client metrics and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytctl_http_client_requests_total",
			Help: "Total number of outgoing HTTP requests by status code and method",
		}, []string{"code", "method"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ytctl_http_client_request_duration_seconds",
			Help:    "Latency of outgoing HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"code", "method"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ytctl_http_client_in_flight_requests",
			Help: "Number of outgoing HTTP requests currently in flight",
		}),
	}
	for _, c := range []prometheus.Collector{m.Requests, m.Duration, m.InFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) instrument(rt http.RoundTripper) http.RoundTripper {
	return promhttp.InstrumentRoundTripperInFlight(m.InFlight,
		promhttp.InstrumentRoundTripperCounter(m.Requests,
			promhttp.InstrumentRoundTripperDuration(m.Duration, rt),
		),
	)
}
