/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package relay

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pxrelay"

// Metrics are the Prometheus collectors of a relay.
type Metrics struct {
	Info      *prometheus.GaugeVec
	Delivered *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	Failed    *prometheus.CounterVec
	Cursor    *prometheus.GaugeVec
	Ticks     *prometheus.CounterVec
}

// NewMetrics creates the relay collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "info",
			Help:      "Relay instance, always 1.",
		}, []string{"relay_id", "instance"}),
		Delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_total",
			Help:      "Messages delivered per route.",
		}, []string{"route"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Failed delivery attempts that were retried per route.",
		}, []string{"route"}),
		Failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_total",
			Help:      "Messages reported back to the sender as undeliverable per route.",
		}, []string{"route"}),
		Cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cursor",
			Help:      "Last resolved outbox sequence number per route.",
		}, []string{"route"}),
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Tick invocations per ledger and result.",
		}, []string{"ledger", "result"}),
	}
	reg.MustRegister(m.Info, m.Delivered, m.Retries, m.Failed, m.Cursor, m.Ticks)
	return m
}

// MetricsHandler serves the metrics of gatherer at /metrics.
func MetricsHandler(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
