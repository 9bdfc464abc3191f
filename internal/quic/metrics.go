// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the listener's optional Prometheus instruments. Every method
// below is safe to call on a nil *Metrics, where it does nothing.
type Metrics struct {
	activeIncoming    prometheus.Gauge
	activeEstablished prometheus.Gauge
	bytesSentTotal    prometheus.Counter
	maxSendBurstBytes prometheus.Gauge
	dropReapedTotal   prometheus.Counter
	parseErrorsTotal  prometheus.Counter
}

// NewMetrics creates the listener's instruments and registers them with
// reg. With a nil reg the instruments are still created and updated, but
// they are registered nowhere, so nothing is exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		activeIncoming: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qedge_quic_incoming_connections",
			Help: "Connections whose handshake has not yet completed.",
		}),
		activeEstablished: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qedge_quic_established_connections",
			Help: "Connections with a running TX pump.",
		}),
		bytesSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qedge_quic_bytes_sent_total",
			Help: "Bytes written to the UDP socket by TX pumps.",
		}),
		maxSendBurstBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qedge_quic_max_send_burst_bytes",
			Help: "Most recently computed per-cycle send burst across all connections.",
		}),
		dropReapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qedge_quic_drop_reaped_total",
			Help: "Registry entries removed by the accept loop's drop reaping.",
		}),
		parseErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qedge_quic_header_parse_errors_total",
			Help: "Datagrams dropped for failing header parse.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.activeIncoming, m.activeEstablished, m.bytesSentTotal,
			m.maxSendBurstBytes, m.dropReapedTotal, m.parseErrorsTotal,
		)
	}
	return m
}

func (m *Metrics) incomingOpened() {
	if m != nil {
		m.activeIncoming.Inc()
	}
}

func (m *Metrics) incomingClosed() {
	if m != nil {
		m.activeIncoming.Dec()
	}
}

func (m *Metrics) established() {
	if m != nil {
		m.activeIncoming.Dec()
		m.activeEstablished.Inc()
	}
}

func (m *Metrics) establishedDropped() {
	if m != nil {
		m.activeEstablished.Dec()
	}
}

func (m *Metrics) addBytesSent(n int) {
	if m != nil {
		m.bytesSentTotal.Add(float64(n))
	}
}

func (m *Metrics) setMaxSendBurst(n int) {
	if m != nil {
		m.maxSendBurstBytes.Set(float64(n))
	}
}

func (m *Metrics) dropReaped() {
	if m != nil {
		m.dropReapedTotal.Inc()
	}
}

func (m *Metrics) parseError() {
	if m != nil {
		m.parseErrorsTotal.Inc()
	}
}
