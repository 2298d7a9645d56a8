package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "homekit_elmo"

var armStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "alarm",
	Name:      "state",
	Help:      "Panel state: 0 unknown, 1 disarmed, 2 away, 3 home, 4 night, 5 custom, 6 triggered",
}, []string{"panel"})

var diagnosticGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "alarm",
	Name:      "diagnostic",
	Help:      "",
}, []string{"name"})

var inputActiveGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "input",
	Name:      "active",
	Help:      "",
}, []string{"name"})

var inputExcludedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "input",
	Name:      "excluded",
	Help:      "",
}, []string{"name"})

var outputGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "output",
	Name:      "on",
	Help:      "",
}, []string{"name"})

var temperatureGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "alarm",
	Name:      "temperature_celsius",
	Help:      "",
})

var availableGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "client",
	Name:      "available",
	Help:      "Whether the last poll of the panel succeeded",
})

var requestCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "client",
	Name:      "requests_total",
	Help:      "",
})

var requestErrorCounter = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "client",
	Name:      "request_errors_total",
	Help:      "",
})
