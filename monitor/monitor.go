/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xelabs/go-mysqlstack/xlog"
)

var (
	webMonitorAddr = "0.0.0.0:13380"
	webMonitorURL  = "/metrics"

	clientConnectionNum = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connection_number_client",
			Help: "client connection Number",
		},
		[]string{"user"},
	)

	linkConnectionNum = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "connection_number_link",
			Help: "link connection Number by state",
		},
		[]string{"address", "state"},
	)

	queryTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "query_total",
			Help: "Counter of queries.",
		},
		[]string{"command", "result"},
	)

	jobTotalCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_total",
			Help: "Counter of background jobs.",
		},
		[]string{"action", "result"},
	)

	linkStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "link_status",
			Help: "link status, 1 active, 2 recovery, 3 disabled",
		},
		[]string{"table", "shard", "address"},
	)

	linkProbeFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_probe_failure_total",
			Help: "Counter of failed link health probes.",
		},
		[]string{"address"},
	)

	flushFailureCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_flush_failure_total",
			Help: "Counter of failed command queue flushes.",
		},
		[]string{"address"},
	)

	loopDetectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loop_detected_total",
			Help: "Counter of statements refused by the loop check.",
		},
		[]string{"table"},
	)
)

func init() {
	prometheus.MustRegister(clientConnectionNum)
	prometheus.MustRegister(linkConnectionNum)
	prometheus.MustRegister(queryTotalCounter)
	prometheus.MustRegister(jobTotalCounter)
	prometheus.MustRegister(linkStatus)
	prometheus.MustRegister(linkProbeFailureCounter)
	prometheus.MustRegister(flushFailureCounter)
	prometheus.MustRegister(loopDetectedCounter)
}

// Start serves the metrics on addr in background.
func Start(log *xlog.Log, addr string) {
	if addr != "" {
		webMonitorAddr = addr
	}
	log.Info("monitor.prometheus.metrics:http://%s%s", webMonitorAddr, webMonitorURL)
	mux := http.NewServeMux()
	mux.Handle(webMonitorURL, promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(webMonitorAddr, mux); err != nil {
			log.Error("monitor.listen[%s].error:%+v", webMonitorAddr, err)
		}
	}()
}

// ClientConnectionInc add 1
func ClientConnectionInc(user string) {
	clientConnectionNum.WithLabelValues(user).Inc()
}

// ClientConnectionDec dec 1
func ClientConnectionDec(user string) {
	clientConnectionNum.WithLabelValues(user).Dec()
}

// LinkConnectionInc add 1 to the connections of address in state(live or idle).
func LinkConnectionInc(address string, state string) {
	linkConnectionNum.WithLabelValues(address, state).Inc()
}

// LinkConnectionDec dec 1
func LinkConnectionDec(address string, state string) {
	linkConnectionNum.WithLabelValues(address, state).Dec()
}

// QueryTotalCounterInc add 1
func QueryTotalCounterInc(command string, result string) {
	queryTotalCounter.WithLabelValues(command, result).Inc()
}

// JobTotalCounterInc add 1
func JobTotalCounterInc(action string, result string) {
	jobTotalCounter.WithLabelValues(action, result).Inc()
}

// LinkStatusSet sets the status gauge of one link.
func LinkStatusSet(table, shard, address string, status int) {
	linkStatus.WithLabelValues(table, shard, address).Set(float64(status))
}

// LinkProbeFailureInc add 1
func LinkProbeFailureInc(address string) {
	linkProbeFailureCounter.WithLabelValues(address).Inc()
}

// FlushFailureInc add 1
func FlushFailureInc(address string) {
	flushFailureCounter.WithLabelValues(address).Inc()
}

// LoopDetectedInc add 1
func LoopDetectedInc(table string) {
	loopDetectedCounter.WithLabelValues(table).Inc()
}
