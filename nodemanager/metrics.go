package nodemanager

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomeTimeout = "timeout"
)

var (
	switchCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodemanager_switch_total",
			Help: "Manual node switches by outcome",
		},
		[]string{"outcome"},
	)
	probeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nodemanager_genesis_probe_total",
			Help: "Custom node genesis probes by outcome",
		},
		[]string{"outcome"},
	)
	failoverCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodemanager_failover_switch_total",
			Help: "Automatic switches to the next node",
		},
	)
	exhaustedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nodemanager_failover_exhausted_total",
			Help: "Failover sweeps that tried every node without success",
		},
	)

	registerOnce sync.Once
)

// RegisterMetrics adds the node manager collectors to the default prometheus registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(switchCounter, probeCounter, failoverCounter, exhaustedCounter)
	})
}
