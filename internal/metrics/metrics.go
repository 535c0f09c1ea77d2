// Package metrics defines the Prometheus collectors shared by the fan-out,
// consensus and transaction packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zcn"

var (
	// FanoutRequests counts node requests by node class and outcome code.
	FanoutRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fanout",
		Name:      "requests_total",
		Help:      "Node requests issued, labelled by node class and outcome.",
	}, []string{"class", "outcome"})

	// FanoutDuration observes per-node request latency.
	FanoutDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "fanout",
		Name:      "request_duration_seconds",
		Help:      "Latency of single node requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"class"})

	// ConsensusFailures counts queries that produced no trustworthy answer.
	ConsensusFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "consensus",
		Name:      "failures_total",
		Help:      "Consensus queries that failed, labelled by reason.",
	}, []string{"reason"})

	// Transactions counts submissions by outcome (accepted, rejected).
	Transactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "txn",
		Name:      "submissions_total",
		Help:      "Transaction submissions, labelled by outcome.",
	}, []string{"outcome"})
)

// Collectors returns every collector defined by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		FanoutRequests,
		FanoutDuration,
		ConsensusFailures,
		Transactions,
	}
}

// Register registers all collectors with reg. Collectors that are already
// registered are left alone.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}
