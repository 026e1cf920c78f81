// Package services – domain outcome metrics
//
// This file exposes Prometheus counters for the business outcomes the
// services produce. HTTP-level metrics (counts, latencies, sizes) live in the
// middleware package; these counters track what the domain logic decided,
// with a single bounded label each:
//
//   - reconciliation_outcomes_total{outcome}: saved, expired, limit_reached,
//     not_found, error, noop, replayed
//   - cancellation_outcomes_total{outcome}:   done, cancel_failed, event_failed
//   - navigation_decisions_total{intent}:     render, redirect, login
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	reconciliationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciliation_outcomes_total",
			Help: "Total reconciliation runs by outcome.",
		},
		[]string{"outcome"},
	)

	cancellationOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cancellation_outcomes_total",
			Help: "Total cancellation survey submissions by outcome.",
		},
		[]string{"outcome"},
	)

	navigationDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "navigation_decisions_total",
			Help: "Total navigation resolutions by emitted intent.",
		},
		[]string{"intent"},
	)
)

func init() {
	prometheus.MustRegister(reconciliationOutcomes, cancellationOutcomes, navigationDecisions)
}
