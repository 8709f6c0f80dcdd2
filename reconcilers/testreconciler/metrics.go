/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package testreconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// runsTotal counts pipeline runs by how they ended.
	// Labels: outcome (skipped, no_proposals, reported, error)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prbot",
		Subsystem: "tests",
		Name:      "runs_total",
		Help:      "Test pipeline runs by outcome",
	}, []string{"outcome"})

	// mutationsTotal counts repository writes made by the applier and the
	// repair loop. Labels: action (create, update, rename, fix), result (ok, skipped, error)
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prbot",
		Subsystem: "tests",
		Name:      "mutations_total",
		Help:      "Test file mutations by action and result",
	}, []string{"action", "result"})

	// resultsTotal counts terminal test file states.
	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prbot",
		Subsystem: "tests",
		Name:      "results_total",
		Help:      "Terminal test file states",
	}, []string{"state"})

	fixAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "prbot",
		Subsystem: "tests",
		Name:      "fix_attempts",
		Help:      "Fix attempts per test file",
		Buckets:   []float64{0, 1, 2, 3, 5, 8},
	})
)
