// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package metrics hosts the prometheus collectors of the operational
// components. Collector names are part of the node's monitoring surface and
// must stay stable.
package metrics

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

// TryCreateIntGauge registers a new gauge on the default registry. A
// registration failure is logged and does not prevent the collector from
// being used.
func TryCreateIntGauge(name, help string) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	register(gauge, name)
	return gauge
}

// TryCreateHistogram registers a new histogram on the default registry.
func TryCreateHistogram(name, help string) prometheus.Histogram {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{Name: name, Help: help})
	register(histogram, name)
	return histogram
}

// TryCreateHistogramVec registers a new labeled histogram on the default
// registry.
func TryCreateHistogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help}, labels)
	register(histogram, name)
	return histogram
}

func register(collector prometheus.Collector, name string) {
	if err := prometheus.Register(collector); err != nil {
		log.Printf("failed to register metric %s: %v", name, err)
	}
}

var (
	// HasStateSnapshot is 1 while a state snapshot is installed and
	// readable, 0 otherwise.
	HasStateSnapshot = TryCreateIntGauge(
		"near_has_state_snapshot",
		"Whether a state snapshot of the database exists",
	)

	// MakeStateSnapshotElapsed measures the time taken to create a state
	// snapshot, during which all snapshot reads fail fast.
	MakeStateSnapshotElapsed = TryCreateHistogram(
		"near_make_state_snapshot_elapsed",
		"Time taken to make a state snapshot of the database",
	)

	// DeleteStateSnapshotElapsed measures the time taken to delete the
	// previous state snapshot from the filesystem.
	DeleteStateSnapshotElapsed = TryCreateHistogram(
		"near_delete_state_snapshot_elapsed",
		"Time taken to delete a state snapshot of the database",
	)

	// CompactStateSnapshotElapsed measures the time taken to compact the
	// current state snapshot.
	CompactStateSnapshotElapsed = TryCreateHistogram(
		"near_compact_state_snapshot_elapsed",
		"Time taken to compact a state snapshot of the database",
	)

	// ApplyStatePartElapsed measures the time taken to apply one state
	// part, per shard.
	ApplyStatePartElapsed = TryCreateHistogramVec(
		"near_apply_state_part_elapsed",
		"Time taken to apply a state part",
		"shard_id",
	)
)
