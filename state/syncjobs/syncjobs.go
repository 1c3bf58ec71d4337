// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package syncjobs runs the long-lasting jobs of state sync on a dedicated
// worker, keeping them off the block-processing path. Jobs are processed
// strictly in submission order.
package syncjobs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i-fix-typos/nearcore/backend/store"
	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/common/future"
	"github.com/i-fix-typos/nearcore/common/result"
	"github.com/i-fix-typos/nearcore/metrics"
)

// commandBufferSize bounds the number of queued jobs before submission
// blocks.
const commandBufferSize = 100

// maxReportedIssues caps the number of per-part errors kept per job; beyond
// that only the count is reported.
const maxReportedIssues = 10

// ErrWorkerClosed is returned when a job is submitted to a closed worker.
var ErrWorkerClosed = errors.New("sync jobs worker is closed")

// PartApplier consumes one downloaded state part, typically by inserting
// its entries into the state of the target shard.
type PartApplier interface {
	ApplyStatePart(shardID uint64, stateRoot common.Hash, partID, numParts uint64, data []byte) error
}

// PartApplierFunc adapts a plain function to the PartApplier interface.
type PartApplierFunc func(shardID uint64, stateRoot common.Hash, partID, numParts uint64, data []byte) error

func (f PartApplierFunc) ApplyStatePart(shardID uint64, stateRoot common.Hash, partID, numParts uint64, data []byte) error {
	return f(shardID, stateRoot, partID, numParts, data)
}

// ApplyStatePartsRequest asks the worker to apply all downloaded parts of
// one shard's state, identified by the sync hash they were downloaded for.
type ApplyStatePartsRequest struct {
	ShardID   uint64
	SyncHash  common.Hash
	StateRoot common.Hash
	NumParts  uint64
	Applier   PartApplier
}

// StatePartKey is the StateParts column key under which a downloaded part
// is stored.
func StatePartKey(syncHash common.Hash, shardID, partID uint64) []byte {
	res := make([]byte, 0, common.HashSize+16)
	res = append(res, syncHash[:]...)
	res = binary.BigEndian.AppendUint64(res, shardID)
	res = binary.BigEndian.AppendUint64(res, partID)
	return res
}

// Worker processes sync jobs sequentially on a background goroutine. It is
// safe to submit jobs and close the worker from multiple goroutines.
type Worker struct {
	store    store.Store
	commands chan command
	done     chan struct{}

	// mutex serializes submissions against Close, so no command is ever
	// sent on the closed channel.
	mutex  sync.Mutex
	closed bool
}

type command struct {
	request *ApplyStatePartsRequest
	promise future.Promise[result.Result[uint64]]
	barrier chan<- struct{}
}

// NewWorker creates a worker reading state parts from the given store and
// starts its processing goroutine.
func NewWorker(s store.Store) *Worker {
	res := &Worker{
		store:    s,
		commands: make(chan command, commandBufferSize),
		done:     make(chan struct{}),
	}
	go res.run()
	return res
}

// ApplyStateParts enqueues the application of all parts of the request. The
// returned future reports the number of successfully applied parts, paired
// with an error summarizing per-part failures, if any.
func (w *Worker) ApplyStateParts(request ApplyStatePartsRequest) future.Future[result.Result[uint64]] {
	promise, f := future.Create[result.Result[uint64]]()
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if w.closed {
		promise.Fulfill(result.Err[uint64](ErrWorkerClosed))
		return f
	}
	w.commands <- command{request: &request, promise: promise}
	return f
}

// Sync blocks until all previously submitted jobs have been processed.
func (w *Worker) Sync() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	barrier := make(chan struct{})
	w.commands <- command{barrier: barrier}
	w.mutex.Unlock()
	<-barrier
}

// Close drains the queue and stops the worker. Submissions after Close fail
// with ErrWorkerClosed.
func (w *Worker) Close() {
	w.mutex.Lock()
	if w.closed {
		w.mutex.Unlock()
		return
	}
	w.closed = true
	close(w.commands)
	w.mutex.Unlock()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for cmd := range w.commands {
		if cmd.request != nil {
			cmd.promise.Fulfill(w.applyStateParts(cmd.request))
		}
		if cmd.barrier != nil {
			close(cmd.barrier)
		}
	}
}

// applyStateParts applies all parts of one request in ascending part order.
// A failing part does not stop the remaining parts from being applied.
func (w *Worker) applyStateParts(request *ApplyStatePartsRequest) result.Result[uint64] {
	timer := prometheus.NewTimer(
		metrics.ApplyStatePartElapsed.WithLabelValues(strconv.FormatUint(request.ShardID, 10)))
	defer timer.ObserveDuration()

	applied := uint64(0)
	collector := issueCollector{}
	for partID := uint64(0); partID < request.NumParts; partID++ {
		data, err := w.store.Get(store.ColStateParts, StatePartKey(request.SyncHash, request.ShardID, partID))
		if err != nil {
			collector.Add(fmt.Errorf("failed to load part %d: %w", partID, err))
			continue
		}
		err = request.Applier.ApplyStatePart(request.ShardID, request.StateRoot, partID, request.NumParts, data)
		if err != nil {
			collector.Add(fmt.Errorf("failed to apply part %d: %w", partID, err))
			continue
		}
		applied++
	}
	return result.Wrap(applied, collector.Summary())
}

// issueCollector accumulates per-part errors, keeping the first few verbatim
// and counting the rest.
type issueCollector struct {
	issues []error
	count  int
}

func (c *issueCollector) Add(issue error) {
	c.count++
	if len(c.issues) < maxReportedIssues {
		c.issues = append(c.issues, issue)
	}
}

// Summary combines the collected issues into a single error, or nil if no
// issue was collected.
func (c *issueCollector) Summary() error {
	if c.count == 0 {
		return nil
	}
	res := errors.Join(c.issues...)
	if suppressed := c.count - len(c.issues); suppressed > 0 {
		res = errors.Join(res, fmt.Errorf("... and %d more issues", suppressed))
	}
	return res
}
