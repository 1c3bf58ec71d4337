// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package snapshot manages point-in-time checkpoints of the durable store.
// At most one snapshot exists at a time; creating a new one deletes the
// previous one. A snapshot is a read-only clone of the store's flat-state
// columns representing the state as of a specific block.
//
// Access follows single-writer/multi-reader semantics: creating a snapshot
// holds the write lock for the whole (re)creation, which can take seconds.
// Readers therefore fail fast with ErrSnapshotWouldBlock instead of
// queueing behind the writer.
package snapshot

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/i-fix-typos/nearcore/backend/store"
	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/common/future"
	"github.com/i-fix-typos/nearcore/common/result"
	"github.com/i-fix-typos/nearcore/metrics"
	"github.com/i-fix-typos/nearcore/state/flat"
)

// snapshotKey is the BlockMisc key under which the hash of the currently
// valid snapshot is persisted.
var snapshotKey = []byte("STATE_SNAPSHOT_KEY")

// snapshotColumns are the columns cloned into a snapshot. BlockMisc is
// kept so a snapshot can be reopened as a store of its own.
var snapshotColumns = []store.DBCol{
	store.ColBlockMisc,
	store.ColFlatState,
	store.ColStateParts,
}

// deleteRetries bounds the attempts of best-effort cleanup operations.
const deleteRetries = 3

var (
	// ErrNoSnapshot is returned when a snapshot is requested but none is
	// installed.
	ErrNoSnapshot = errors.New("no state snapshot available")
	// ErrWrongSnapshot is returned when the installed snapshot belongs to
	// a different block than the requested one.
	ErrWrongSnapshot = errors.New("state snapshot belongs to a different block")
	// ErrSnapshotWouldBlock is returned when reading the snapshot would
	// block behind its (re)creation. Callers should retry later.
	ErrSnapshotWouldBlock = errors.New("accessing state snapshot would block")
	// ErrSnapshotsDisabled is returned when opening a snapshot is
	// requested but snapshots are disabled by configuration.
	ErrSnapshotsDisabled = errors.New("state snapshots are disabled")
)

// Config controls where snapshots are placed. The zero value disables
// snapshotting.
type Config struct {
	Enabled bool
	// HomeDir/HotStorePath/SnapshotSubdir form the base directory under
	// which each snapshot is stored in a directory named after its block
	// hash.
	HomeDir        string
	HotStorePath   string
	SnapshotSubdir string
	// Compaction enables compacting freshly created snapshots in the
	// background.
	Compaction bool
}

// baseDir returns the directory holding all snapshot directories.
func (c *Config) baseDir() string {
	return filepath.Join(c.HomeDir, c.HotStorePath, c.SnapshotSubdir)
}

// snapshotDir returns the directory of the snapshot of the given block.
func (c *Config) snapshotDir(prevBlockHash common.Hash) string {
	return filepath.Join(c.baseDir(), prevBlockHash.String())
}

// Snapshot is a frozen, read-only view of the state as of a block: the
// checkpointed store plus a flat storage resolving values in it.
type Snapshot struct {
	// PrevBlockHash identifies the snapshot: it holds the state including
	// changes of the next block of this block.
	PrevBlockHash common.Hash
	Store         store.Store
	FlatStorage   *flat.FlatStorage
}

// Storage is the hot store a snapshot is taken of.
type Storage interface {
	store.Store
	store.Checkpointer
}

// Manager guards the current snapshot with single-writer/multi-reader
// semantics.
type Manager struct {
	config Config
	hot    Storage
	// openStore opens an existing snapshot store read-only, used to
	// restore a snapshot on startup.
	openStore func(path string) (store.Store, error)

	mutex   sync.RWMutex
	current *Snapshot
}

// NewManager creates a snapshot manager over the given hot store.
func NewManager(hot Storage, config Config) *Manager {
	return &Manager{
		config: config,
		hot:    hot,
		openStore: func(path string) (store.Store, error) {
			return store.OpenLevelDBReadOnly(path)
		},
	}
}

// GetSnapshot returns the current snapshot, which must belong to the given
// block. It never blocks: if the snapshot is being (re)created, it fails
// with ErrSnapshotWouldBlock. Taking the lock can otherwise last up to
// ~10 seconds, which is why waiting is not an option here.
func (m *Manager) GetSnapshot(prevBlockHash common.Hash) (*Snapshot, error) {
	if !m.mutex.TryRLock() {
		return nil, ErrSnapshotWouldBlock
	}
	defer m.mutex.RUnlock()
	if m.current == nil {
		return nil, ErrNoSnapshot
	}
	if m.current.PrevBlockHash != prevBlockHash {
		return nil, fmt.Errorf("%w: requested %s, available %s",
			ErrWrongSnapshot, prevBlockHash, m.current.PrevBlockHash)
	}
	return m.current, nil
}

// MakeSnapshot checkpoints the current state of the hot store as the state
// of the given block. A previously installed snapshot is deleted first.
// The write lock is held for the whole duration; snapshot readers fail
// fast meanwhile.
func (m *Manager) MakeSnapshot(prevBlockHash common.Hash) error {
	metrics.HasStateSnapshot.Set(0)
	if !m.config.Enabled {
		log.Printf("state snapshots are disabled, not snapshotting %s", prevBlockHash)
		return nil
	}
	timer := prometheus.NewTimer(metrics.MakeStateSnapshotElapsed)
	defer timer.ObserveDuration()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.current != nil {
		if m.current.PrevBlockHash == prevBlockHash && m.persistedHashMatches(prevBlockHash) {
			log.Printf("requested a state snapshot of %s but that is already available", prevBlockHash)
			metrics.HasStateSnapshot.Set(1)
			return nil
		}
		m.dropCurrentLocked()
	}

	st, err := m.hot.Checkpoint(m.config.snapshotDir(prevBlockHash), snapshotColumns)
	if err != nil {
		return fmt.Errorf("failed to checkpoint store for snapshot %s: %w", prevBlockHash, err)
	}
	flatStorage, err := flat.NewFlatStorage(st, 0)
	if err != nil {
		return errors.Join(err, st.Close())
	}
	m.current = &Snapshot{
		PrevBlockHash: prevBlockHash,
		Store:         st,
		FlatStorage:   flatStorage,
	}

	// Persist the snapshot hash, so the snapshot is found again after a
	// restart. Unlike the cleanup above this must succeed; a snapshot
	// that cannot be found again is useless.
	if err := m.setPersistedHash(prevBlockHash[:]); err != nil {
		return fmt.Errorf("failed to persist hash of snapshot %s: %w", prevBlockHash, err)
	}

	metrics.HasStateSnapshot.Set(1)
	log.Printf("made a state snapshot of %s", prevBlockHash)

	if m.config.Compaction {
		// Runs once the write lock is released.
		compacted := m.CompactSnapshot()
		go func() {
			if _, err := compacted.Await().Get(); err != nil {
				log.Printf("failed to compact the state snapshot: %v", err)
			}
		}()
	}
	return nil
}

// MaybeOpenSnapshot restores the snapshot recorded in the hot store, if
// any. It is meant to be called once on startup.
func (m *Manager) MaybeOpenSnapshot() error {
	metrics.HasStateSnapshot.Set(0)
	if !m.config.Enabled {
		return ErrSnapshotsDisabled
	}

	raw, err := m.hot.Get(store.ColBlockMisc, snapshotKey)
	if err != nil {
		return fmt.Errorf("failed to read the recorded snapshot hash: %w", err)
	}
	if len(raw) != common.HashSize {
		return fmt.Errorf("recorded snapshot hash has %d bytes, want %d", len(raw), common.HashSize)
	}
	prevBlockHash := common.Hash(raw)

	st, err := m.openStore(m.config.snapshotDir(prevBlockHash))
	if err != nil {
		return fmt.Errorf("failed to open snapshot %s: %w", prevBlockHash, err)
	}
	flatStorage, err := flat.NewFlatStorage(st, 0)
	if err != nil {
		return errors.Join(err, st.Close())
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.current = &Snapshot{
		PrevBlockHash: prevBlockHash,
		Store:         st,
		FlatStorage:   flatStorage,
	}
	metrics.HasStateSnapshot.Set(1)
	log.Printf("detected and opened a state snapshot of %s", prevBlockHash)
	return nil
}

// CompactSnapshot compacts the current snapshot's store in the background.
// Unlike reads, compaction may wait for a snapshot (re)creation to finish.
func (m *Manager) CompactSnapshot() future.Future[result.Result[struct{}]] {
	promise, f := future.Create[result.Result[struct{}]]()
	go func() {
		m.mutex.RLock()
		defer m.mutex.RUnlock()
		if m.current == nil {
			log.Printf("requested compaction but no state snapshot is available")
			promise.Fulfill(result.Ok(struct{}{}))
			return
		}
		compactable, ok := m.current.Store.(interface{ Compact() error })
		if !ok {
			promise.Fulfill(result.Ok(struct{}{}))
			return
		}
		timer := prometheus.NewTimer(metrics.CompactStateSnapshotElapsed)
		defer timer.ObserveDuration()
		promise.Fulfill(result.Wrap(struct{}{}, compactable.Compact()))
	}()
	return f
}

// dropCurrentLocked removes the installed snapshot: the in-memory handle,
// all snapshot directories on disk, and the persisted snapshot hash. The
// filesystem and store cleanups are best-effort with bounded retries; the
// snapshot is considered gone either way.
func (m *Manager) dropCurrentLocked() {
	if err := m.current.Store.Close(); err != nil {
		log.Printf("failed to close the previous state snapshot: %v", err)
	}
	m.current = nil

	timer := prometheus.NewTimer(metrics.DeleteStateSnapshotElapsed)
	defer timer.ObserveDuration()

	deleted := false
	for attempt := 0; !deleted && attempt < deleteRetries; attempt++ {
		if err := os.RemoveAll(m.config.baseDir()); err != nil {
			log.Printf("failed to delete state snapshots at %s: %v", m.config.baseDir(), err)
			continue
		}
		deleted = true
	}

	deleted = false
	for attempt := 0; !deleted && attempt < deleteRetries; attempt++ {
		if err := m.hot.Delete(store.ColBlockMisc, snapshotKey); err != nil {
			log.Printf("failed to delete the recorded snapshot hash: %v", err)
			continue
		}
		deleted = true
	}

	metrics.HasStateSnapshot.Set(0)
}

// persistedHashMatches reports whether the snapshot hash recorded in the
// hot store equals the given hash.
func (m *Manager) persistedHashMatches(prevBlockHash common.Hash) bool {
	raw, err := m.hot.Get(store.ColBlockMisc, snapshotKey)
	if err != nil {
		return false
	}
	return len(raw) == common.HashSize && common.Hash(raw) == prevBlockHash
}

func (m *Manager) setPersistedHash(value []byte) error {
	var err error
	for attempt := 0; attempt < deleteRetries; attempt++ {
		if err = m.hot.Set(store.ColBlockMisc, snapshotKey, value); err == nil {
			return nil
		}
		log.Printf("failed to record the snapshot hash: %v", err)
	}
	return err
}
