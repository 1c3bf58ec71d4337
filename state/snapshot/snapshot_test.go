// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/i-fix-typos/nearcore/backend/store"
	"github.com/i-fix-typos/nearcore/common"
)

func testConfig(t *testing.T) Config {
	return Config{
		Enabled:        true,
		HomeDir:        t.TempDir(),
		HotStorePath:   "data",
		SnapshotSubdir: "state_snapshot",
	}
}

func TestManager_MakeSnapshot_SnapshotIsReadable(t *testing.T) {
	require := require.New(t)

	hot := store.NewMemStore()
	require.NoError(hot.Set(store.ColFlatState, []byte("key"), []byte("value")))

	manager := NewManager(hot, testConfig(t))
	block := common.Sha256Hash([]byte("block-1"))
	require.NoError(manager.MakeSnapshot(block))

	snapshot, err := manager.GetSnapshot(block)
	require.NoError(err)
	require.Equal(block, snapshot.PrevBlockHash)

	value, err := snapshot.Store.Get(store.ColFlatState, []byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)

	// Writes to the hot store after the snapshot are not visible in it.
	require.NoError(hot.Set(store.ColFlatState, []byte("late"), []byte("value")))
	_, err = snapshot.Store.Get(store.ColFlatState, []byte("late"))
	require.ErrorIs(err, store.ErrNotFound)
}

func TestManager_MakeSnapshot_RecordsSnapshotHash(t *testing.T) {
	require := require.New(t)

	hot := store.NewMemStore()
	manager := NewManager(hot, testConfig(t))
	block := common.Sha256Hash([]byte("block-1"))
	require.NoError(manager.MakeSnapshot(block))

	recorded, err := hot.Get(store.ColBlockMisc, snapshotKey)
	require.NoError(err)
	require.Equal(block[:], recorded)
}

func TestManager_MakeSnapshot_SameBlockTwiceKeepsTheSnapshot(t *testing.T) {
	require := require.New(t)

	hot := store.NewMemStore()
	manager := NewManager(hot, testConfig(t))
	block := common.Sha256Hash([]byte("block-1"))
	require.NoError(manager.MakeSnapshot(block))

	first, err := manager.GetSnapshot(block)
	require.NoError(err)

	require.NoError(manager.MakeSnapshot(block))
	second, err := manager.GetSnapshot(block)
	require.NoError(err)
	require.Same(first, second)
}

func TestManager_MakeSnapshot_NewBlockReplacesTheSnapshot(t *testing.T) {
	require := require.New(t)

	hot := store.NewMemStore()
	manager := NewManager(hot, testConfig(t))
	oldBlock := common.Sha256Hash([]byte("block-1"))
	newBlock := common.Sha256Hash([]byte("block-2"))

	require.NoError(manager.MakeSnapshot(oldBlock))
	require.NoError(manager.MakeSnapshot(newBlock))

	_, err := manager.GetSnapshot(oldBlock)
	require.ErrorIs(err, ErrWrongSnapshot)
	_, err = manager.GetSnapshot(newBlock)
	require.NoError(err)

	recorded, err := hot.Get(store.ColBlockMisc, snapshotKey)
	require.NoError(err)
	require.Equal(newBlock[:], recorded)
}

func TestManager_MakeSnapshot_DisabledSnapshotsAreNotCreated(t *testing.T) {
	require := require.New(t)

	hot := store.NewMemStore()
	manager := NewManager(hot, Config{Enabled: false})
	block := common.Sha256Hash([]byte("block-1"))
	require.NoError(manager.MakeSnapshot(block))

	_, err := manager.GetSnapshot(block)
	require.ErrorIs(err, ErrNoSnapshot)
	_, err = hot.Get(store.ColBlockMisc, snapshotKey)
	require.ErrorIs(err, store.ErrNotFound)
}

func TestManager_MakeSnapshot_BackgroundCompactionDoesNotBlockReads(t *testing.T) {
	require := require.New(t)

	config := testConfig(t)
	config.Compaction = true
	manager := NewManager(store.NewMemStore(), config)
	block := common.Sha256Hash([]byte("block-1"))
	require.NoError(manager.MakeSnapshot(block))

	_, err := manager.GetSnapshot(block)
	require.NoError(err)
}

func TestManager_GetSnapshot_NoSnapshotReportsError(t *testing.T) {
	require := require.New(t)
	manager := NewManager(store.NewMemStore(), testConfig(t))
	_, err := manager.GetSnapshot(common.Sha256Hash([]byte("block-1")))
	require.ErrorIs(err, ErrNoSnapshot)
}

// blockingStorage delays Checkpoint until released, simulating a slow
// snapshot creation.
type blockingStorage struct {
	*store.MemStore
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStorage) Checkpoint(path string, cols []store.DBCol) (store.Store, error) {
	close(b.entered)
	<-b.release
	return b.MemStore.Checkpoint(path, cols)
}

func TestManager_GetSnapshot_FailsFastDuringSnapshotCreation(t *testing.T) {
	require := require.New(t)

	hot := &blockingStorage{
		MemStore: store.NewMemStore(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	manager := NewManager(hot, testConfig(t))
	block := common.Sha256Hash([]byte("block-1"))

	done := make(chan error, 1)
	go func() {
		done <- manager.MakeSnapshot(block)
	}()
	<-hot.entered

	// The write lock is held while the checkpoint is in progress; readers
	// must not queue behind it.
	_, err := manager.GetSnapshot(block)
	require.ErrorIs(err, ErrSnapshotWouldBlock)

	close(hot.release)
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(10 * time.Second):
		t.Fatal("snapshot creation did not finish")
	}

	_, err = manager.GetSnapshot(block)
	require.NoError(err)
}

func TestManager_MaybeOpenSnapshot_RestoresRecordedSnapshot(t *testing.T) {
	require := require.New(t)

	hot := store.NewMemStore()
	block := common.Sha256Hash([]byte("block-1"))
	require.NoError(hot.Set(store.ColBlockMisc, snapshotKey, block[:]))

	restored := store.NewMemStore()
	require.NoError(restored.Set(store.ColFlatState, []byte("key"), []byte("value")))

	manager := NewManager(hot, testConfig(t))
	var openedPath string
	manager.openStore = func(path string) (store.Store, error) {
		openedPath = path
		return restored, nil
	}

	require.NoError(manager.MaybeOpenSnapshot())
	require.Equal(manager.config.snapshotDir(block), openedPath)

	snapshot, err := manager.GetSnapshot(block)
	require.NoError(err)
	value, err := snapshot.Store.Get(store.ColFlatState, []byte("key"))
	require.NoError(err)
	require.Equal([]byte("value"), value)
}

func TestManager_MaybeOpenSnapshot_NothingRecordedReportsError(t *testing.T) {
	require := require.New(t)
	manager := NewManager(store.NewMemStore(), testConfig(t))
	require.ErrorIs(manager.MaybeOpenSnapshot(), store.ErrNotFound)
}

func TestManager_MaybeOpenSnapshot_DisabledReportsError(t *testing.T) {
	require := require.New(t)
	manager := NewManager(store.NewMemStore(), Config{Enabled: false})
	require.ErrorIs(manager.MaybeOpenSnapshot(), ErrSnapshotsDisabled)
}

func TestManager_CompactSnapshot_CompletesWithoutSnapshot(t *testing.T) {
	require := require.New(t)
	manager := NewManager(store.NewMemStore(), testConfig(t))
	_, err := manager.CompactSnapshot().Await().Get()
	require.NoError(err)
}

func TestManager_CompactSnapshot_CompletesOnInstalledSnapshot(t *testing.T) {
	require := require.New(t)

	manager := NewManager(store.NewMemStore(), testConfig(t))
	require.NoError(manager.MakeSnapshot(common.Sha256Hash([]byte("block-1"))))
	_, err := manager.CompactSnapshot().Await().Get()
	require.NoError(err)
}
