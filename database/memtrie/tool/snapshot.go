// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/i-fix-typos/nearcore/backend/store"
	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/common/diagnostics"
	"github.com/i-fix-typos/nearcore/state/snapshot"
)

var SnapshotCmd = cli.Command{
	Action:    diagnostics.AddPerformanceDiagnosticsAction(doSnapshot, &diagnosticsFlag, &cpuProfileFlag, &traceFlag),
	Name:      "snapshot",
	Usage:     "make a state snapshot of a store",
	ArgsUsage: "<db directory>",
	Flags: []cli.Flag{
		&blockHashFlag,
		&compactFlag,
	},
}

var (
	blockHashFlag = cli.StringFlag{
		Name:     "block",
		Usage:    "hex-encoded hash of the block the snapshot belongs to",
		Required: true,
	}
	compactFlag = cli.BoolFlag{
		Name:  "compact",
		Usage: "compact the snapshot after its creation",
	}
)

func doSnapshot(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing db directory parameter")
	}
	dir := context.Args().Get(0)

	raw, err := hex.DecodeString(context.String(blockHashFlag.Name))
	if err != nil {
		return fmt.Errorf("invalid block hash: %w", err)
	}
	if len(raw) != common.HashSize {
		return fmt.Errorf("invalid block hash: got %d bytes, want %d", len(raw), common.HashSize)
	}
	prevBlockHash := common.Hash(raw)

	s, err := store.OpenLevelDB(dir)
	if err != nil {
		return err
	}
	defer s.Close()

	// Compaction is awaited explicitly below instead of running in the
	// background, so the command only returns once the work is done.
	manager := snapshot.NewManager(s, snapshot.Config{
		Enabled:        true,
		HomeDir:        dir,
		SnapshotSubdir: "state_snapshot",
	})
	if err := manager.MakeSnapshot(prevBlockHash); err != nil {
		return err
	}
	fmt.Printf("created a state snapshot of %s\n", prevBlockHash)

	if context.Bool(compactFlag.Name) {
		if _, err := manager.CompactSnapshot().Await().Get(); err != nil {
			return errors.Join(fmt.Errorf("failed to compact the snapshot"), err)
		}
		fmt.Printf("compacted the snapshot\n")
	}
	return nil
}
