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
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/i-fix-typos/nearcore/common"
	"github.com/i-fix-typos/nearcore/common/diagnostics"
	"github.com/i-fix-typos/nearcore/database/memtrie"
	"github.com/i-fix-typos/nearcore/database/memtrie/arena"
	"github.com/i-fix-typos/nearcore/database/trie"
)

var BuildCmd = cli.Command{
	Action:    diagnostics.AddPerformanceDiagnosticsAction(doBuild, &diagnosticsFlag, &cpuProfileFlag, &traceFlag),
	Name:      "build",
	Usage:     "build an in-memory trie from a key/value dump and report its root",
	ArgsUsage: "<dump file>",
	Flags: []cli.Flag{
		&inlineThresholdFlag,
	},
}

var inlineThresholdFlag = cli.IntFlag{
	Name:  "inline-threshold",
	Usage: "maximum value size in bytes stored inline in trie nodes",
	Value: 32,
}

// doBuild loads a dump of hex-encoded `key=value` lines into a fresh trie
// and prints the root hash, the accounted memory usage, and the size of the
// backing arena.
func doBuild(context *cli.Context) error {
	if context.Args().Len() != 1 {
		return fmt.Errorf("missing dump file parameter")
	}
	entries, err := readDump(context.Args().Get(0), context.Int(inlineThresholdFlag.Name))
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].Key, entries[j].Key) < 0
	})

	a := arena.New()
	root, err := memtrie.Load(a, entries)
	if err != nil {
		return err
	}
	if root.IsNil() {
		fmt.Printf("the dump is empty, no trie was built\n")
		return nil
	}

	view := memtrie.View(a, root)
	hash, err := view.NodeHash()
	if err != nil {
		return err
	}
	memoryUsage, err := view.MemoryUsage()
	if err != nil {
		return err
	}
	fmt.Printf("entries:      %d\n", len(entries))
	fmt.Printf("root hash:    %s\n", hash)
	fmt.Printf("memory usage: %d\n", memoryUsage)
	fmt.Printf("arena size:   %d bytes\n", a.Size())
	return nil
}

// readDump parses a dump file of hex-encoded `key=value` lines. Empty lines
// and lines starting with '#' are skipped. Values longer than the inline
// threshold are stored as references.
func readDump(path string, inlineThreshold int) ([]memtrie.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var entries []memtrie.Entry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rawKey, rawValue, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: expected <hex key>=<hex value>", lineNumber)
		}
		key, err := hex.DecodeString(rawKey)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid key: %w", lineNumber, err)
		}
		value, err := hex.DecodeString(rawValue)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", lineNumber, err)
		}
		entries = append(entries, memtrie.Entry{Key: key, Value: toFlatValue(value, inlineThreshold)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func toFlatValue(value []byte, inlineThreshold int) trie.FlatStateValue {
	if len(value) <= inlineThreshold {
		return trie.InlinedValue(value)
	}
	return trie.RefValue(trie.ValueRef{
		Length: uint32(len(value)),
		Hash:   common.Sha256Hash(value),
	})
}
