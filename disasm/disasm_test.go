// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disasm_test

import (
	"testing"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/disasm"
)

func TestPartitionStraightLine(t *testing.T) {
	code := []byte{byte(classfile.OpIConst0), byte(classfile.OpIReturn)}
	blocks, err := disasm.Partition(code)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(blocks))
	}
	if blocks[0].Start != 0 || len(blocks[0].Instrs) != 2 {
		t.Fatalf("got %+v", blocks[0])
	}
	if blocks[0].Successors != nil {
		t.Fatalf("return block should have no successors, got %v", blocks[0].Successors)
	}
}

func TestPartitionIfBranch(t *testing.T) {
	code := []byte{
		byte(classfile.OpIConst0),          // 0
		byte(classfile.OpIfEq), 0x00, 0x07, // 1: target = 1+7 = 8
		byte(classfile.OpIConst1),          // 4
		byte(classfile.OpGoto), 0x00, 0x04, // 5: target = 5+4 = 9
		byte(classfile.OpIConstM1), // 8
		byte(classfile.OpIReturn),  // 9
	}
	blocks, err := disasm.Partition(code)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) < 3 {
		t.Fatalf("expected at least 3 blocks, got %d: %+v", len(blocks), blocks)
	}

	starts := make(map[int]*disasm.Block)
	for _, b := range blocks {
		starts[b.Start] = b
	}
	entry, ok := starts[0]
	if !ok {
		t.Fatal("expected a block starting at 0")
	}
	if len(entry.Successors) != 2 {
		t.Fatalf("ifeq block should have 2 successors, got %v", entry.Successors)
	}
}

func TestPartitionGotoSelfLoop(t *testing.T) {
	code := []byte{byte(classfile.OpGoto), 0x00, 0x00}
	blocks, err := disasm.Partition(code)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 1 {
		t.Fatalf("got %d blocks", len(blocks))
	}
	if len(blocks[0].Successors) != 1 || blocks[0].Successors[0] != 0 {
		t.Fatalf("expected self-loop successor, got %v", blocks[0].Successors)
	}
}

func TestPartitionEmptyCode(t *testing.T) {
	blocks, err := disasm.Partition(nil)
	if err != nil {
		t.Fatal(err)
	}
	if blocks != nil {
		t.Fatalf("expected no blocks, got %v", blocks)
	}
}
