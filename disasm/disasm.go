// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm partitions a method's decoded bytecode into basic blocks,
// per spec.md §4.D. Grounded on the teacher's own disasm package, which
// walks a flat instruction stream and groups it by control-flow shape --
// generalized here from WASM's structured blocks to the JVM's leader
// discovery over arbitrary forward and backward branches, the way
// rustretto's frontend/src/blocks.rs BlockGraph is built from BlockId edges.
package disasm

import (
	"sort"

	"github.com/go-interpreter/classc/classfile"
)

// Block is a maximal straight-line run of instructions: execution enters
// only at Start and leaves only after the last instruction, to Successors.
type Block struct {
	Start      int
	End        int // exclusive
	Instrs     []classfile.Instruction
	Successors []int // block leader addresses
}

// Partition decodes code into non-overlapping basic blocks. It runs a
// two-pass leader algorithm (a linear sweep, no worklist): first decode every instruction once
// to discover leader addresses (entry, branch targets, and instructions
// immediately following a branch/return/throw), then re-walk the same
// decoded instructions grouping them between consecutive leaders.
func Partition(code []byte) ([]*Block, error) {
	instrs, err := decodeAll(code)
	if err != nil {
		return nil, err
	}
	if len(instrs) == 0 {
		return nil, nil
	}

	leaders := discoverLeaders(instrs)
	return splitIntoBlocks(instrs, leaders, len(code)), nil
}

func decodeAll(code []byte) ([]classfile.Instruction, error) {
	d := classfile.NewDisassembler(code)
	var instrs []classfile.Instruction
	for !d.Done() {
		inst, err := d.DecodeNext()
		if err != nil {
			return nil, err
		}
		instrs = append(instrs, inst)
	}
	return instrs, nil
}

// discoverLeaders returns every instruction offset that begins a basic
// block, in ascending order: offset 0, every branch/switch target, and
// every instruction that immediately follows a branch, switch, return, or
// athrow (since control does not fall through those).
func discoverLeaders(instrs []classfile.Instruction) []int {
	set := map[int]bool{instrs[0].Offset: true}

	nextOffset := func(i int) int {
		if i+1 < len(instrs) {
			return instrs[i+1].Offset
		}
		return -1
	}

	for i, inst := range instrs {
		switch inst.Op {
		case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe,
			classfile.OpIfGt, classfile.OpIfLe,
			classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt,
			classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe,
			classfile.OpIfACmpEq, classfile.OpIfACmpNe,
			classfile.OpIfNull, classfile.OpIfNonNull:
			set[inst.Operand.BranchTarget] = true
			if n := nextOffset(i); n >= 0 {
				set[n] = true
			}
		case classfile.OpGoto, classfile.OpGotoW, classfile.OpJsr, classfile.OpJsrW:
			set[inst.Operand.BranchTarget] = true
			if n := nextOffset(i); n >= 0 {
				set[n] = true
			}
		case classfile.OpTableSwitch:
			ts := inst.Operand.TableSwitch
			set[ts.Default] = true
			for _, t := range ts.Targets {
				set[t] = true
			}
			if n := nextOffset(i); n >= 0 {
				set[n] = true
			}
		case classfile.OpLookupSwitch:
			ls := inst.Operand.LookupSwitch
			set[ls.Default] = true
			for _, p := range ls.Pairs {
				set[p.Target] = true
			}
			if n := nextOffset(i); n >= 0 {
				set[n] = true
			}
		case classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn,
			classfile.OpDReturn, classfile.OpAReturn, classfile.OpReturn,
			classfile.OpAThrow:
			if n := nextOffset(i); n >= 0 {
				set[n] = true
			}
		}
	}

	leaders := make([]int, 0, len(set))
	for addr := range set {
		leaders = append(leaders, addr)
	}
	sort.Ints(leaders)
	return leaders
}

func splitIntoBlocks(instrs []classfile.Instruction, leaders []int, codeLen int) []*Block {
	leaderIdx := make(map[int]int, len(leaders))
	for i, l := range leaders {
		leaderIdx[l] = i
	}

	blocks := make([]*Block, len(leaders))
	for i, l := range leaders {
		end := codeLen
		if i+1 < len(leaders) {
			end = leaders[i+1]
		}
		blocks[i] = &Block{Start: l, End: end}
	}

	cur := 0
	for _, inst := range instrs {
		for cur+1 < len(blocks) && inst.Offset >= blocks[cur+1].Start {
			cur++
		}
		blocks[cur].Instrs = append(blocks[cur].Instrs, inst)
	}

	for _, b := range blocks {
		b.Successors = successorsOf(b, leaderIdx, leaders)
	}
	return blocks
}

// successorsOf computes the leader addresses reachable from the end of a
// block: both branch targets and, where the terminating instruction can
// fall through (or the block has no control-flow instruction at all), the
// next block in address order.
func successorsOf(b *Block, leaderIdx map[int]int, leaders []int) []int {
	if len(b.Instrs) == 0 {
		return fallthroughOnly(b, leaderIdx, leaders)
	}
	last := b.Instrs[len(b.Instrs)-1]
	switch last.Op {
	case classfile.OpGoto, classfile.OpGotoW:
		return []int{last.Operand.BranchTarget}
	case classfile.OpJsr, classfile.OpJsrW:
		return []int{last.Operand.BranchTarget}
	case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe,
		classfile.OpIfGt, classfile.OpIfLe,
		classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt,
		classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe,
		classfile.OpIfACmpEq, classfile.OpIfACmpNe,
		classfile.OpIfNull, classfile.OpIfNonNull:
		succ := []int{last.Operand.BranchTarget}
		return append(succ, fallthroughOnly(b, leaderIdx, leaders)...)
	case classfile.OpTableSwitch:
		ts := last.Operand.TableSwitch
		succ := append([]int{ts.Default}, ts.Targets...)
		return succ
	case classfile.OpLookupSwitch:
		ls := last.Operand.LookupSwitch
		succ := []int{ls.Default}
		for _, p := range ls.Pairs {
			succ = append(succ, p.Target)
		}
		return succ
	case classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn,
		classfile.OpDReturn, classfile.OpAReturn, classfile.OpReturn,
		classfile.OpAThrow:
		return nil
	default:
		return fallthroughOnly(b, leaderIdx, leaders)
	}
}

func fallthroughOnly(b *Block, leaderIdx map[int]int, leaders []int) []int {
	idx, ok := leaderIdx[b.Start]
	if !ok || idx+1 >= len(leaders) {
		return nil
	}
	return []int{leaders[idx+1]}
}
