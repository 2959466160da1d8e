// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package translate

import (
	"github.com/go-interpreter/classc/frame"
	"github.com/go-interpreter/classc/ssa"
)

// Predecessors returns the block addresses that branch into target, in
// ascending address order, the order the emitter lists phi operands in.
func Predecessors(cfg *CFG, target int) []int {
	return predecessors(cfg, target)
}

// predecessors returns the block addresses that branch into target.
func predecessors(cfg *CFG, target int) []int {
	var preds []int
	for _, addr := range cfg.Order {
		bb := cfg.Blocks[addr]
		for _, succ := range successorsOf(bb.Branch) {
			if succ == target {
				preds = append(preds, addr)
				break
			}
		}
	}
	return preds
}

func successorsOf(b Branch) []int {
	switch b.Kind {
	case BranchGoto:
		return []int{b.Target}
	case BranchIf:
		return []int{b.TrueTarget, b.ElseTarget}
	case BranchSwitch:
		out := make([]int, 0, len(b.SwitchCases)+1)
		out = append(out, b.SwitchDefault)
		for _, c := range b.SwitchCases {
			out = append(out, c.Target)
		}
		return out
	default:
		return nil
	}
}

// ReconstructPhis walks every block's Incoming frame shape and, for each
// slot (stack position or local variable) whose entry value is an SSA
// variable (for a non-entry block, the placeholder NewWithSameShape minted
// when Run seeded that block's entry frame), binds it to the actual value
// each predecessor's Outgoing frame holds in that slot. A slot where every
// predecessor still holds the entry variable itself is left unbound -- no
// real merge happened at that join. Any other slot becomes a Phi, even
// when all predecessors hold the same value, grounded on rustretto's
// frontend/src/blocks.rs PhiMap (one binding per predecessor edge).
func ReconstructPhis(cfg *CFG) {
	for _, addr := range cfg.Order {
		bb := cfg.Blocks[addr]
		preds := predecessors(cfg, addr)
		if len(preds) == 0 {
			continue
		}

		for slot, entryVal := range bb.Incoming.Locals {
			if entryVal.Kind != ssa.ValueVar {
				continue
			}
			slot := slot
			if phi := collectPhi(cfg, entryVal.Var, preds, func(f *frame.Frame) (ssa.Value, bool) {
				v, ok := f.Locals[slot]
				return v, ok
			}); phi != nil {
				bb.Phis = append(bb.Phis, *phi)
			}
		}
		for i, entryVal := range bb.Incoming.Stack {
			if entryVal.Kind != ssa.ValueVar {
				continue
			}
			idx := i
			if phi := collectPhi(cfg, entryVal.Var, preds, func(f *frame.Frame) (ssa.Value, bool) {
				if idx >= len(f.Stack) {
					return ssa.Value{}, false
				}
				return f.Stack[idx], true
			}); phi != nil {
				bb.Phis = append(bb.Phis, *phi)
			}
		}
	}
}

func collectPhi(cfg *CFG, placeholder ssa.VarID, preds []int, lookup func(*frame.Frame) (ssa.Value, bool)) *Phi {
	var bindings []PhiBinding
	distinct := false
	for _, p := range preds {
		pb := cfg.Blocks[p]
		if pb.Outgoing == nil {
			continue
		}
		val, ok := lookup(pb.Outgoing)
		if !ok {
			continue
		}
		if val.Type() != placeholder.Type {
			// A predecessor disagrees with the join's own type -- no well
			// typed phi can be built here, so the whole join is dropped
			// rather than emitting a mismatched-operand phi.
			return nil
		}
		bindings = append(bindings, PhiBinding{From: p, Value: val})
		if val.Kind != ssa.ValueVar || val.Var != placeholder {
			distinct = true
		}
	}
	if len(bindings) == 0 || !distinct {
		return nil
	}
	return &Phi{Var: placeholder, Bindings: bindings}
}
