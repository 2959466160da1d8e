// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package translate

import (
	"fmt"

	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/disasm"
	"github.com/go-interpreter/classc/frame"
	"github.com/go-interpreter/classc/ssa"
)

// Run translates a method's Code attribute into a CFG. args are the
// initial local variable values (the method's receiver, if any, followed
// by its declared parameters), already typed per spec.md §4.E.
func Run(code *classfile.CodeAttribute, pool *classfile.ConstantPool, args []ssa.Value) (*CFG, error) {
	rawBlocks, err := disasm.Partition(code.Bytecode)
	if err != nil {
		return nil, err
	}
	if len(rawBlocks) == 0 {
		return &CFG{Blocks: map[int]*BasicBlock{}}, nil
	}

	byAddr := make(map[int]*disasm.Block, len(rawBlocks))
	order := make([]int, 0, len(rawBlocks))
	for _, b := range rawBlocks {
		byAddr[b.Start] = b
		order = append(order, b.Start)
	}

	cfg := &CFG{
		Entry:  order[0],
		Blocks: make(map[int]*BasicBlock, len(order)),
		Order:  order,
	}

	gen := &ssa.VarIDGen{}
	for _, a := range args {
		if a.Kind == ssa.ValueVar {
			gen.Bump(a.Var.ID + 1)
		}
	}
	var lastProcessed *BasicBlock
	for i, addr := range order {
		raw := byAddr[addr]
		var incoming *frame.Frame
		if i == 0 {
			incoming = frame.New(int(code.MaxStack), args)
		} else {
			// By the JVM verifier's frame-merge invariant every edge into a
			// label carries an operand stack/locals of identical shape; the
			// lowest-address predecessor already translated is used as the
			// template. This does not attempt a full fixed-point merge across
			// back edges -- loop headers reached only via a back edge inherit
			// the previous block's shape as an approximation.
			template := lastProcessed
		findPred:
			for _, p := range order[:i] {
				for _, s := range byAddr[p].Successors {
					if s == addr {
						template = cfg.Blocks[p]
						break findPred
					}
				}
			}
			if template == nil {
				return nil, fmt.Errorf("translate: block at %d has no usable predecessor shape", addr)
			}
			incoming = template.Outgoing.NewWithSameShape(gen)
		}

		bb, err := translateBlock(raw, pool, gen, incoming)
		if err != nil {
			return nil, fmt.Errorf("translate: block at %d: %w", addr, err)
		}
		cfg.Blocks[addr] = bb
		lastProcessed = bb
	}

	ReconstructPhis(cfg)
	logger.Debugw("translated method", "blocks", len(cfg.Blocks), "entry", cfg.Entry)
	return cfg, nil
}

func translateBlock(raw *disasm.Block, pool *classfile.ConstantPool, gen *ssa.VarIDGen, incoming *frame.Frame) (*BasicBlock, error) {
	bb := &BasicBlock{Address: raw.Start, Incoming: incoming}
	cur := incoming.Clone()

	for i, inst := range raw.Instrs {
		isLast := i == len(raw.Instrs)-1
		if isLast && isTerminator(inst.Op) {
			branch, err := buildTerminator(cur, pool, inst, raw.Successors)
			if err != nil {
				return nil, err
			}
			bb.Branch = branch
			bb.Outgoing = cur
			return bb, nil
		}
		stmt, err := interpret(cur, pool, gen, inst)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			bb.Statements = append(bb.Statements, *stmt)
		}
	}

	// Fell off the end of the block without a terminating instruction:
	// control falls through to the single successor disasm computed.
	bb.Outgoing = cur
	if len(raw.Successors) == 1 {
		bb.Branch = Branch{Kind: BranchGoto, Target: raw.Successors[0]}
	} else if len(raw.Successors) == 0 {
		bb.Branch = Branch{Kind: BranchReturn}
	} else {
		return nil, fmt.Errorf("translate: block at %d falls through with %d successors", raw.Start, len(raw.Successors))
	}
	return bb, nil
}

func isTerminator(op classfile.Opcode) bool {
	switch op {
	case classfile.OpGoto, classfile.OpGotoW,
		classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe, classfile.OpIfGt, classfile.OpIfLe,
		classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt, classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe,
		classfile.OpIfACmpEq, classfile.OpIfACmpNe, classfile.OpIfNull, classfile.OpIfNonNull,
		classfile.OpTableSwitch, classfile.OpLookupSwitch,
		classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn, classfile.OpDReturn, classfile.OpAReturn, classfile.OpReturn,
		classfile.OpAThrow:
		return true
	default:
		return false
	}
}

func buildTerminator(cur *frame.Frame, pool *classfile.ConstantPool, inst classfile.Instruction, successors []int) (Branch, error) {
	switch inst.Op {
	case classfile.OpGoto, classfile.OpGotoW:
		return Branch{Kind: BranchGoto, Target: inst.Operand.BranchTarget}, nil

	case classfile.OpIfEq, classfile.OpIfNe, classfile.OpIfLt, classfile.OpIfGe, classfile.OpIfGt, classfile.OpIfLe:
		v := cur.Pop()
		zero := ssa.ConstValue(ssa.Const{Kind: ssa.ConstInt})
		return ifBranch(unaryCompareKind(inst.Op), v, zero, inst.Operand.BranchTarget, successors)

	case classfile.OpIfICmpEq, classfile.OpIfICmpNe, classfile.OpIfICmpLt, classfile.OpIfICmpGe, classfile.OpIfICmpGt, classfile.OpIfICmpLe:
		rhs := cur.Pop()
		lhs := cur.Pop()
		return ifBranch(icmpCompareKind(inst.Op), lhs, rhs, inst.Operand.BranchTarget, successors)

	case classfile.OpIfACmpEq, classfile.OpIfACmpNe:
		rhs := cur.Pop()
		lhs := cur.Pop()
		kind := IfEq
		if inst.Op == classfile.OpIfACmpNe {
			kind = IfNe
		}
		return ifBranch(kind, lhs, rhs, inst.Operand.BranchTarget, successors)

	case classfile.OpIfNull, classfile.OpIfNonNull:
		v := cur.Pop()
		null := ssa.ConstValue(ssa.Const{Kind: ssa.ConstNull})
		kind := IfEq
		if inst.Op == classfile.OpIfNonNull {
			kind = IfNe
		}
		return ifBranch(kind, v, null, inst.Operand.BranchTarget, successors)

	case classfile.OpTableSwitch:
		ts := inst.Operand.TableSwitch
		v := cur.Pop()
		cases := make([]SwitchCase, len(ts.Targets))
		for i, target := range ts.Targets {
			cases[i] = SwitchCase{Match: ts.Low + int32(i), Target: target}
		}
		return Branch{Kind: BranchSwitch, SwitchValue: v, SwitchDefault: ts.Default, SwitchCases: cases}, nil

	case classfile.OpLookupSwitch:
		ls := inst.Operand.LookupSwitch
		v := cur.Pop()
		cases := make([]SwitchCase, len(ls.Pairs))
		for i, p := range ls.Pairs {
			cases[i] = SwitchCase{Match: p.Match, Target: p.Target}
		}
		return Branch{Kind: BranchSwitch, SwitchValue: v, SwitchDefault: ls.Default, SwitchCases: cases}, nil

	case classfile.OpIReturn, classfile.OpLReturn, classfile.OpFReturn, classfile.OpDReturn, classfile.OpAReturn:
		v := cur.Pop()
		return Branch{Kind: BranchReturn, ReturnValue: &v}, nil

	case classfile.OpReturn:
		return Branch{Kind: BranchReturn}, nil

	case classfile.OpAThrow:
		v := cur.Pop()
		return Branch{Kind: BranchThrow, ThrowValue: v}, nil

	default:
		return Branch{}, fmt.Errorf("translate: %v is not a terminator", inst.Op)
	}
}

func ifBranch(kind IfCompareKind, lhs, rhs ssa.Value, target int, successors []int) (Branch, error) {
	elseTarget, err := fallthroughTarget(target, successors)
	if err != nil {
		return Branch{}, err
	}
	return Branch{Kind: BranchIf, Compare: kind, LHS: lhs, RHS: rhs, TrueTarget: target, ElseTarget: elseTarget}, nil
}

func fallthroughTarget(branchTarget int, successors []int) (int, error) {
	for _, s := range successors {
		if s != branchTarget {
			return s, nil
		}
	}
	// A conditional branch whose target equals its fallthrough (e.g. an
	// unconditional self-loop encoded as ifeq) has only one successor.
	if len(successors) == 1 {
		return successors[0], nil
	}
	return 0, fmt.Errorf("translate: could not determine fallthrough among %v (branch target %d)", successors, branchTarget)
}

func unaryCompareKind(op classfile.Opcode) IfCompareKind {
	switch op {
	case classfile.OpIfEq:
		return IfEq
	case classfile.OpIfNe:
		return IfNe
	case classfile.OpIfLt:
		return IfLt
	case classfile.OpIfGe:
		return IfGe
	case classfile.OpIfGt:
		return IfGt
	default:
		return IfLe
	}
}

func icmpCompareKind(op classfile.Opcode) IfCompareKind {
	switch op {
	case classfile.OpIfICmpEq:
		return IfEq
	case classfile.OpIfICmpNe:
		return IfNe
	case classfile.OpIfICmpLt:
		return IfLt
	case classfile.OpIfICmpGe:
		return IfGe
	case classfile.OpIfICmpGt:
		return IfGt
	default:
		return IfLe
	}
}
