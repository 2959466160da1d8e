// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package translate performs abstract interpretation of a method's
// partitioned basic blocks, lowering JVM bytecode into a CFG of typed SSA-
// like statements and block terminators (spec.md §4.F), then reconstructs
// phi bindings at block joins (§4.G). Grounded on rustretto's
// frontend/src/translate.rs (Statement/Expr/BranchStub/BasicBlock) and
// frontend/src/blocks.rs (PhiMap), expressed as tagged-union structs in the
// style of classfile.Instruction/Operand rather than a Rust-style enum
// hierarchy.
package translate

import (
	"github.com/go-interpreter/classc/classfile"
	"github.com/go-interpreter/classc/frame"
	"github.com/go-interpreter/classc/ssa"
)

// ExprKind discriminates the right-hand side of a Statement.
type ExprKind int

const (
	ExprStringConst ExprKind = iota
	ExprClassConst
	ExprGetStatic
	ExprPutStatic
	ExprGetField
	ExprPutField
	ExprInvoke
	ExprNew
	ExprNewArray
	ExprANewArray
	ExprMultiANewArray
	ExprArrayLength
	ExprArrayLoad
	ExprArrayStore
	ExprCheckCast
	ExprInstanceOf
	ExprBinary
	ExprNeg
	ExprConvert
	ExprCompare
	ExprThrow
)

// BinaryOp names an arithmetic or bitwise binary operator.
type BinaryOp int

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinUShr
)

// CompareOp names one of the five JVM value-comparison instructions (lcmp,
// fcmpl, fcmpg, dcmpl, dcmpg) that reduce a pair of long, float or double
// operands to an int (-1/0/1).
type CompareOp int

const (
	CmpLong CompareOp = iota
	CmpFloatL
	CmpFloatG
	CmpDoubleL
	CmpDoubleG
)

// InvokeKind distinguishes the four JVM method invocation forms.
type InvokeKind int

const (
	InvokeStatic InvokeKind = iota
	InvokeSpecial
	InvokeVirtual
	InvokeInterface
)

// Expr is the right-hand side of a Statement: a tagged union over every
// bytecode operation that both consumes operands and yields (or discards)
// a single result, selected by Kind.
type Expr struct {
	Kind ExprKind

	ConstantIndex classfile.ConstantIndex
	Type          ssa.Type

	// GetField/PutField/ArrayLoad/ArrayStore/CheckCast/InstanceOf/ArrayLength/ArrayNew
	Object ssa.Value
	Value  ssa.Value
	Index  ssa.Value

	// Binary/Compare
	Op   BinaryOp
	Cmp  CompareOp
	LHS  ssa.Value
	RHS  ssa.Value

	// Convert
	From ssa.Type
	To   ssa.Type

	// New / MultiANewArray
	ClassName string
	Dims      []ssa.Value

	// Invoke
	Invoke *InvokeExpr
}

// InvokeExpr is the decoded operand of an invoke* instruction.
type InvokeExpr struct {
	Kind          InvokeKind
	ConstantIndex classfile.ConstantIndex
	Receiver      ssa.Value // zero Value for InvokeStatic
	Args          []ssa.Value
}

// Statement assigns the result of an Expr to a fresh SSA variable, or
// (when Assign is nil) evaluates it purely for effect (putfield, a void
// invoke, arraystore).
type Statement struct {
	Assign *ssa.VarID
	Expr   Expr
}

// BranchKind discriminates a basic block's terminator.
type BranchKind int

const (
	BranchGoto BranchKind = iota
	BranchIf
	BranchSwitch
	BranchReturn
	BranchThrow
)

// IfCompareKind names the JVM if*/if_*cmp* family's comparator.
type IfCompareKind int

const (
	IfEq IfCompareKind = iota
	IfNe
	IfLt
	IfGe
	IfGt
	IfLe
)

// Branch is a basic block's terminator: exactly one of the fields relevant
// to Kind is populated.
type Branch struct {
	Kind BranchKind

	Target int // BranchGoto

	Compare    IfCompareKind // BranchIf
	LHS, RHS   ssa.Value     // BranchIf: RHS is the implicit 0/null for unary forms
	TrueTarget int
	ElseTarget int

	SwitchValue   ssa.Value // BranchSwitch
	SwitchDefault int
	SwitchCases   []SwitchCase

	ReturnValue *ssa.Value // BranchReturn: nil for void
	ThrowValue  ssa.Value  // BranchThrow
}

// SwitchCase is one (match, target) row of a BranchSwitch terminator.
type SwitchCase struct {
	Match  int32
	Target int
}

// BasicBlock is one translated unit of control flow: the frame shape on
// entry (pre-phi-reconstruction), the statements executed in order, the
// terminating Branch, and the frame shape on exit (handed to phi.go to
// bind the next blocks' Incoming variables).
type BasicBlock struct {
	Address    int
	Incoming   *frame.Frame
	Statements []Statement
	Branch     Branch
	Outgoing   *frame.Frame
	Phis       []Phi
}

// Phi is one reconstructed phi node: the variable live at this block's
// entry, and the value it takes coming from each predecessor.
type Phi struct {
	Var      ssa.VarID
	Bindings []PhiBinding
}

// PhiBinding is one (predecessor block, value) edge of a Phi.
type PhiBinding struct {
	From  int
	Value ssa.Value
}

// CFG is a method's fully translated control flow graph.
type CFG struct {
	Entry  int
	Blocks map[int]*BasicBlock
	Order  []int // block addresses in ascending address order
}
